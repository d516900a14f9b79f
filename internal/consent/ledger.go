// Package consent is the ledger of cross-space data-sharing consent:
// grant, revoke, and expiry-aware checks keyed by (from, to, purpose).
package consent

import (
	"time"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/store"
)

// Ledger reads and writes consent records through the document store.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// NewLedger returns a ledger over st.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// Grant upserts a consent record. Granting the same (from, to,
// purpose) again overwrites metadata rather than duplicating.
func (l *Ledger) Grant(rec model.ConsentRecord) error {
	if rec.GrantedAt.IsZero() {
		rec.GrantedAt = l.now().UTC()
	}
	_, err := l.store.Update(func(doc *store.Document) error {
		doc.Consents[store.ConsentKey(rec.FromSpace, rec.ToSpace, rec.Purpose)] = rec
		return nil
	})
	return err
}

// Revoke removes the matching record. Revoking absent consent is a
// no-op.
func (l *Ledger) Revoke(from, to, purpose string) error {
	_, err := l.store.Update(func(doc *store.Document) error {
		delete(doc.Consents, store.ConsentKey(from, to, purpose))
		return nil
	})
	return err
}

// HasConsent reports whether unexpired consent exists. Expired
// records read as absent; the check never mutates the ledger.
func (l *Ledger) HasConsent(from, to, purpose string) (bool, error) {
	doc, err := l.store.Read()
	if err != nil {
		return false, err
	}
	rec, ok := doc.Consents[store.ConsentKey(from, to, purpose)]
	if !ok {
		return false, nil
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(l.now()) {
		return false, nil
	}
	return true, nil
}

// List returns every stored record, expired ones included; callers
// that need liveness filter with HasConsent semantics themselves.
func (l *Ledger) List() ([]model.ConsentRecord, error) {
	doc, err := l.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]model.ConsentRecord, 0, len(doc.Consents))
	for _, rec := range doc.Consents {
		out = append(out, rec)
	}
	return out, nil
}
