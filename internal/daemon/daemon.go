// Package daemon serves policy decisions without a network listener:
// request JSON files dropped into an inbox directory are evaluated
// and answered with decision JSON files in an outbox. Transport stays
// the caller's problem; this is the local-first serving surface.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/service"
)

// Request is one inbox file. Kind selects which payload applies.
type Request struct {
	Kind    string             `json:"kind"` // "share" or "access"
	Share   *model.ShareRequest `json:"share,omitempty"`
	Access  *model.AccessRequest `json:"access,omitempty"`
	Context map[string]any     `json:"context,omitempty"`
}

// Response is the outbox answer for one request file.
type Response struct {
	JobID    string               `json:"job_id"`
	Source   string               `json:"source_file"`
	Decision model.PolicyDecision `json:"decision"`
	Error    string               `json:"error,omitempty"`
	DoneAt   time.Time            `json:"done_at"`
}

// Daemon processes inbox requests through the wired service.
type Daemon struct {
	svc    *service.Service
	inbox  string
	outbox string
}

// New creates the inbox/outbox directories and returns a daemon.
func New(svc *service.Service) (*Daemon, error) {
	d := &Daemon{
		svc:    svc,
		inbox:  svc.Cfg.InboxDir,
		outbox: svc.Cfg.OutboxDir,
	}
	for _, dir := range []string{d.inbox, d.outbox} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("daemon: create %s: %w", dir, err)
		}
	}
	return d, nil
}

// Run drains any requests already sitting in the inbox, then watches
// for new ones until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.drain()
	w := NewInboxWatcher(d.inbox, d.Process)
	log.Printf("daemon: watching %s", d.inbox)
	return w.Run(ctx)
}

// drain processes files that arrived while the daemon was down.
func (d *Daemon) drain() {
	entries, err := os.ReadDir(d.inbox)
	if err != nil {
		log.Printf("daemon: drain inbox: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		d.Process(filepath.Join(d.inbox, e.Name()))
	}
}

// Process evaluates one request file and writes its response. The
// request file is removed once answered; malformed requests are
// answered with a DENY response, never dropped silently.
func (d *Daemon) Process(path string) {
	jobID := uuid.NewString()
	resp := Response{JobID: jobID, Source: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("daemon: read %s: %v", path, err)
		return
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		resp.Decision = model.DenyDecision(fmt.Sprintf("evaluation_error:malformed request: %v", err))
		resp.Error = err.Error()
	} else {
		resp.Decision, resp.Error = d.evaluate(req)
	}
	resp.DoneAt = time.Now().UTC()

	if err := d.writeResponse(jobID, resp); err != nil {
		log.Printf("daemon: write response for %s: %v", path, err)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: remove %s: %v", path, err)
	}
}

func (d *Daemon) evaluate(req Request) (model.PolicyDecision, string) {
	switch req.Kind {
	case "share":
		if req.Share == nil {
			return model.DenyDecision("evaluation_error:share request missing payload"), ""
		}
		dec, err := d.svc.EvaluateShare(*req.Share, req.Context)
		return dec, errString(err)
	case "access":
		if req.Access == nil {
			return model.DenyDecision("evaluation_error:access request missing payload"), ""
		}
		if req.Access.Context == nil {
			req.Access.Context = req.Context
		}
		dec, err := d.svc.EvaluateAccess(*req.Access)
		return dec, errString(err)
	default:
		return model.DenyDecision(fmt.Sprintf("evaluation_error:unknown request kind %q", req.Kind)), ""
	}
}

// writeResponse lands the response atomically (tmp + rename) so a
// reader polling the outbox never sees a partial file.
func (d *Daemon) writeResponse(jobID string, resp Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	final := filepath.Join(d.outbox, jobID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
