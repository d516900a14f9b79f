package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/bandfloor"
	"github.com/kinship-net/kinship/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the file-inbox decision daemon",
	Long: "Watches the configured inbox directory for request JSON files,\n" +
		"evaluates each through the decision pipeline, and writes the\n" +
		"decision to the outbox. Band floors hot-reload when the floors\n" +
		"file changes.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	d, err := daemon.New(svc)
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload band floors when the floors file changes.
	if svc.Cfg.BandFloorsPath != "" {
		go func() {
			err := bandfloor.Watch(ctx, svc.Cfg.BandFloorsPath, svc.Sharing.SetFloors)
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "warning: band floor hot-reload disabled: %v\n", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down decision daemon...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "kinship daemon watching %s\n", svc.Cfg.InboxDir)
	return d.Run(ctx)
}
