package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docquiz/internal/api"
	"docquiz/internal/config"
	"docquiz/internal/domain"
)

// NewWaitCmd builds the subcommand that blocks until a document finishes
// processing, polling the backend until it reaches a terminal status.
func NewWaitCmd() *cobra.Command {
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "wait <document-id>",
		Short: "Wait for a document to finish processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(configPath)
			if err != nil {
				return err
			}
			documentID := args[0]

			poll := pollInterval
			if poll == 0 {
				poll = config.DurationOr(d.cfg.Quiz.PollInterval, 2*time.Second)
			}

			ctx := cmd.Context()
			sub := d.controller.WatchDocument(ctx, documentID, poll)
			defer sub.Close()

			lastStatus := ""
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case snap, ok := <-sub.Updates():
					if !ok {
						return fmt.Errorf("document watch closed")
					}
					if snap.Err != nil {
						return fmt.Errorf("watch document: %s", api.Classify(snap.Err).Message)
					}
					doc, ok := snap.Data.(domain.Document)
					if !ok {
						continue
					}
					if doc.Status != lastStatus {
						fmt.Printf("%s: %s\n", doc.ID, doc.Status)
						lastStatus = doc.Status
					}
					if !doc.Terminal() {
						continue
					}
					if doc.Status == domain.DocumentStatusFailed {
						return fmt.Errorf("document %s: %w", doc.ID, domain.ErrDocumentNotReady)
					}
					return nil
				}
			}
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll", 0, "poll interval (default from config)")
	return cmd
}
