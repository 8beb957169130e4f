package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docquiz/internal/api"
)

// NewStatusCmd builds the subcommand that prints a session snapshot.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the current state of a quiz session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(configPath)
			if err != nil {
				return err
			}
			session, err := d.controller.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %s", api.Classify(err).Message)
			}

			fmt.Printf("Session:    %s\n", session.SessionID)
			fmt.Printf("Document:   %s\n", session.DocumentID)
			fmt.Printf("Status:     %s\n", session.Status)
			fmt.Printf("Difficulty: %s\n", session.Difficulty)
			fmt.Printf("Progress:   %d/%d answered, %d correct\n",
				session.AnsweredQuestions, session.TotalQuestions, session.CorrectAnswers)
			if session.ScorePercentage != nil {
				fmt.Printf("Score:      %.1f%%\n", *session.ScorePercentage)
			}
			return nil
		},
	}
}
