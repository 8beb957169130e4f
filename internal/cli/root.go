package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	baseURL    string
	token      string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envURL := os.Getenv("DOCQUIZ_API_URL")
	envToken := os.Getenv("DOCQUIZ_API_TOKEN")
	envConfig := os.Getenv("DOCQUIZ_CONFIG")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "docquiz",
		Short: "Interactive quiz sessions against a document-tutoring backend",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", envURL, "backend base URL")
	cmd.PersistentFlags().StringVar(&token, "token", envToken, "bearer token for the backend")
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewWaitCmd())
	cmd.AddCommand(NewStatusCmd())
	return cmd
}
