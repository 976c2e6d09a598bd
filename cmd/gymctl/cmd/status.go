package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a session is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline(context.Background())
		if err != nil {
			return err
		}
		defer p.Close()

		session := p.client.Session()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "API:            %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "Backend:        %s\n", cfg.SessionBackend)
		fmt.Fprintf(out, "Authenticated:  %t\n", session.Authenticated())
		fmt.Fprintf(out, "Refresh token:  %t\n", session.RefreshToken != "")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
