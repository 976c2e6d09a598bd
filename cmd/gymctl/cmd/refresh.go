package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the access token with the stored refresh token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.client.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Access token renewed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
