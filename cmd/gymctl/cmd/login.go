package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain and store a session",
	RunE:  runLogin,
}

var (
	loginUsername string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password (default: GYMCTL_PASSWORD env var)")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("GYMCTL_PASSWORD")
	}
	if password == "" {
		return errors.New("password is required: pass --password or set GYMCTL_PASSWORD")
	}

	ctx := context.Background()
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.client.Login(ctx, loginUsername, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session stored in %s backend)\n", loginUsername, cfg.SessionBackend)
	return nil
}
