package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Check an account's credentials",
	Long:  `Exchange the account's AppID and AppSecret for an access token and report its verification tier.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

var tokenAccount int

func init() {
	tokenCmd.Flags().IntVar(&tokenAccount, "account", 0, "account index")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateForPublishing(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	check, err := a.service.CheckAccount(ctx, tokenAccount)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (****%s): token ok, %s\n", check.Account, check.AppIDSuffix, check.Tier)
	return nil
}
