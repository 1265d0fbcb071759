package main

import (
	"fmt"

	"github.com/davidjwriter/money-tracker/internal/accounts"
	"github.com/davidjwriter/money-tracker/internal/cli"
	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect linked accounts",
	}

	cmd.AddCommand(accountsListCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every linked account",
		Long: `Rebuild the account list from the credential store and print it.

Access tokens are masked. If any stored record is incomplete the whole
listing fails and names the offending row.`,
		RunE: runAccountsList,
	}
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	list, err := accounts.NewLister(store).ListAccounts(ctx)
	if err != nil {
		return common.NewUserError(
			fmt.Sprintf("Could not list accounts (%s stage failed).", common.Stage(err)), err)
	}

	return cli.RenderAccounts(cmd.OutOrStdout(), list)
}
