package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/davidjwriter/money-tracker/internal/model"
)

// RenderAccounts writes a table of accounts to w. Tokens are masked.
func RenderAccounts(w io.Writer, accounts model.AccountCollection) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, InfoStyle.Render("No linked accounts. Link one through the web client first."))
		return err
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", FormatTitle("Linked Accounts")); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n",
		TableHeaderStyle.Render("#"),
		TableHeaderStyle.Render("Institution"),
		TableHeaderStyle.Render("Access Token")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n",
		strings.Repeat("─", 3),
		strings.Repeat("─", 24),
		strings.Repeat("─", 12)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for i, account := range accounts {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\n",
			i+1,
			account.FinancialInstitution,
			account.MaskedToken()); err != nil {
			return fmt.Errorf("failed to write account row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	institutions := make(map[string]struct{}, len(accounts))
	for _, name := range accounts.Institutions() {
		institutions[name] = struct{}{}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", SubtleStyle.Render(
		fmt.Sprintf("%d accounts across %d institutions", len(accounts), len(institutions))))
	return err
}
