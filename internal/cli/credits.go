package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and seed credit balances",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the principal's balance",
	Args:  cobra.NoArgs,
	RunE:  runCreditsShow,
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant [amount]",
	Short: "Add credits to the principal's balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreditsGrant,
}

func init() {
	creditsCmd.AddCommand(creditsShowCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}

func runCreditsShow(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	bal, err := store.GetCredits(ctx, principal)
	if err != nil {
		return fmt.Errorf("failed to read credits: %w", err)
	}
	cmd.Printf("%s: %d\n", principal, bal)
	return nil
}

func runCreditsGrant(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", args[0])
	}

	ctx := context.Background()
	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	bal, err := store.GrantCredits(ctx, principal, amount)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	cmd.Printf("granted %d to %s, balance %d\n", amount, principal, bal)
	return nil
}
