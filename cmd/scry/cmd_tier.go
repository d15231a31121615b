package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"scry-scanner/internal/tier"
)

var tierWallet string

var tierCmd = &cobra.Command{
	Use:   "tier [balance]",
	Short: "Show the tier and features for a balance or wallet",
	Long: `Show the tier for a whole-token balance, or for a wallet's on-chain
balance of the configured tier token with --wallet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTier,
}

func init() {
	rootCmd.AddCommand(tierCmd)
	tierCmd.Flags().StringVar(&tierWallet, "wallet", "", "Wallet address to read the tier token balance of")
}

func runTier(cmd *cobra.Command, args []string) error {
	reg := tier.DefaultRegistry()

	var t tier.Tier
	switch {
	case len(args) == 1:
		balance, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid balance %q: %w", args[0], err)
		}
		t = reg.TierFor(balance)
	case tierWallet != "":
		if cfg.Tier.Token == "" {
			return fmt.Errorf("tier.token is not configured")
		}
		bal, err := newChainClient(cfg.Chain).TokenBalance(cmd.Context(), cfg.Tier.Token, tierWallet)
		if err != nil {
			return err
		}
		t = reg.TierForBaseUnits(bal, cfg.Tier.Decimals)
	default:
		return fmt.Errorf("a balance argument or --wallet is required")
	}

	fmt.Fprintf(os.Stdout, "%s (min %s)\n", t.Label, t.MinBalance)
	fmt.Fprintf(os.Stdout, "features: %s\n", strings.Join(t.Features, ", "))
	for _, next := range reg.Tiers() {
		if next.MinBalance.GreaterThan(t.MinBalance) {
			fmt.Fprintf(os.Stdout, "next: %s at %s\n", next.Label, next.MinBalance)
			break
		}
	}
	return nil
}
