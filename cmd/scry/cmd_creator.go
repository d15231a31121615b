package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var creatorTokens int

var creatorCmd = &cobra.Command{
	Use:   "creator <address>",
	Short: "Look up and rate the social profile behind a creator address",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreator,
}

func init() {
	rootCmd.AddCommand(creatorCmd)
	creatorCmd.Flags().IntVar(&creatorTokens, "tokens", -1, "Known token count; read from the chain when negative")
}

func runCreator(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	address := args[0]

	rep := newReputation(cfg.Reputation)
	if rep == nil {
		return fmt.Errorf("reputation.api_key is not configured")
	}

	count := creatorTokens
	if count < 0 {
		n, err := newChainClient(cfg.Chain).GetCreatorTokenCount(ctx, address)
		if err != nil {
			logger.Warn().Err(err).Msg("creator token count unavailable")
		}
		count = n
	}

	profile, err := rep.Lookup(ctx, address, count)
	if err != nil {
		return err
	}
	if profile == nil {
		fmt.Fprintln(os.Stdout, "no profile linked to", address)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(profile)
}
