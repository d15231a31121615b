package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"scry-scanner/internal/domain"
	"scry-scanner/internal/filter"
	"scry-scanner/internal/scanner"
	"scry-scanner/internal/signals"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Load the newest tokens once and print them scored",
	Long: `Load the newest tokens once, compute fast signals and print the
filtered, sorted set.

Examples:
  scry scan --tags early,graduating --sort score
  scry scan --reserve WETH --search dog --limit 20
  scry scan --select 0x1234...abcd --format json`,
	RunE: runScan,
}

var (
	scanSearch  string
	scanReserve string
	scanTags    string
	scanSort    string
	scanLimit   int
	scanFormat  string
	scanSelect  string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanSearch, "search", "", "Substring match on symbol, name or address")
	scanCmd.Flags().StringVar(&scanReserve, "reserve", "all", "Reserve symbol, all or other")
	scanCmd.Flags().StringVar(&scanTags, "tags", "", "Comma-separated tags: early,mid,late,graduating,deep,active,dormant")
	scanCmd.Flags().StringVar(&scanSort, "sort", "newest", "Sort: newest, score, curve_asc, curve_desc, reserve")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 50, "Maximum rows to print (0 for all)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "table", "Output format: table or json")
	scanCmd.Flags().StringVar(&scanSelect, "select", "", "Enrich and print one token by address")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	tags, err := filter.ParseTags(scanTags)
	if err != nil {
		return err
	}
	sortKey, err := filter.ParseSort(scanSort)
	if err != nil {
		return err
	}

	scan := newScanner(newChainClient(cfg.Chain), newReputation(cfg.Reputation))
	res := scan.FastLoad(ctx)
	if res.Outcome == scanner.LoadFailed {
		return fmt.Errorf("listing failed: %w", res.Err)
	}

	if scanSelect != "" {
		sel, err := scan.Select(ctx, scanSelect, scanner.SelectOptions{WithCreator: true})
		if err != nil {
			return err
		}
		return printSelection(os.Stdout, sel)
	}

	tokens := filter.Apply(res.Tokens, filter.Query{
		Search:  scanSearch,
		Reserve: scanReserve,
		Tags:    tags,
		Sort:    sortKey,
	})
	if scanLimit > 0 && len(tokens) > scanLimit {
		tokens = tokens[:scanLimit]
	}

	if scanFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tokens)
	}
	printTokens(os.Stdout, tokens)
	fmt.Fprintf(os.Stdout, "\n%d of %d tokens\n", len(tokens), len(res.Tokens))
	return nil
}

func printTokens(out io.Writer, tokens []domain.ScannedToken) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tADDRESS\tRESERVE\tCURVE\tAGE(h)\tSCORE\tBADGES")
	for _, t := range tokens {
		badges := make([]string, 0, 4)
		for _, b := range signals.Badges(t, nil) {
			badges = append(badges, string(b))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%.1f\t%d\t%s\n",
			t.Detail.Symbol,
			shortAddress(t.Detail.Address),
			t.Detail.ReserveSymbol,
			t.Signals.CurvePosition*100,
			t.Signals.AgeHours,
			t.Signals.OpportunityScore,
			strings.Join(badges, ","),
		)
	}
	_ = w.Flush()
}

func printSelection(out io.Writer, sel *scanner.Selection) error {
	if scanFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sel)
	}

	t := sel.Token
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Token\t%s (%s)\n", t.Detail.Symbol, t.Detail.Address)
	fmt.Fprintf(w, "Outcome\t%s\n", sel.Outcome)
	fmt.Fprintf(w, "Curve position\t%.2f%%\n", t.Signals.CurvePosition*100)
	fmt.Fprintf(w, "Momentum\t%s\n", optPercent(t.Signals.Momentum))
	fmt.Fprintf(w, "Step jump\t%s\n", optPercent(t.Signals.StepJump))
	if t.Signals.Spread != nil {
		fmt.Fprintf(w, "Spread\t%.2f%%\n", *t.Signals.Spread*100)
	} else {
		fmt.Fprintln(w, "Spread\t-")
	}
	fmt.Fprintf(w, "Score\t%d\n", t.Signals.OpportunityScore)
	fmt.Fprintf(w, "Zap\t%v\n", sel.ZapAvailable)
	fmt.Fprintf(w, "Creator tokens\t%d\n", sel.CreatorTokenCount)
	if sel.Creator != nil {
		fmt.Fprintf(w, "Creator\t@%s %d/100 %s\n", sel.Creator.Username, sel.Creator.Rating, sel.Creator.RatingLabel)
	}
	badges := make([]string, 0, len(sel.Badges))
	for _, b := range sel.Badges {
		badges = append(badges, string(b))
	}
	fmt.Fprintf(w, "Badges\t%s\n", strings.Join(badges, ", "))
	if len(sel.Failed) > 0 {
		fmt.Fprintf(w, "Unavailable\t%s\n", strings.Join(sel.Failed, ", "))
	}
	return w.Flush()
}

func optPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
