package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"normlex/internal/checker"
	"normlex/internal/store"
)

var (
	checkJurisdiction string
	checkDomain       string
	checkAsOf         string
	checkProve        bool
	checkJSON         bool
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check one document for deontic conflicts against the corpus",
	Long: `Reads a document (plain text; "-" for stdin), extracts its deontic
statements, and checks them against the theorem store. Prints a
compiler-style report, or the full analysis as JSON with --json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		q := store.ConsistencyQuery{
			Jurisdiction: checkJurisdiction,
			Domain:       checkDomain,
		}
		if checkAsOf != "" {
			t, err := time.Parse("2006-01-02", checkAsOf)
			if err != nil {
				return fmt.Errorf("parse --as-of %q: %w", checkAsOf, err)
			}
			q.TemporalContext = &t
		}

		comps, err := buildComponents(checkProve)
		if err != nil {
			return err
		}
		defer comps.Close()

		analysis := comps.checker.CheckDocument(cmd.Context(), text, documentID(args[0]), q)

		if checkJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}

		report := checker.GenerateDebugReport(analysis)
		fmt.Println(report.Summary)
		for _, issue := range report.CriticalErrors {
			fmt.Printf("  error: %s\n", issue.Message)
		}
		for _, issue := range report.Warnings {
			fmt.Printf("  warning: %s\n", issue.Message)
		}
		for _, issue := range report.Suggestions {
			fmt.Printf("  note: %s\n", issue.Message)
		}
		if len(report.FixSuggestions) > 0 {
			fmt.Println("Suggested fixes:")
			for _, fix := range report.FixSuggestions {
				fmt.Printf("  - %s\n", fix)
			}
		}
		for _, rec := range analysis.Recommendations {
			fmt.Printf("Recommendation: %s\n", rec)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkJurisdiction, "jurisdiction", "", "restrict retrieval to one jurisdiction")
	checkCmd.Flags().StringVar(&checkDomain, "domain", "", "restrict retrieval to one legal domain")
	checkCmd.Flags().StringVar(&checkAsOf, "as-of", "", "temporal context, YYYY-MM-DD")
	checkCmd.Flags().BoolVar(&checkProve, "prove", false, "run the formal verification pass (z3)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "emit the full analysis as JSON")
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

func documentID(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}
