package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show theorem store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(false)
		if err != nil {
			return err
		}
		defer comps.Close()

		stats := comps.store.GetStats()
		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("theorems:  %d\n", stats.Theorems)
		fmt.Printf("embedding: %s\n", stats.EmbeddingEngine)
		fmt.Printf("persistent: %t\n", stats.Persistent)
		printCounts("jurisdictions", stats.Jurisdictions)
		printCounts("domains", stats.Domains)
		return nil
	},
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", label)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit stats as JSON")
}
