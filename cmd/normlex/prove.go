package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"normlex/internal/checker"
	"normlex/internal/prover"
	"normlex/internal/types"
)

var (
	proveBackend string
	proveAll     bool
)

var proveCmd = &cobra.Command{
	Use:   "prove <file>",
	Short: "Formally verify the deontic statements of a document",
	Long: `Extracts deontic statements from a document and attempts to prove
each with the selected backend, or with every registered backend using
--all. Joint satisfiability of the whole statement set is checked with z3
when it is available.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		formulas, err := checker.NewRegexExtractor().ExtractFormulas(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("extract formulas: %w", err)
		}
		if len(formulas) == 0 {
			fmt.Println("no deontic statements found")
			return nil
		}

		engine := prover.NewEngine(cfg.Prover)
		for _, f := range formulas {
			if proveAll {
				for name, res := range engine.ProveMultipleProvers(cmd.Context(), f) {
					printProof(name, f, res)
				}
				continue
			}
			printProof(proveBackend, f, engine.ProveDeonticFormula(cmd.Context(), f, proveBackend))
		}

		if engine.Available("z3") {
			consistent, res := engine.ProveConsistency(cmd.Context(), formulas, "z3")
			fmt.Printf("joint consistency (z3): consistent=%t status=%s\n", consistent, res.Status)
		}
		return nil
	},
}

func printProof(name string, f types.DeonticFormula, res types.ProofResult) {
	fmt.Printf("%-5s %-12s %s", name, res.Status, f.CanonicalText())
	if len(res.Errors) > 0 {
		fmt.Printf("  (%s)", res.Errors[0])
	}
	fmt.Println()
}

func init() {
	proveCmd.Flags().StringVar(&proveBackend, "prover", "z3", "backend: lean, coq or z3")
	proveCmd.Flags().BoolVar(&proveAll, "all", false, "try every registered backend")
}
