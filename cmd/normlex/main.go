// normlex checks legal and normative documents for deontic consistency
// against a theorem corpus.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"normlex/internal/checker"
	"normlex/internal/config"
	"normlex/internal/embedding"
	"normlex/internal/logging"
	"normlex/internal/prover"
	"normlex/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "normlex",
	Short: "normlex - deontic consistency checker for normative documents",
	Long: `normlex extracts deontic statements (obligations, permissions,
prohibitions) from legal documents, checks them against a theorem corpus for
logical and temporal conflicts, and optionally verifies them with external
provers (lean, coq, z3).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := logging.Init(verbose); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Debug = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// components bundles the wired pipeline for one command invocation.
type components struct {
	store   *store.Store
	checker *checker.Checker
	prover  *prover.Engine
}

// buildComponents wires config → embedding engine → store → checker/prover.
func buildComponents(withProver bool) (*components, error) {
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	st, err := store.New(cfg.Store, engine)
	if err != nil {
		return nil, fmt.Errorf("theorem store: %w", err)
	}

	c := &components{store: st}
	var opts []checker.Option
	if withProver {
		c.prover = prover.NewEngine(cfg.Prover)
		if c.prover.Available("z3") {
			opts = append(opts, checker.WithProver(c.prover, "z3"))
		}
	}
	c.checker = checker.NewChecker(st, cfg.Checker, opts...)
	return c, nil
}

func (c *components) Close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to normlex.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkCmd, ingestCmd, proveCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
