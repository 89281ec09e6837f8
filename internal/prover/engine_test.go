package prover

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"normlex/internal/types"
)

func testFormula(t *testing.T) types.DeonticFormula {
	t.Helper()
	f, err := types.NewDeonticFormula(types.Obligation, "pay rent", "tenant", 0.9)
	require.NoError(t, err)
	return f
}

func TestUnknownProverUnsupported(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.ProveDeonticFormula(context.Background(), testFormula(t), "prolog")
	require.Equal(t, types.ProofUnsupported, res.Status)
	require.Equal(t, "prolog", res.Prover)
	require.NotEmpty(t, res.Errors)
}

func TestUnavailableBackendUnsupported(t *testing.T) {
	if _, err := exec.LookPath("lean"); err == nil {
		t.Skip("lean installed on this host")
	}
	e := NewEngine(DefaultConfig())

	res := e.ProveDeonticFormula(context.Background(), testFormula(t), "lean")
	require.Equal(t, types.ProofUnsupported, res.Status)
}

func TestEmptyRuleSetNeverTouchesBackend(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Even an unknown prover succeeds on the empty set: there is nothing
	// to prove, so no capability check happens.
	res := e.ProveRuleSet(context.Background(), nil, "prolog")
	require.Equal(t, types.ProofSuccess, res.Status)

	consistent, res := e.ProveConsistency(context.Background(), nil, "z3")
	require.True(t, consistent)
	require.Equal(t, types.ProofSuccess, res.Status)
}

func TestProveMultipleProversStableKeySet(t *testing.T) {
	e := NewEngine(DefaultConfig())

	results := e.ProveMultipleProvers(context.Background(), testFormula(t))
	require.Len(t, results, len(e.Provers()))
	for _, name := range e.Provers() {
		res, ok := results[name]
		require.True(t, ok, "missing entry for %s", name)
		require.Equal(t, name, res.Prover)
	}
}

func TestProversSorted(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.Equal(t, []string{"coq", "lean", "z3"}, e.Provers())
}

func TestRateLimitRejectsBeforeTranslation(t *testing.T) {
	if _, err := exec.LookPath("z3"); err != nil {
		t.Skip("z3 not installed")
	}
	cfg := DefaultConfig()
	cfg.CacheEnabled = false
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 1
	e := NewEngine(cfg)

	first := e.ProveDeonticFormula(context.Background(), testFormula(t), "z3")
	require.NotEqual(t, types.ProofError, first.Status)

	second := e.ProveDeonticFormula(context.Background(), testFormula(t), "z3")
	require.Equal(t, types.ProofError, second.Status)
	require.Contains(t, second.Errors[0], "rate limit")
}

func TestZ3Classification(t *testing.T) {
	e := NewEngine(DefaultConfig())
	b := e.backends["z3"]

	cases := []struct {
		name   string
		run    runResult
		status types.ProofStatus
	}{
		{"unsat", runResult{Stdout: "unsat\n"}, types.ProofSuccess},
		{"sat", runResult{Stdout: "sat\n"}, types.ProofSatisfiable},
		{"unknown", runResult{Stdout: "unknown\n"}, types.ProofTimeout},
		{"timed_out", runResult{TimedOut: true}, types.ProofTimeout},
		{"garbage", runResult{Stderr: "error: parse failure", ExitCode: 1}, types.ProofError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var res types.ProofResult
			e.classify(b, "(check-sat)", tc.run, &res)
			require.Equal(t, tc.status, res.Status)
		})
	}
}

func TestProofAssistantClassification(t *testing.T) {
	e := NewEngine(DefaultConfig())
	b := e.backends["lean"]

	var ok types.ProofResult
	e.classify(b, "theorem t : True := trivial", runResult{ExitCode: 0}, &ok)
	require.Equal(t, types.ProofSuccess, ok.Status)
	require.NotEmpty(t, ok.Proof)

	var bad types.ProofResult
	e.classify(b, "theorem t : False := trivial", runResult{ExitCode: 1, Stderr: "error: type mismatch"}, &bad)
	require.Equal(t, types.ProofFailure, bad.Status)
	require.Contains(t, bad.Errors[0], "type mismatch")
}

func TestZ3ConsistencyEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("z3"); err != nil {
		t.Skip("z3 not installed")
	}
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	e := NewEngine(cfg)

	obliged, err := types.NewDeonticFormula(types.Obligation, "pay rent", "tenant", 1)
	require.NoError(t, err)
	prohibited, err := types.NewDeonticFormula(types.Prohibition, "pay rent", "tenant", 1)
	require.NoError(t, err)

	consistent, res := e.ProveConsistency(context.Background(), []types.DeonticFormula{obliged, prohibited}, "z3")
	require.False(t, consistent)
	require.Equal(t, types.ProofSuccess, res.Status)

	consistent, res = e.ProveConsistency(context.Background(), []types.DeonticFormula{obliged}, "z3")
	require.True(t, consistent)
	require.Equal(t, types.ProofSatisfiable, res.Status)
}
