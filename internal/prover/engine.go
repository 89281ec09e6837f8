package prover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"normlex/internal/logging"
	"normlex/internal/types"
)

// Config tunes the proof engine. Zero values fall back to defaults.
type Config struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputBytes  int64         `yaml:"max_output_bytes"`
	CacheEnabled    bool          `yaml:"cache_enabled"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	TimeoutCacheTTL time.Duration `yaml:"timeout_cache_ttl"`
	// RatePerSecond limits proof attempts across all backends. Zero
	// disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// DefaultConfig enables caching with a short TTL for timed-out proofs, so a
// known-slow query is not retried on every call but recovers quickly.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxOutputBytes:  1 << 20,
		CacheEnabled:    true,
		CacheTTL:        10 * time.Minute,
		TimeoutCacheTTL: 60 * time.Second,
	}
}

// backend is one registered prover: its binary, its translator, and whether
// the binary was found on PATH at construction time.
type backend struct {
	name       string
	binary     string
	path       string
	available  bool
	translator Translator
	args       func(sourcePath string) []string
}

// Engine is the proof execution engine. Availability of each backend is
// resolved once in NewEngine and never re-probed; an unavailable backend
// yields UNSUPPORTED results, not errors.
type Engine struct {
	log      *zap.Logger
	cfg      Config
	backends map[string]*backend
	runner   *runner
	cache    *gocache.Cache
	limiter  *rate.Limiter
}

// NewEngine probes the lean, coq and z3 binaries and builds the capability
// table. Construction never fails: a host with no provers installed still
// gets a working engine that answers UNSUPPORTED.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.TimeoutCacheTTL <= 0 {
		cfg.TimeoutCacheTTL = def.TimeoutCacheTTL
	}

	e := &Engine{
		log:      logging.Named(logging.CategoryProver),
		cfg:      cfg,
		backends: make(map[string]*backend),
		runner:   &runner{timeout: cfg.Timeout, maxOutput: cfg.MaxOutputBytes},
	}
	if cfg.CacheEnabled {
		e.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	e.register("lean", "lean", LeanTranslator{}, func(p string) []string { return []string{p} })
	e.register("coq", "coqc", CoqTranslator{}, func(p string) []string { return []string{"-q", p} })
	e.register("z3", "z3", SMTTranslator{}, func(p string) []string { return []string{"-smt2", p} })
	return e
}

func (e *Engine) register(name, binary string, tr Translator, args func(string) []string) {
	b := &backend{name: name, binary: binary, translator: tr, args: args}
	if path, err := exec.LookPath(binary); err == nil {
		b.available = true
		b.path = path
		e.log.Info("prover backend available", zap.String("prover", name), zap.String("path", path))
	} else {
		e.log.Info("prover backend not found", zap.String("prover", name), zap.String("binary", binary))
	}
	e.backends[name] = b
}

// Provers returns the registered backend names in sorted order, available
// or not.
func (e *Engine) Provers() []string {
	names := make([]string, 0, len(e.backends))
	for name := range e.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available reports whether the named backend's binary was found.
func (e *Engine) Available(prover string) bool {
	b, ok := e.backends[prover]
	return ok && b.available
}

// ProveDeonticFormula attempts a formal proof of one formula. Exactly one
// ProofResult is returned for every call; ordinary failures (unknown
// backend, missing binary, translation error, timeout) are statuses, never
// errors.
func (e *Engine) ProveDeonticFormula(ctx context.Context, f types.DeonticFormula, prover string) types.ProofResult {
	return e.prove(ctx, prover, f.CanonicalText(), func(tr Translator) (string, error) {
		return tr.TranslateFormula(f)
	})
}

// ProveRuleSet proves a whole formula set in one backend invocation. An
// empty set succeeds trivially without touching any backend.
func (e *Engine) ProveRuleSet(ctx context.Context, fs []types.DeonticFormula, prover string) types.ProofResult {
	if len(fs) == 0 {
		return types.ProofResult{
			Prover:   prover,
			Status:   types.ProofSuccess,
			Metadata: map[string]string{"note": "empty rule set"},
		}
	}
	texts := make([]string, len(fs))
	for i, f := range fs {
		texts[i] = f.CanonicalText()
	}
	statement := strings.Join(texts, " ∧ ")
	return e.prove(ctx, prover, statement, func(tr Translator) (string, error) {
		return tr.TranslateRuleSet(fs)
	})
}

// ProveConsistency checks whether a rule set is jointly satisfiable. Only
// the z3 backend searches for conflicts (unsat means inconsistent); the
// proof-assistant backends validate the encoding and report consistent on
// success. Indeterminate outcomes (timeout, error) lean consistent and
// leave the verdict to the returned result's status.
func (e *Engine) ProveConsistency(ctx context.Context, fs []types.DeonticFormula, prover string) (bool, types.ProofResult) {
	res := e.ProveRuleSet(ctx, fs, prover)
	switch res.Status {
	case types.ProofSatisfiable:
		return true, res
	case types.ProofSuccess:
		if prover == "z3" && len(fs) > 0 {
			// unsat: the asserted norms cannot jointly hold.
			return false, res
		}
		return true, res
	default:
		return true, res
	}
}

// ProveMultipleProvers fans one formula out to every registered backend and
// returns one entry per backend regardless of availability, so callers see
// a stable key set.
func (e *Engine) ProveMultipleProvers(ctx context.Context, f types.DeonticFormula) map[string]types.ProofResult {
	names := e.Provers()
	results := make([]types.ProofResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			results[i] = e.ProveDeonticFormula(gctx, f, name)
			return nil
		})
	}
	g.Wait()

	out := make(map[string]types.ProofResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// prove is the single-invocation path shared by formula and rule-set entry
// points: capability check, cache, rate limit, translate, run, classify.
func (e *Engine) prove(ctx context.Context, prover, statement string, translate func(Translator) (string, error)) types.ProofResult {
	result := types.ProofResult{Prover: prover, Statement: statement}

	b, ok := e.backends[prover]
	if !ok {
		result.Status = types.ProofUnsupported
		result.Errors = []string{fmt.Sprintf("unknown prover %q", prover)}
		return result
	}
	if !b.available {
		result.Status = types.ProofUnsupported
		result.Errors = []string{fmt.Sprintf("prover binary %q not found on PATH", b.binary)}
		return result
	}

	cacheKey := prover + "|" + statement
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			res := cached.(types.ProofResult)
			e.log.Debug("proof cache hit", zap.String("prover", prover))
			return res
		}
	}

	if e.limiter != nil && !e.limiter.Allow() {
		result.Status = types.ProofError
		result.Errors = []string{"proof rate limit exceeded"}
		return result
	}

	source, err := translate(b.translator)
	if err != nil {
		result.Status = types.ProofError
		result.Errors = []string{fmt.Sprintf("translation failed: %v", err)}
		return result
	}

	run, err := e.execute(ctx, b, source)
	if err != nil {
		result.Status = types.ProofError
		result.Errors = []string{err.Error()}
		return result
	}
	result.Elapsed = run.Elapsed
	e.classify(b, source, run, &result)

	if e.cache != nil {
		ttl := e.cfg.CacheTTL
		if result.Status == types.ProofTimeout {
			ttl = e.cfg.TimeoutCacheTTL
		}
		e.cache.Set(cacheKey, result, ttl)
	}

	e.log.Debug("proof attempt finished",
		zap.String("prover", prover),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", result.Elapsed))
	return result
}

// execute writes the translated source to a temp file and runs the backend
// on it.
func (e *Engine) execute(ctx context.Context, b *backend, source string) (runResult, error) {
	tmp, err := os.CreateTemp("", "normlex_proof_*"+b.translator.FileExtension())
	if err != nil {
		return runResult{}, fmt.Errorf("create proof source file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return runResult{}, fmt.Errorf("write proof source: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return runResult{}, fmt.Errorf("close proof source: %w", err)
	}

	return e.runner.run(ctx, b.path, b.args(path)...)
}

// classify maps raw backend output to a proof status using backend-specific
// markers.
func (e *Engine) classify(b *backend, source string, run runResult, result *types.ProofResult) {
	if run.TimedOut {
		result.Status = types.ProofTimeout
		result.Errors = []string{fmt.Sprintf("prover exceeded %s timeout", e.cfg.Timeout)}
		return
	}

	switch b.name {
	case "z3":
		for _, tok := range strings.Fields(run.Stdout) {
			switch tok {
			case "unsat":
				result.Status = types.ProofSuccess
				result.Proof = source
				return
			case "sat":
				result.Status = types.ProofSatisfiable
				return
			case "unknown", "timeout":
				result.Status = types.ProofTimeout
				result.Errors = []string{"solver returned unknown"}
				return
			}
		}
		result.Status = types.ProofError
		result.Errors = outputErrors(run)

	default:
		if run.ExitCode == 0 {
			result.Status = types.ProofSuccess
			result.Proof = source
			return
		}
		result.Status = types.ProofFailure
		result.Errors = outputErrors(run)
	}
}

// outputErrors extracts a bounded number of diagnostic lines from backend
// output.
func outputErrors(run runResult) []string {
	const maxLines = 5
	var errs []string
	for _, line := range strings.Split(run.Stderr+"\n"+run.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		errs = append(errs, line)
		if len(errs) == maxLines {
			break
		}
	}
	if len(errs) == 0 {
		errs = []string{fmt.Sprintf("prover exited with code %d and no output", run.ExitCode)}
	}
	return errs
}
