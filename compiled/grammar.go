// Package compiled assembles a grammarir.Grammar, its tag-dispatch
// FSMs, and vocabulary metadata into a CompiledGrammar ready for a
// matcher to run against, and serializes that form to JSON or CBOR.
package compiled

import (
	"github.com/coregx/cfgmask/grammarir"
	"github.com/coregx/cfgmask/maskcache"
	"github.com/coregx/cfgmask/optimizer"
	"github.com/coregx/cfgmask/workerpool"
)

// CompiledGrammar is the grammar IR plus everything a matcher needs at
// runtime: the optimised rule set, per-rule compact FSMs (built at
// compile time; neither the matcher nor the mask computation reads
// them), tokenizer metadata, and the
// adaptive token-mask cache itself, per §3's "Grammar IR + compact FSMs
// + TokenizerInfo + a map StackElement -> AdaptiveTokenMask".
type CompiledGrammar struct {
	Grammar   *grammarir.Grammar
	FSMs      *optimizer.CompiledFSMs
	Tokenizer *TokenizerInfo
	Cache     *maskcache.Cache

	fingerprint uint64
}

// CompilerConfig configures a GrammarCompiler, following the teacher's
// functional Default.../With... option pattern (nfa.CompilerConfig).
type CompilerConfig struct {
	MaxThreads      int
	CacheEnabled    bool
	CacheLimitBytes int64
}

// DefaultCompilerConfig returns the teacher-style defaults: one worker
// per CPU, caching on, no byte budget.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{MaxThreads: 0, CacheEnabled: true, CacheLimitBytes: 0}
}

// CompilerOption mutates a CompilerConfig, mirroring nfa.WithAnchored
// etc.'s functional-option shape.
type CompilerOption func(*CompilerConfig)

// WithMaxThreads overrides the compiler's thread-pool size (<=0 means
// runtime.GOMAXPROCS(0), applied by workerpool.New).
func WithMaxThreads(n int) CompilerOption { return func(c *CompilerConfig) { c.MaxThreads = n } }

// WithCacheEnabled toggles whether a GrammarCompiler attaches a mask
// cache to grammars it compiles.
func WithCacheEnabled(enabled bool) CompilerOption {
	return func(c *CompilerConfig) { c.CacheEnabled = enabled }
}

// WithCacheLimitBytes bounds the mask cache's memory footprint.
func WithCacheLimitBytes(n int64) CompilerOption {
	return func(c *CompilerConfig) { c.CacheLimitBytes = n }
}

// GrammarCompiler turns a grammarir.Grammar into a CompiledGrammar: it
// runs the optimizer pipeline, builds per-rule FSMs, and attaches a
// tokenizer-aware mask cache. It owns a workerpool.Pool sized by
// MaxThreads, which Close shuts down; Compile runs the optimizer and the
// FSM build on the calling goroutine and submits no work to that pool.
type GrammarCompiler struct {
	tokenizer *TokenizerInfo
	cfg       CompilerConfig
	pool      *workerpool.Pool
}

// NewGrammarCompiler creates a compiler bound to a fixed tokenizer,
// matching §6's `GrammarCompiler::new(tokenizer, max_threads,
// cache_enabled, cache_limit_bytes)`.
func NewGrammarCompiler(tokenizer *TokenizerInfo, opts ...CompilerOption) *GrammarCompiler {
	cfg := DefaultCompilerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &GrammarCompiler{
		tokenizer: tokenizer,
		cfg:       cfg,
		pool:      workerpool.New(cfg.MaxThreads),
	}
}

// Compile runs the optimizer pipeline over g, builds its per-rule FSMs,
// and attaches a fresh (empty, lazily-populated) mask cache. The cache
// is populated on demand as a matcher visits states (see
// CompiledGrammar.MaskForMatcher); there is no eager precompute-every-
// state entry point, since the reachable stack-tops space can be
// unbounded for recursive grammars.
func (gc *GrammarCompiler) Compile(g *grammarir.Grammar) (*CompiledGrammar, error) {
	optimized, err := optimizer.Optimize(g)
	if err != nil {
		return nil, &CompileError{Stage: "optimize", Err: err}
	}
	return gc.compileOptimized(optimized)
}

// compileOptimized builds FSMs and a mask cache over a grammar that has
// already passed through the optimizer pipeline (or was loaded from a
// persisted form, where the optimizer already ran before the grammar was
// serialized). Re-running Optimize here would be harmless but wasteful.
func (gc *GrammarCompiler) compileOptimized(g *grammarir.Grammar) (*CompiledGrammar, error) {
	fsms, err := optimizer.BuildFSMs(g)
	if err != nil {
		return nil, &CompileError{Stage: "fsm-build", Err: err}
	}

	var cache *maskcache.Cache
	if gc.cfg.CacheEnabled {
		cache = maskcache.NewCache(maskcache.CacheConfig{MaxEntries: 100_000, MaxBytes: gc.cfg.CacheLimitBytes})
	}

	return &CompiledGrammar{
		Grammar:     g,
		FSMs:        fsms,
		Tokenizer:   gc.tokenizer,
		Cache:       cache,
		fingerprint: grammarFingerprint(g),
	}, nil
}

// ClearCache empties cg's own mask cache, per §6's `clear_cache`. Caches
// are owned by their CompiledGrammar (not the compiler), so this clears
// only this grammar's cache; other CompiledGrammars are not affected.
func (cg *CompiledGrammar) ClearCache() {
	if cg.Cache != nil {
		cg.Cache.Clear()
	}
}

// Close shuts down the compiler's worker pool. Safe to call once
// compilation work is done.
func (gc *GrammarCompiler) Close() { gc.pool.Close() }

// Fingerprint returns the grammar-fingerprint half of the mask cache's
// `(matcher-state, grammar-fingerprint)` key (§3 "Adaptive token-mask
// cache"), letting callers sharing one process-wide cache across
// multiple compiled grammars disambiguate otherwise-colliding state
// hashes.
func (cg *CompiledGrammar) Fingerprint() uint64 { return cg.fingerprint }

// grammarFingerprint hashes the grammar's rule and expression tables so
// two structurally different grammars essentially never share a
// fingerprint, without needing a full canonical serialization.
func grammarFingerprint(g *grammarir.Grammar) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	mix := func(v uint64) {
		h ^= v
		h *= prime64
	}
	mix(uint64(len(g.Rules)))
	mix(uint64(len(g.Exprs)))
	mix(uint64(g.RootID))
	for _, r := range g.Rules {
		for _, c := range r.Name {
			mix(uint64(c))
		}
		mix(uint64(r.Body))
	}
	for _, e := range g.Exprs {
		mix(uint64(e.Type))
		for _, c := range e.Bytes {
			mix(uint64(c))
		}
		for _, r := range e.Ranges {
			mix(uint64(r.Low))
			mix(uint64(r.High))
		}
		for _, el := range e.Elements {
			mix(uint64(el))
		}
		mix(uint64(e.Ref))
		mix(uint64(e.Min))
		mix(uint64(e.Max))
	}
	return h
}
