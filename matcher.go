package cfgmask

import (
	"fmt"

	"github.com/coregx/cfgmask/compiled"
	"github.com/coregx/cfgmask/matcher"
	"github.com/coregx/cfgmask/workerpool"
)

// matcherConfig collects GrammarMatcher construction options, mirroring
// §6's `GrammarMatcher::new(compiled, override_stop_tokens,
// terminate_without_stop, max_rollback_tokens)`.
type matcherConfig struct {
	overrideStopTokens   []int32
	terminateWithoutStop bool
	maxRollbackTokens    int
	pool                 *workerpool.Pool
}

// MatcherOption configures a GrammarMatcher at construction time.
type MatcherOption func(*matcherConfig)

// WithOverrideStopTokens replaces the compiled grammar's tokenizer-derived
// stop token ids with ids, per §6's `override_stop_tokens`.
func WithOverrideStopTokens(ids []int32) MatcherOption {
	return func(c *matcherConfig) { c.overrideStopTokens = ids }
}

// WithTerminateWithoutStop allows the matcher to report IsTerminated once
// the grammar can reach its end, even without consuming a configured stop
// token, per §6's `terminate_without_stop`.
func WithTerminateWithoutStop(v bool) MatcherOption {
	return func(c *matcherConfig) { c.terminateWithoutStop = v }
}

// WithMaxRollbackTokens bounds how many tokens Rollback can undo.
func WithMaxRollbackTokens(n int) MatcherOption {
	return func(c *matcherConfig) { c.maxRollbackTokens = n }
}

// WithMatcherWorkerPool supplies the worker pool FillNextTokenBitmask uses
// to parallelize uncertain-token resolution (compiled.MaskForMatcher). A
// matcher constructed without one allocates a single-worker pool of its
// own and closes it in Close.
func WithMatcherWorkerPool(pool *workerpool.Pool) MatcherOption {
	return func(c *matcherConfig) { c.pool = pool }
}

// GrammarMatcher drives one in-flight generation against a CompiledGrammar:
// it tracks the live grammar state, answers FillNextTokenBitmask before
// each sampling step, and advances via AcceptToken/AcceptString after it,
// matching §6's `GrammarMatcher` handle type.
type GrammarMatcher struct {
	cg         *compiled.CompiledGrammar
	m          *matcher.Matcher
	pool       *workerpool.Pool
	ownsPool   bool
	termNoStop bool
}

// NewGrammarMatcher creates a matcher bound to cg, per §6's
// `GrammarMatcher::new`.
func NewGrammarMatcher(cg *compiled.CompiledGrammar, opts ...MatcherOption) *GrammarMatcher {
	cfg := matcherConfig{maxRollbackTokens: 0}
	for _, o := range opts {
		o(&cfg)
	}
	stopIDs := cfg.overrideStopTokens
	if stopIDs == nil {
		stopIDs = cg.Tokenizer.StopTokenIDs()
	}
	pool := cfg.pool
	ownsPool := false
	if pool == nil {
		pool = workerpool.New(1)
		ownsPool = true
	}
	return &GrammarMatcher{
		cg:         cg,
		m:          matcher.NewMatcher(cg.Grammar, cfg.maxRollbackTokens, stopIDs),
		pool:       pool,
		ownsPool:   ownsPool,
		termNoStop: cfg.terminateWithoutStop,
	}
}

// Close releases the worker pool if it was allocated by NewGrammarMatcher
// itself rather than supplied via WithMatcherWorkerPool.
func (gm *GrammarMatcher) Close() {
	if gm.ownsPool {
		gm.pool.Close()
	}
}

// AcceptToken feeds one vocabulary token id, decoding it through the
// compiled grammar's tokenizer, per §6's `accept_token`.
func (gm *GrammarMatcher) AcceptToken(id int32) bool {
	tokenBytes := gm.cg.Tokenizer.Decode(id)
	return gm.m.AcceptToken(id, tokenBytes)
}

// AcceptString feeds a raw byte string directly, bypassing token
// decoding, per §6's `accept_string`.
func (gm *GrammarMatcher) AcceptString(s []byte) bool {
	return gm.m.AcceptString(s)
}

// FillNextTokenBitmask computes the adaptive token mask for the matcher's
// current state and writes its bit-packed form into dst, per §6's
// `fill_next_token_bitmask`. dst must have at least
// ceil(vocabSize/32) uint32 words (maskcache.Bitset's packing).
func (gm *GrammarMatcher) FillNextTokenBitmask(dst []uint32) error {
	mask, err := gm.cg.MaskForMatcher(gm.pool, gm.m)
	if err != nil {
		return fmt.Errorf("cfgmask: fill next token bitmask: %w", err)
	}
	mask.ApplyInto(dst)
	return nil
}

// FindJumpForwardString returns the longest byte run that is forced by
// the current grammar state regardless of which accepted token is chosen
// next, per §6's `find_jump_forward_string`.
func (gm *GrammarMatcher) FindJumpForwardString() []byte {
	return gm.m.FindJumpForwardString()
}

// Rollback undoes the last n accepted tokens, per §6's `rollback`.
func (gm *GrammarMatcher) Rollback(n int) error {
	return gm.m.Rollback(n)
}

// Reset returns the matcher to its initial, post-construction state, per
// §6's `reset`.
func (gm *GrammarMatcher) Reset() {
	gm.m.Reset()
}

// IsTerminated reports whether generation is complete: either a stop
// token was consumed, or (when constructed with
// WithTerminateWithoutStop) the grammar can already reach its end, per
// §6's `is_terminated`.
func (gm *GrammarMatcher) IsTerminated() bool {
	if gm.m.IsTerminated() {
		return true
	}
	return gm.termNoStop && gm.m.CanReachEnd()
}

// CanReachEnd reports whether the matcher's current state is already a
// complete match of the grammar.
func (gm *GrammarMatcher) CanReachEnd() bool {
	return gm.m.CanReachEnd()
}
