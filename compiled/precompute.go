package compiled

import (
	"github.com/coregx/cfgmask/maskcache"
	"github.com/coregx/cfgmask/matcher"
	"github.com/coregx/cfgmask/workerpool"
)

// MaskForMatcher returns the AdaptiveTokenMask for m's current state,
// computing it via a parallel vocabulary sweep on a cache miss and
// reusing cg's cache across every matcher built over the same grammar
// (§3: "adaptive ... cache keyed by matcher state"). The state key mixes
// in cg's grammar fingerprint so two CompiledGrammars built from
// structurally different grammars never collide in a shared cache.
//
// This is deliberately lazy rather than an eager enumeration of every
// reachable state up front: for grammars whose stack-tops state space is
// combinatorially large (nested repetition, deep recursion), enumerating
// every state ahead of time is intractable, whereas the states a real
// decoding loop actually visits are bounded by the sequence length it
// generates. Warm the cache incrementally by calling this once per
// decoding step, the way xgrammar's own adaptive cache is used.
func (cg *CompiledGrammar) MaskForMatcher(pool *workerpool.Pool, m *matcher.Matcher) (*maskcache.AdaptiveTokenMask, error) {
	return cg.MaskForBase(pool, m.Base())
}

// MaskForBase is the Base-level counterpart of MaskForMatcher, for
// callers holding a matcher.Base rather than a whole Matcher.
func (cg *CompiledGrammar) MaskForBase(pool *workerpool.Pool, b *matcher.Base) (*maskcache.AdaptiveTokenMask, error) {
	key := cg.stateKey(b)
	if cg.Cache == nil {
		return cg.computeMask(pool, b)
	}
	return cg.Cache.GetOrCompute(key, func() (*maskcache.AdaptiveTokenMask, error) {
		return cg.computeMask(pool, b)
	})
}

// stateKey combines b's live stack-tops signature with the grammar
// fingerprint into a single maskcache.StateKey.
func (cg *CompiledGrammar) stateKey(b *matcher.Base) maskcache.StateKey {
	tops := b.CurrentTops()
	mixed := make([]int64, len(tops)+1)
	for i, t := range tops {
		mixed[i] = int64(t)
	}
	mixed[len(tops)] = int64(cg.fingerprint)
	return maskcache.HashStackTops(mixed)
}

// vocabSweepChunk is the number of vocabulary entries handed to a single
// workerpool task, balancing per-task overhead against how finely work
// can be load-balanced across workers.
const vocabSweepChunk = 512

// computeMask sweeps the entire tokenizer vocabulary against a Fork of
// b, partitioning ids into accepted, rejected, and uncertain
// (HasActiveTagDispatch) sets in parallel chunks, then classifies the
// result into whichever of the four AdaptiveTokenMask storage forms is
// smallest.
func (cg *CompiledGrammar) computeMask(pool *workerpool.Pool, b *matcher.Base) (*maskcache.AdaptiveTokenMask, error) {
	vocab := cg.Tokenizer.DecodedVocab()
	vocabSize := cg.Tokenizer.VocabSize()
	stopIDs := cg.Tokenizer.StopTokenIDs()
	stopSet := make(map[int32]bool, len(stopIDs))
	for _, id := range stopIDs {
		stopSet[id] = true
	}

	canReachEnd := b.CanReachEnd()

	type result struct {
		accepted, rejected, uncertain []int32
	}
	n := len(vocab)
	numChunks := (n + vocabSweepChunk - 1) / vocabSweepChunk
	if numChunks == 0 {
		numChunks = 1
	}
	results := make([]result, numChunks)

	counter := workerpool.NewTaskCounter(pool)
	for c := 0; c < numChunks; c++ {
		c := c
		start := c * vocabSweepChunk
		end := start + vocabSweepChunk
		if end > n {
			end = n
		}
		counter.Submit(func() {
			var r result
			for id := start; id < end; id++ {
				tokID := int32(id)
				if stopSet[tokID] {
					if canReachEnd {
						r.accepted = append(r.accepted, tokID)
					} else {
						r.rejected = append(r.rejected, tokID)
					}
					continue
				}
				tokenBytes := vocab[id]
				if len(tokenBytes) == 0 {
					r.rejected = append(r.rejected, tokID)
					continue
				}
				switch classifyToken(b, tokenBytes) {
				case tokenAccepted:
					r.accepted = append(r.accepted, tokID)
				case tokenRejected:
					r.rejected = append(r.rejected, tokID)
				case tokenUncertain:
					r.uncertain = append(r.uncertain, tokID)
				}
			}
			results[c] = r
		})
	}
	counter.Wait()

	var accepted, rejected, uncertain []int32
	for _, r := range results {
		accepted = append(accepted, r.accepted...)
		rejected = append(rejected, r.rejected...)
		uncertain = append(uncertain, r.uncertain...)
	}
	for id := len(vocab); id < vocabSize; id++ {
		rejected = append(rejected, int32(id))
	}

	return maskcache.Classify(accepted, rejected, uncertain, vocabSize), nil
}

type tokenStatus int

const (
	tokenRejected tokenStatus = iota
	tokenAccepted
	tokenUncertain
)

// classifyToken forks b and feeds tokenBytes through the fork byte by
// byte, never mutating b itself, so many goroutines can classify
// different tokens against the same state concurrently.
func classifyToken(b *matcher.Base, tokenBytes []byte) tokenStatus {
	probe := b.Fork()
	for _, c := range tokenBytes {
		if !probe.Accept(c) {
			return tokenRejected
		}
	}
	if probe.HasActiveTagDispatch() {
		return tokenUncertain
	}
	return tokenAccepted
}

// ResolveUncertainToken re-checks a single uncertain token id against
// b's live state, for a decoding loop that sampled a token the cached
// mask had marked uncertain and needs a definitive answer before
// committing to it. It returns the same verdict AcceptToken would once
// followed by whatever bytes come next, but without mutating b.
func ResolveUncertainToken(b *matcher.Base, tokenBytes []byte) bool {
	probe := b.Fork()
	for _, c := range tokenBytes {
		if !probe.Accept(c) {
			return false
		}
	}
	return true
}
