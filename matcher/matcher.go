package matcher

import "github.com/coregx/cfgmask/grammarir"

// Matcher is the public, single-threaded Earley-over-FSM matcher named
// in §6's CLI surface (`GrammarMatcher::new`, `accept_token`,
// `accept_string`, `rollback`, `reset`, `is_terminated`). It layers
// token-level operations and per-token rollback bookkeeping over Base's
// byte-level engine.
//
// A Matcher must not be advanced from multiple goroutines concurrently
// (§5 "Matchers are single-threaded objects"); independent Matchers over
// the same *grammarir.Grammar may run in parallel, since the grammar is
// immutable after compilation.
type Matcher struct {
	base *Base

	maxRollbackTokens int
	tokenBoundaries   []int // history length (bytes consumed) after each committed token
	terminated        bool
	stopTokenIDs      map[int32]bool
}

// NewMatcher creates a Matcher at the grammar's root, seeded via
// ε-expansion per §4.H's Initialisation step. maxRollbackTokens bounds
// how many Rollback(n) calls can undo; 0 forbids Rollback entirely.
func NewMatcher(g *grammarir.Grammar, maxRollbackTokens int, stopTokenIDs []int32) *Matcher {
	b := newBase(g)
	b.PushInitialState()
	stops := make(map[int32]bool, len(stopTokenIDs))
	for _, id := range stopTokenIDs {
		stops[id] = true
	}
	return &Matcher{
		base:              b,
		maxRollbackTokens: maxRollbackTokens,
		tokenBoundaries:   []int{0},
		stopTokenIDs:      stops,
	}
}

// AcceptString feeds every byte of s through the matcher as a single
// token boundary, per §4.H's AcceptToken: on any byte rejection every
// partial advance within this call is rolled back and false is
// returned, leaving the matcher state unchanged.
func (m *Matcher) AcceptString(s []byte) bool {
	if m.terminated {
		return false
	}
	start := m.base.history.Len()
	for _, c := range s {
		if !m.base.AcceptByte(c) {
			m.base.RollbackBytes(m.base.history.Len() - start)
			return false
		}
	}
	// tokenBoundaries stores byte counts (0 == no bytes consumed yet),
	// not raw history.Len() values: history.Len() == bytes consumed + 1
	// because PushInitialState records a baseline snapshot before any
	// byte is accepted.
	m.tokenBoundaries = append(m.tokenBoundaries, m.base.history.Len()-1)
	return true
}

// AcceptToken feeds one vocabulary token: if id is a configured stop
// token and the matcher can already reach grammar end, the matcher
// terminates without consuming bytes. Otherwise tokenBytes is decoded
// and fed via AcceptString.
func (m *Matcher) AcceptToken(id int32, tokenBytes []byte) bool {
	if m.terminated {
		return false
	}
	if m.stopTokenIDs[id] {
		if m.base.CanReachEnd() {
			m.terminated = true
			return true
		}
		return false
	}
	return m.AcceptString(tokenBytes)
}

// CanReachEnd reports whether the current state is a complete match of
// the grammar (§4.H "Can-reach-end").
func (m *Matcher) CanReachEnd() bool { return m.base.CanReachEnd() }

// IsTerminated reports whether the matcher has consumed a stop token.
func (m *Matcher) IsTerminated() bool { return m.terminated }

// Rollback undoes the last n committed tokens (AcceptToken/AcceptString
// calls), per §4.H's Rollback(n). It is an error to roll back further
// than maxRollbackTokens allows.
func (m *Matcher) Rollback(n int) error {
	if n == 0 {
		return nil
	}
	if m.maxRollbackTokens == 0 {
		return errMaxRollbackZero
	}
	if n > len(m.tokenBoundaries)-1 {
		n = len(m.tokenBoundaries) - 1
	}
	if n > m.maxRollbackTokens {
		return errRollbackExceedsLimit
	}
	target := m.tokenBoundaries[len(m.tokenBoundaries)-1-n]
	bytesToUndo := m.base.history.Len() - 1 - target
	m.base.RollbackBytes(bytesToUndo)
	m.tokenBoundaries = m.tokenBoundaries[:len(m.tokenBoundaries)-n]
	m.terminated = false
	return nil
}

// Reset returns the matcher to its initial, post-construction state.
func (m *Matcher) Reset() {
	g := m.base.g
	m.base = newBase(g)
	m.base.PushInitialState()
	m.tokenBoundaries = []int{0}
	m.terminated = false
}

// CurrentStackTops exposes the live stack-top ids for the mask cache's
// state-key hashing (maskcache.HashStackTops).
func (m *Matcher) CurrentStackTops() []int32 { return m.base.history.GetLatest() }

// Base exposes the underlying byte-level engine for callers (the mask
// cache precompute sweep) that need to probe hypothetical continuations
// without mutating this matcher's committed state.
func (m *Matcher) Base() *Base { return m.base }

// maxJumpForward bounds FindJumpForwardString's walk so a grammar with a
// very long forced literal (or, pathologically, no forced terminator)
// cannot run unbounded.
const maxJumpForward = 4096

// FindJumpForwardString implements §4.H's jump-forward decoding: starting
// from the current state, it walks forward one byte at a time as long as
// exactly one byte value is accepted by the live stack tops, stopping on
// ambiguity or grammar end. It operates on a Fork of the current state,
// so the real matcher is left untouched (§4.H: "restore state via
// rollback", achieved here by simply discarding the probe).
func (m *Matcher) FindJumpForwardString() []byte {
	probe := m.base.Fork()
	var out []byte
	for len(out) < maxJumpForward {
		forced, ok := soleAcceptedByte(probe)
		if !ok {
			break
		}
		if !probe.Accept(forced) {
			break
		}
		out = append(out, forced)
	}
	return out
}

// soleAcceptedByte reports the single byte value accepted by at least
// one current stack top, if exactly one such byte exists.
func soleAcceptedByte(b *Base) (byte, bool) {
	tops := b.CurrentTops()
	found := false
	var forced byte
	for v := 0; v < 256; v++ {
		accepted := false
		for _, topID := range tops {
			elem := b.stack.Get(topID)
			if elem.isEndOfGrammar(b.g) {
				continue
			}
			if b.CheckIfAccepted(elem, byte(v)) {
				accepted = true
				break
			}
		}
		if accepted {
			if found {
				return 0, false
			}
			found = true
			forced = byte(v)
		}
	}
	return forced, found
}
