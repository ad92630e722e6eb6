package fsm

import "sort"

// linearScanThreshold is the edge-count cutoff below which Transition uses
// a linear scan instead of binary search, per the compact-form spec
// ("if state has ≤ 16 edges, linear scan ... otherwise binary search").
const linearScanThreshold = 16

// CompactFSM is the CSR-packed, edge-sorted form of an FSM used at match
// time: offsets index into a flat, per-state-sorted edge array so a byte
// lookup is either a short linear scan or a binary search.
type CompactFSM struct {
	offsets []int32 // len(States)+1
	edges   []Edge  // edges[offsets[s]:offsets[s+1]] sorted by Low, for state s
	start   StateID
	accept  map[StateID]bool
	isDFA   bool
}

// Compact packs f into CSR form. Edges are sorted by Low within each
// state so Transition can binary-search large fan-out states.
func Compact(f FsmWithStartEnd) *CompactFSM {
	n := len(f.FSM.States)
	offsets := make([]int32, n+1)
	var edges []Edge
	for s := 0; s < n; s++ {
		st := f.FSM.States[s]
		sorted := append([]Edge(nil), st.Edges...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Low < sorted[j].Low })
		edges = append(edges, sorted...)
		offsets[s+1] = int32(len(edges))
	}
	accept := make(map[StateID]bool, len(f.Accept))
	for a := range f.Accept {
		accept[a] = true
	}
	return &CompactFSM{offsets: offsets, edges: edges, start: f.Start, accept: accept, isDFA: f.IsDFA}
}

// Start returns the compact FSM's start state.
func (c *CompactFSM) Start() StateID { return c.start }

// IsAccept reports whether s is an accept state.
func (c *CompactFSM) IsAccept(s StateID) bool { return c.accept[s] }

// IsDFA reports whether this FSM is deterministic (at most one outgoing
// edge matches any given byte, for every state).
func (c *CompactFSM) IsDFA() bool { return c.isDFA }

// NumStates returns the number of states.
func (c *CompactFSM) NumStates() int { return len(c.offsets) - 1 }

// stateEdges returns the sorted edge slice for state s.
func (c *CompactFSM) stateEdges(s StateID) []Edge {
	return c.edges[c.offsets[s]:c.offsets[s+1]]
}

// Transition finds the edge leaving s whose range covers byte b and
// returns its target, or NoTransition on a miss. Rule-reference and
// epsilon edges (Low == -1) never match a concrete byte and are skipped.
func (c *CompactFSM) Transition(s StateID, b byte) StateID {
	edges := c.stateEdges(s)
	byteVal := int32(b)

	if len(edges) <= linearScanThreshold {
		for _, e := range edges {
			if e.Low < 0 {
				continue
			}
			if byteVal < e.Low {
				return NoTransition
			}
			if byteVal <= e.High {
				return e.Target
			}
		}
		return NoTransition
	}

	// Binary search over the byte-range prefix. Rule-ref/epsilon edges
	// (Low == -1) sort first; skip past them before searching.
	lo, hi := 0, len(edges)
	for lo < hi && edges[lo].Low < 0 {
		lo++
	}
	l, r := lo, hi
	for l < r {
		mid := (l + r) / 2
		e := edges[mid]
		switch {
		case byteVal < e.Low:
			r = mid
		case byteVal > e.High:
			l = mid + 1
		default:
			return e.Target
		}
	}
	return NoTransition
}

// RuleRefTransition returns the target of the rule-reference edge for
// ruleID leaving s, if any, and whether one was found.
func (c *CompactFSM) RuleRefTransition(s StateID, ruleID int32) (StateID, bool) {
	for _, e := range c.stateEdges(s) {
		if e.IsRuleRef() && e.RuleRefID() == ruleID {
			return e.Target, true
		}
	}
	return NoTransition, false
}

// EpsilonTargets returns every epsilon-edge target leaving s.
func (c *CompactFSM) EpsilonTargets(s StateID) []StateID {
	var out []StateID
	for _, e := range c.stateEdges(s) {
		if e.IsEpsilon() {
			out = append(out, e.Target)
		}
	}
	return out
}

// Edges returns the raw (sorted) edge list for state s, for callers that
// need to enumerate everything leaving a state (e.g. first-character
// bitmask precomputation).
func (c *CompactFSM) Edges(s StateID) []Edge {
	return c.stateEdges(s)
}
