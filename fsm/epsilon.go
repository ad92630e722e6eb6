package fsm

// EpsilonClosure computes the epsilon closure of a set of states: the
// standard worklist algorithm over epsilon edges only (rule-reference and
// byte-range edges are left for the caller, since closing over them has
// different semantics in the two places this is used — DFA subset
// construction closes only over epsilon edges, the matcher's
// ExpandEquivalentStackElements additionally pushes/pops rule frames).
func EpsilonClosure(f *FSM, states []StateID) []StateID {
	seen := make(map[StateID]bool, len(states))
	work := append([]StateID(nil), states...)
	for _, s := range states {
		seen[s] = true
	}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		for _, e := range f.States[s].Edges {
			if e.IsEpsilon() && !seen[e.Target] {
				seen[e.Target] = true
				work = append(work, e.Target)
			}
		}
	}
	out := make([]StateID, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sortStateIDs(out)
	return out
}
