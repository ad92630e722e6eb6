package fsm

import "testing"

func TestDeterminizeProducesEquivalentDFA(t *testing.T) {
	// NFA for (a|b)c: ambiguous start edges to 'a' and 'b' branches that
	// rejoin before 'c'.
	nfa := Concat(Union(ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b')), ByteRangeFSM('c', 'c'))
	dfa := Determinize(nfa.FSM, nfa.Start, func(s StateID) bool { return nfa.Accept[s] })

	if !dfa.IsDFA {
		t.Fatalf("expected Determinize to mark the result IsDFA")
	}
	for _, s := range []string{"ac", "bc"} {
		if !acceptsNFA(dfa, []byte(s)) {
			t.Fatalf("expected determinized (a|b)c to accept %q", s)
		}
	}
	for _, s := range []string{"a", "b", "c", "abc", ""} {
		if acceptsNFA(dfa, []byte(s)) {
			t.Fatalf("expected determinized (a|b)c to reject %q", s)
		}
	}
}

func TestDeterminizeIsActuallyDeterministic(t *testing.T) {
	// Overlapping byte ranges on the NFA ('a'-'m' and 'g'-'z' both fire on
	// 'g'-'m') must not survive into the DFA as two edges matching one byte.
	nfa := Union(ByteRangeFSM('a', 'm'), ByteRangeFSM('g', 'z'))
	dfa := Determinize(nfa.FSM, nfa.Start, func(s StateID) bool { return nfa.Accept[s] })

	for s := 0; s < len(dfa.FSM.States); s++ {
		for b := 0; b < 256; b++ {
			matches := 0
			for _, e := range dfa.FSM.States[s].Edges {
				if e.IsByteRange() && int32(b) >= e.Low && int32(b) <= e.High {
					matches++
				}
			}
			if matches > 1 {
				t.Fatalf("state %d has %d edges matching byte %d; DFA must have at most one", s, matches, b)
			}
		}
	}
}

func TestDeterminizeKeepsRuleRefEdgesDistinctFromBytes(t *testing.T) {
	nfa := Union(ByteRangeFSM(0, 0), RuleRefFSM(7))
	dfa := Determinize(nfa.FSM, nfa.Start, func(s StateID) bool { return nfa.Accept[s] })

	var sawByte, sawRuleRef bool
	for _, e := range dfa.FSM.States[dfa.Start].Edges {
		if e.IsByteRange() {
			sawByte = true
		}
		if e.IsRuleRef() && e.RuleRefID() == 7 {
			sawRuleRef = true
		}
	}
	if !sawByte || !sawRuleRef {
		t.Fatalf("expected the determinized start state to keep both a byte-range edge and a rule-ref(7) edge, got edges=%v", dfa.FSM.States[dfa.Start].Edges)
	}
}
