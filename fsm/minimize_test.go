package fsm

import "testing"

// determinized builds a DFA fragment for s via Union/Concat + Determinize,
// since Minimize requires dfa.IsDFA to already be true.
func determinized(nfa FsmWithStartEnd) FsmWithStartEnd {
	return Determinize(nfa.FSM, nfa.Start, func(s StateID) bool { return nfa.Accept[s] })
}

func TestMinimizePreservesLanguage(t *testing.T) {
	// (a|b)*abb, the textbook minimisation example: the unminimized DFA has
	// redundant states that collapse under Hopcroft refinement.
	ab := Union(ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'))
	nfa := Concat(Star(ab), ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'), ByteRangeFSM('b', 'b'))
	dfa := determinized(nfa)
	min := Minimize(dfa)

	if !min.IsDFA {
		t.Fatalf("expected Minimize to preserve IsDFA")
	}

	cases := []struct {
		s    string
		want bool
	}{
		{"abb", true},
		{"aabb", true},
		{"babb", true},
		{"ababb", true},
		{"ab", false},
		{"abbb", false}, // last three chars are "bbb", not "abb"
		{"a", false},
		{"", false},
	}
	for _, c := range cases {
		if got := acceptsNFA(min, []byte(c.s)); got != c.want {
			t.Fatalf("minimized (a|b)*abb accept(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestMinimizeIsIdempotent(t *testing.T) {
	ab := Union(ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'))
	nfa := Concat(Star(ab), ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'), ByteRangeFSM('b', 'b'))
	dfa := determinized(nfa)

	once := Minimize(dfa)
	twice := Minimize(once)

	if len(once.FSM.States) != len(twice.FSM.States) {
		t.Fatalf("minimize(minimize(dfa)) changed state count: %d vs %d", len(once.FSM.States), len(twice.FSM.States))
	}
	// Re-running minimisation on an already-minimal DFA must not change
	// its observable language.
	for _, s := range []string{"abb", "aabb", "ab", "", "ababb"} {
		if acceptsNFA(once, []byte(s)) != acceptsNFA(twice, []byte(s)) {
			t.Fatalf("minimize(minimize(dfa)) disagrees with minimize(dfa) on %q", s)
		}
	}
}

func TestMinimizeMergesEquivalentStates(t *testing.T) {
	// a|b: two branches that are equivalent (both lead straight to the
	// single accept state) must collapse into one DFA state beyond start.
	nfa := Union(ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'))
	dfa := determinized(nfa)
	min := Minimize(dfa)

	if len(min.FSM.States) != 2 {
		t.Fatalf("expected a|b to minimize to 2 states (start + shared accept), got %d", len(min.FSM.States))
	}
}
