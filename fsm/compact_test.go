package fsm

import "testing"

func TestCompactFSMLinearScanTransition(t *testing.T) {
	nfa := Union(ByteRangeFSM('a', 'a'), ByteRangeFSM('b', 'b'), ByteRangeFSM('c', 'c'))
	dfa := Minimize(Determinize(nfa.FSM, nfa.Start, func(s StateID) bool { return nfa.Accept[s] }))
	c := Compact(dfa)

	for _, b := range []byte("abc") {
		if got := c.Transition(c.Start(), b); got == NoTransition {
			t.Fatalf("expected a transition on %q from the compact start state", b)
		}
	}
	if got := c.Transition(c.Start(), 'z'); got != NoTransition {
		t.Fatalf("expected NoTransition for an unmatched byte, got %d", got)
	}
}

func TestCompactFSMBinarySearchTransition(t *testing.T) {
	// Build a state with more than linearScanThreshold single-byte edges to
	// force Transition onto its binary-search path.
	f := &FSM{}
	start := f.AddState()
	accept := f.AddState()
	for b := byte(0); b < byte(2*linearScanThreshold); b++ {
		f.AddEdge(start, Edge{Low: int32(b), High: int32(b), Target: accept})
	}
	frag := FsmWithStartEnd{FSM: f, Start: start, Accept: NewAccept(accept)}
	c := Compact(frag)

	for b := byte(0); b < byte(2*linearScanThreshold); b++ {
		if got := c.Transition(c.Start(), b); got != accept {
			t.Fatalf("binary-search Transition(%d) = %d, want %d", b, got, accept)
		}
	}
	if got := c.Transition(c.Start(), byte(2*linearScanThreshold)); got != NoTransition {
		t.Fatalf("expected NoTransition past the built range, got %d", got)
	}
}

func TestCompactFSMRuleRefTransition(t *testing.T) {
	nfa := RuleRefFSM(42)
	c := Compact(nfa)

	target, ok := c.RuleRefTransition(c.Start(), 42)
	if !ok {
		t.Fatalf("expected a rule-ref(42) transition from the start state")
	}
	if !c.IsAccept(target) {
		t.Fatalf("expected the rule-ref target to be the fragment's accept state")
	}
	if _, ok := c.RuleRefTransition(c.Start(), 7); ok {
		t.Fatalf("expected no rule-ref(7) transition to exist")
	}
}

func TestCompactFSMPreservesAcceptAndStart(t *testing.T) {
	f := ByteRangeFSM('x', 'x')
	c := Compact(f)
	if c.Start() != f.Start {
		t.Fatalf("Compact changed the start state: got %d, want %d", c.Start(), f.Start)
	}
	for id := range f.Accept {
		if !c.IsAccept(id) {
			t.Fatalf("Compact dropped accept state %d", id)
		}
	}
}
