package fsm

// This file provides the Thompson-style construction primitives named in
// the component design: byte_range, rule_ref, concat, union, star, plus,
// optional, and trie. There is no tag_dispatch primitive here:
// optimizer.BuildFSMs lowers TagDispatch itself. Each
// primitive allocates into its own fresh *FSM; callers that need to share
// one "complete FSM" across many rules use Merge to re-map and append a
// fragment's states into a shared accumulator (see optimizer.BuildFSMs).

// ByteRangeFSM builds a two-state fragment that consumes a single byte in
// [lo, hi] inclusive.
func ByteRangeFSM(lo, hi byte) FsmWithStartEnd {
	f := &FSM{}
	start := f.AddState()
	end := f.AddState()
	f.AddEdge(start, Edge{Low: int32(lo), High: int32(hi), Target: end})
	return FsmWithStartEnd{FSM: f, Start: start, Accept: NewAccept(end)}
}

// RuleRefFSM builds a two-state fragment with a single rule-reference
// edge, per the data model: "RuleRef ⇒ a 2-state FSM with a single
// rule-ref edge".
func RuleRefFSM(ruleID int32) FsmWithStartEnd {
	f := &FSM{}
	start := f.AddState()
	end := f.AddState()
	f.AddEdge(start, Edge{Low: -1, High: ruleID, Target: end})
	return FsmWithStartEnd{FSM: f, Start: start, Accept: NewAccept(end)}
}

// EmptyFSM builds a single-state fragment that accepts only the empty
// string (the start state is itself the sole accept state).
func EmptyFSM() FsmWithStartEnd {
	f := &FSM{}
	s := f.AddState()
	return FsmWithStartEnd{FSM: f, Start: s, Accept: NewAccept(s)}
}

// remap copies src's states into dst, offsetting every StateID reference
// (start, accept set, edge targets, rule-ref ids are left untouched since
// they address rules, not states) by dst's current state count. It returns
// the offset applied, so callers can translate src's Start/Accept ids.
func remap(dst, src *FSM) StateID {
	offset := StateID(len(dst.States))
	for _, s := range src.States {
		edges := make([]Edge, len(s.Edges))
		for i, e := range s.Edges {
			ne := e
			if !ne.IsRuleRef() {
				ne.Target = e.Target + offset
			} else {
				ne.Target = e.Target + offset
			}
			edges[i] = ne
		}
		dst.States = append(dst.States, State{Edges: edges})
	}
	return offset
}

// Merge copies frag's states into dst, a shared accumulator FSM building
// up the grammar's "complete FSM" (per §3: "a shared complete FSM whose
// states are re-used across rules"), and returns frag's Start/Accept
// translated into dst's address space. Unlike Concat/Union, dst is not
// itself a fragment with its own start/accept; it is the running union
// of every rule's FSM, addressed per-rule by the (start, accept)
// returned here.
func Merge(dst *FSM, frag FsmWithStartEnd) FsmWithStartEnd {
	offset := remap(dst, frag.FSM)
	accept := make(map[StateID]bool, len(frag.Accept))
	for a := range frag.Accept {
		accept[a+offset] = true
	}
	return FsmWithStartEnd{FSM: dst, Start: frag.Start + offset, Accept: accept, IsDFA: frag.IsDFA}
}

// Concat builds the concatenation of fragments in order: an epsilon edge
// links the accept states of fragment i to the start state of fragment
// i+1. The result accepts only the last fragment's accept states.
func Concat(fragments ...FsmWithStartEnd) FsmWithStartEnd {
	if len(fragments) == 0 {
		return EmptyFSM()
	}
	out := &FSM{}
	start := fragments[0].Start
	var offsets []StateID
	for _, frag := range fragments {
		offsets = append(offsets, remap(out, frag.FSM))
	}
	start += offsets[0]

	for i := 0; i < len(fragments)-1; i++ {
		fi, oi := fragments[i], offsets[i]
		fj, oj := fragments[i+1], offsets[i+1]
		nextStart := fj.Start + oj
		for acc := range fi.Accept {
			out.AddEdge(acc+oi, Edge{Low: -1, High: -1, Target: nextStart})
		}
	}

	last := fragments[len(fragments)-1]
	lastOffset := offsets[len(offsets)-1]
	accept := make(map[StateID]bool, len(last.Accept))
	for a := range last.Accept {
		accept[a+lastOffset] = true
	}
	return FsmWithStartEnd{FSM: out, Start: start, Accept: accept}
}

// Union builds the alternation of fragments: a fresh start state has an
// epsilon edge to each fragment's start, and the accept set is the union
// of every fragment's accept states.
func Union(fragments ...FsmWithStartEnd) FsmWithStartEnd {
	out := &FSM{}
	start := out.AddState()
	accept := make(map[StateID]bool)
	for _, frag := range fragments {
		offset := remap(out, frag.FSM)
		out.AddEdge(start, Edge{Low: -1, High: -1, Target: frag.Start + offset})
		for a := range frag.Accept {
			accept[a+offset] = true
		}
	}
	return FsmWithStartEnd{FSM: out, Start: start, Accept: accept}
}

// Star builds the Kleene closure of f: zero or more repetitions.
func Star(f FsmWithStartEnd) FsmWithStartEnd {
	out := &FSM{}
	offset := remap(out, f.FSM)
	start := out.AddState()
	end := out.AddState()
	innerStart := f.Start + offset
	out.AddEdge(start, Edge{Low: -1, High: -1, Target: innerStart})
	out.AddEdge(start, Edge{Low: -1, High: -1, Target: end})
	for a := range f.Accept {
		out.AddEdge(a+offset, Edge{Low: -1, High: -1, Target: innerStart})
		out.AddEdge(a+offset, Edge{Low: -1, High: -1, Target: end})
	}
	return FsmWithStartEnd{FSM: out, Start: start, Accept: NewAccept(end)}
}

// Plus builds one-or-more repetitions of f (f followed by Star(f)).
func Plus(f FsmWithStartEnd) FsmWithStartEnd {
	return Concat(f, Star(f))
}

// Optional builds zero-or-one occurrence of f.
func Optional(f FsmWithStartEnd) FsmWithStartEnd {
	return Union(f, EmptyFSM())
}

// Repeat builds exactly min..max repetitions of f. max == -1 means
// unbounded (min repetitions followed by Star(f)).
func Repeat(f FsmWithStartEnd, min, max int) FsmWithStartEnd {
	if min == 0 && max == -1 {
		return Star(f)
	}
	var parts []FsmWithStartEnd
	for i := 0; i < min; i++ {
		parts = append(parts, f)
	}
	switch {
	case max == -1:
		parts = append(parts, Star(f))
	case max > min:
		tail := Optional(f)
		for i := 0; i < max-min-1; i++ {
			tail = Optional(Concat(f, tail))
		}
		parts = append(parts, tail)
	}
	if len(parts) == 0 {
		return EmptyFSM()
	}
	return Concat(parts...)
}

// Trie builds an FSM that accepts exactly the given set of byte strings,
// sharing common prefixes. Each word's terminal state is recorded as an
// accept state; the returned map reports, for every accept state, which word index
// (or indices, for duplicate words) ends there.
func Trie(words [][]byte) (FsmWithStartEnd, map[StateID][]int) {
	f := &FSM{}
	start := f.AddState()
	type edgeKey struct {
		from StateID
		b    byte
	}
	next := make(map[edgeKey]StateID)
	wordEnds := make(map[StateID][]int)

	for wi, w := range words {
		cur := start
		for _, b := range w {
			key := edgeKey{cur, b}
			if n, ok := next[key]; ok {
				cur = n
				continue
			}
			n := f.AddState()
			f.AddEdge(cur, Edge{Low: int32(b), High: int32(b), Target: n})
			next[key] = n
			cur = n
		}
		wordEnds[cur] = append(wordEnds[cur], wi)
	}

	accept := make(map[StateID]bool, len(wordEnds))
	for s := range wordEnds {
		accept[s] = true
	}
	return FsmWithStartEnd{FSM: f, Start: start, Accept: accept}, wordEnds
}
