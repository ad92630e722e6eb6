package fsm

import "sort"

// symbol is one element of the minimisation alphabet: either a byte value
// (0-255) or a rule-reference id encoded as 256+ruleID, so that
// rule-reference edges are always distinguished from byte-range edges as
// required by the spec ("rule-reference edges treated as distinct
// labels").
type symbol int32

func byteSymbol(b int32) symbol  { return symbol(b) }
func ruleSymbol(id int32) symbol { return symbol(256 + id) }

// alphabet returns every distinct symbol appearing on any edge in f,
// splitting byte ranges at their natural boundaries first.
func alphabet(f *FSM) []symbol {
	points := make(map[int32]bool)
	ruleIDs := make(map[int32]bool)
	for _, st := range f.States {
		for _, e := range st.Edges {
			if e.IsByteRange() {
				points[e.Low] = true
				if e.High+1 <= 256 {
					points[e.High+1] = true
				}
			} else if e.IsRuleRef() {
				ruleIDs[e.RuleRefID()] = true
			}
		}
	}
	sorted := make([]int32, 0, len(points))
	for p := range points {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var syms []symbol
	for i := 0; i+1 < len(sorted); i++ {
		syms = append(syms, byteSymbol(sorted[i]))
	}
	for id := range ruleIDs {
		syms = append(syms, ruleSymbol(id))
	}
	return syms
}

// target returns the destination state reached from s by symbol sym, or
// InvalidState if s has no edge covering sym.
func target(f *FSM, s StateID, sym symbol) StateID {
	for _, e := range f.States[s].Edges {
		if e.IsByteRange() && int32(sym) >= e.Low && int32(sym) <= e.High {
			return e.Target
		}
		if e.IsRuleRef() && sym == ruleSymbol(e.RuleRefID()) {
			return e.Target
		}
	}
	return InvalidState
}

// Minimize performs Hopcroft-style partition refinement on a DFA
// (dfa.IsDFA must be true), re-building the state graph from the
// resulting equivalence classes. Adjacent byte-range edges that land on
// the same target after minimisation are merged.
func Minimize(dfa FsmWithStartEnd) FsmWithStartEnd {
	f := dfa.FSM
	n := len(f.States)
	if n == 0 {
		return dfa
	}
	syms := alphabet(f)

	// Initial partition: accepting vs non-accepting.
	class := make([]int, n)
	for s := 0; s < n; s++ {
		if dfa.Accept[StateID(s)] {
			class[s] = 1
		} else {
			class[s] = 0
		}
	}

	for {
		// Refine: two states split if they disagree on the class reached
		// by any symbol.
		type sig struct {
			base int
			key  string
		}
		sigOf := make([]sig, n)
		for s := 0; s < n; s++ {
			buf := make([]byte, 0, len(syms)*3)
			for _, sym := range syms {
				t := target(f, StateID(s), sym)
				c := -1
				if t != InvalidState {
					c = class[t]
				}
				buf = appendInt32(buf, int32(c))
				buf = append(buf, '|')
			}
			sigOf[s] = sig{class[s], string(buf)}
		}

		newClassID := make(map[sig]int)
		newClass := make([]int, n)
		changed := false
		for s := 0; s < n; s++ {
			id, ok := newClassID[sigOf[s]]
			if !ok {
				id = len(newClassID)
				newClassID[sigOf[s]] = id
			}
			newClass[s] = id
			if id != class[s] {
				changed = true
			}
		}
		// A refinement is meaningful only if the number of classes grew;
		// class-id relabelling alone (same partition, different numbering)
		// is not progress.
		maxOld, maxNew := -1, -1
		for s := 0; s < n; s++ {
			if class[s] > maxOld {
				maxOld = class[s]
			}
			if newClass[s] > maxNew {
				maxNew = newClass[s]
			}
		}
		class = newClass
		if !changed || maxNew == maxOld {
			break
		}
	}

	numClasses := 0
	for _, c := range class {
		if c+1 > numClasses {
			numClasses = c + 1
		}
	}

	out := &FSM{}
	for i := 0; i < numClasses; i++ {
		out.AddState()
	}
	accept := make(map[StateID]bool)
	repOf := make([]StateID, numClasses)
	seenRep := make([]bool, numClasses)
	for s := 0; s < n; s++ {
		c := class[s]
		if !seenRep[c] {
			repOf[c] = StateID(s)
			seenRep[c] = true
		}
		if dfa.Accept[StateID(s)] {
			accept[StateID(c)] = true
		}
	}

	for c := 0; c < numClasses; c++ {
		rep := repOf[c]
		var edges []Edge
		for _, e := range f.States[rep].Edges {
			ne := e
			ne.Target = StateID(class[e.Target])
			edges = append(edges, ne)
		}
		edges = mergeAdjacentEdges(edges)
		out.States[c].Edges = edges
	}

	return FsmWithStartEnd{
		FSM:    out,
		Start:  StateID(class[dfa.Start]),
		Accept: accept,
		IsDFA:  true,
	}
}

// mergeAdjacentEdges sorts byte-range edges by Low and merges adjacent or
// overlapping ranges that share the same target, per the minimisation
// output-edge cleanup step. Rule-reference edges (Low == -1) are left
// untouched and sorted after byte-range edges.
func mergeAdjacentEdges(edges []Edge) []Edge {
	var bytes, rules []Edge
	for _, e := range edges {
		if e.IsRuleRef() {
			rules = append(rules, e)
		} else {
			bytes = append(bytes, e)
		}
	}
	sort.Slice(bytes, func(i, j int) bool { return bytes[i].Low < bytes[j].Low })

	var merged []Edge
	for _, e := range bytes {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Target == e.Target && e.Low <= last.High+1 {
				if e.High > last.High {
					last.High = e.High
				}
				continue
			}
		}
		merged = append(merged, e)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].High < rules[j].High })
	return append(merged, rules...)
}
