package fsm

import "sort"

// subsetKey canonicalises a set of NFA state ids for use as a map key.
func subsetKey(ids []StateID) string {
	// States are already small in practice (single grammar rules); a
	// simple separated string is cheap and avoids pulling in a generic
	// hashing dependency for what is, in effect, an interned-set cache.
	buf := make([]byte, 0, len(ids)*5)
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendInt32(buf, int32(id))
	}
	return string(buf)
}

func appendInt32(buf []byte, v int32) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	start := len(buf)
	if v == 0 {
		return append(buf, '0')
	}
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	for l, r := start, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return buf
}

// boundaryPoints collects every distinct byte-range boundary (low and
// high+1) among a set of NFA states' outgoing byte-range edges, so the
// resulting DFA transitions partition [0,255] into intervals each of
// which agrees, for every NFA state in the subset, on which edges fire.
func boundaryPoints(f *FSM, subset []StateID) []int32 {
	seen := make(map[int32]bool)
	for _, s := range subset {
		for _, e := range f.States[s].Edges {
			if !e.IsByteRange() {
				continue
			}
			seen[e.Low] = true
			if e.High+1 <= 256 {
				seen[e.High+1] = true
			}
		}
	}
	points := make([]int32, 0, len(seen))
	for p := range seen {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return points
}

// Determinize runs subset construction over f starting at start,
// producing a DFA (IsDFA = true) whose states are epsilon closures of NFA
// state sets. Rule-reference edges are treated as distinct labels keyed
// by rule id: they are never merged with byte-range edges, and two
// subsets differing only in which rule is referenced never collapse.
func Determinize(f *FSM, start StateID, isAccept func(StateID) bool) FsmWithStartEnd {
	out := &FSM{}
	cache := make(map[string]StateID)

	startClosure := EpsilonClosure(f, []StateID{start})
	startID := out.AddState()
	cache[subsetKey(startClosure)] = startID

	accept := make(map[StateID]bool)
	type workItem struct {
		id     StateID
		subset []StateID
	}
	work := []workItem{{startID, startClosure}}
	if anyAccept(startClosure, isAccept) {
		accept[startID] = true
	}

	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		// Byte-range transitions: partition at every boundary point.
		points := boundaryPoints(f, item.subset)
		for i := 0; i+1 < len(points); i++ {
			lo, hi := points[i], points[i+1]-1
			var targets []StateID
			for _, s := range item.subset {
				for _, e := range f.States[s].Edges {
					if e.IsByteRange() && e.Low <= lo && hi <= e.High {
						targets = append(targets, e.Target)
					}
				}
			}
			if len(targets) == 0 {
				continue
			}
			closure := EpsilonClosure(f, targets)
			key := subsetKey(closure)
			tgtID, ok := cache[key]
			if !ok {
				tgtID = out.AddState()
				cache[key] = tgtID
				if anyAccept(closure, isAccept) {
					accept[tgtID] = true
				}
				work = append(work, workItem{tgtID, closure})
			}
			out.AddEdge(item.id, Edge{Low: lo, High: hi, Target: tgtID})
		}

		// Rule-reference transitions: grouped by referenced rule id.
		byRule := make(map[int32][]StateID)
		for _, s := range item.subset {
			for _, e := range f.States[s].Edges {
				if e.IsRuleRef() {
					byRule[e.RuleRefID()] = append(byRule[e.RuleRefID()], e.Target)
				}
			}
		}
		for ruleID, targets := range byRule {
			closure := EpsilonClosure(f, targets)
			key := subsetKey(closure)
			tgtID, ok := cache[key]
			if !ok {
				tgtID = out.AddState()
				cache[key] = tgtID
				if anyAccept(closure, isAccept) {
					accept[tgtID] = true
				}
				work = append(work, workItem{tgtID, closure})
			}
			out.AddEdge(item.id, Edge{Low: -1, High: ruleID, Target: tgtID})
		}
	}

	return FsmWithStartEnd{FSM: out, Start: startID, Accept: accept, IsDFA: true}
}

func anyAccept(subset []StateID, isAccept func(StateID) bool) bool {
	for _, s := range subset {
		if isAccept(s) {
			return true
		}
	}
	return false
}
