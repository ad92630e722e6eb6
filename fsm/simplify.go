package fsm

// SimplifyEpsilon merges a state with its sole epsilon successor whenever
// no other edge targets that successor, collapsing chains of bookkeeping
// states introduced by Concat/Star/Union.
func SimplifyEpsilon(f FsmWithStartEnd) FsmWithStartEnd {
	indeg := make([]int, len(f.FSM.States))
	for _, st := range f.FSM.States {
		for _, e := range st.Edges {
			indeg[e.Target]++
		}
	}

	// redirect[s] = the state s should be treated as, after following any
	// chain of "sole epsilon successor with indegree 1" links.
	redirect := make([]StateID, len(f.FSM.States))
	for i := range redirect {
		redirect[i] = StateID(i)
	}
	resolve := func(s StateID) StateID {
		for {
			st := f.FSM.States[s]
			if len(st.Edges) == 1 && st.Edges[0].IsEpsilon() && indeg[st.Edges[0].Target] == 1 &&
				st.Edges[0].Target != s {
				s = st.Edges[0].Target
				continue
			}
			break
		}
		return s
	}
	for i := range redirect {
		redirect[i] = resolve(StateID(i))
	}

	out := &FSM{}
	remap := make(map[StateID]StateID)
	var assign func(StateID) StateID
	assign = func(s StateID) StateID {
		s = redirect[s]
		if id, ok := remap[s]; ok {
			return id
		}
		id := out.AddState()
		remap[s] = id
		var edges []Edge
		for _, e := range f.FSM.States[s].Edges {
			ne := e
			edges = append(edges, ne)
		}
		out.States[id].Edges = edges
		return id
	}

	start := assign(f.Start)
	accept := make(map[StateID]bool)
	for a := range f.Accept {
		accept[assign(a)] = true
	}
	// Second pass: retarget every edge through assign/redirect.
	for s, id := range remap {
		var edges []Edge
		for _, e := range f.FSM.States[s].Edges {
			ne := e
			ne.Target = assign(e.Target)
			edges = append(edges, ne)
		}
		out.States[id].Edges = edges
	}

	return FsmWithStartEnd{FSM: out, Start: start, Accept: accept, IsDFA: f.IsDFA}
}

// SimplifyTransition collapses states that have identical outgoing edge
// sets (equivalent successors) into one representative, which is a cheap
// approximation to full minimisation useful as a pre-pass before the
// heavier Hopcroft routine on large FSMs.
func SimplifyTransition(f FsmWithStartEnd) FsmWithStartEnd {
	sigOf := func(edges []Edge) string {
		buf := make([]byte, 0, len(edges)*9)
		for _, e := range edges {
			buf = appendInt32(buf, e.Low)
			buf = append(buf, ':')
			buf = appendInt32(buf, e.High)
			buf = append(buf, '>')
			buf = appendInt32(buf, int32(e.Target))
			buf = append(buf, ',')
		}
		return string(buf)
	}

	n := len(f.FSM.States)
	groupOf := make([]int, n)
	groupID := make(map[string]int)
	for s := 0; s < n; s++ {
		key := sigOf(f.FSM.States[s].Edges)
		id, ok := groupID[key]
		if !ok {
			id = len(groupID)
			groupID[key] = id
		}
		groupOf[s] = id
	}

	out := &FSM{}
	for i := 0; i < len(groupID); i++ {
		out.AddState()
	}
	seen := make([]bool, len(groupID))
	for s := 0; s < n; s++ {
		g := groupOf[s]
		if seen[g] {
			continue
		}
		seen[g] = true
		var edges []Edge
		for _, e := range f.FSM.States[s].Edges {
			ne := e
			ne.Target = StateID(groupOf[e.Target])
			edges = append(edges, ne)
		}
		out.States[g].Edges = edges
	}

	accept := make(map[StateID]bool)
	for a := range f.Accept {
		accept[StateID(groupOf[a])] = true
	}
	return FsmWithStartEnd{FSM: out, Start: StateID(groupOf[f.Start]), Accept: accept, IsDFA: f.IsDFA}
}
