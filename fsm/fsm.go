// Package fsm implements the finite-state-machine core used to represent
// compiled grammar rules: states with sorted byte-range and rule-reference
// edges, epsilon closure, subset construction to a DFA, Hopcroft-style
// minimisation, and a compact CSR-packed representation for fast transition
// lookup at match time.
//
// The construction style mirrors a Thompson-NFA builder: states are
// allocated incrementally with FSM.AddState, composite FSMs are built bottom-up
// from small fragments (byte_range, concat, union, star, ...), and the
// result is frozen into an immutable, read-only form before use.
package fsm

import "fmt"

// StateID uniquely identifies a state within a single FSM.
type StateID int32

// Special sentinel state IDs.
const (
	// InvalidState marks an uninitialised or missing state reference.
	InvalidState StateID = -1
	// NoTransition is returned by CompactFSM.Transition on a lookup miss.
	NoTransition StateID = -1
)

// Edge is one outgoing transition from a state.
//
// Three encodings share this single struct, matching the data model:
//   - Low == High == -1: an epsilon edge, taken without consuming input.
//   - Low == -1, High >= 0: a rule-reference edge; High is the referenced
//     rule id. At match time this costs one transition in the FSM plus a
//     push onto the matcher's persistent stack.
//   - 0 <= Low <= High <= 255: an inclusive byte range.
type Edge struct {
	Low, High int32
	Target    StateID
}

// IsEpsilon reports whether e is an epsilon edge.
func (e Edge) IsEpsilon() bool { return e.Low == -1 && e.High == -1 }

// IsRuleRef reports whether e is a rule-reference edge; RuleRefID returns
// the referenced rule id.
func (e Edge) IsRuleRef() bool { return e.Low == -1 && e.High >= 0 }

// RuleRefID returns the referenced rule id for a rule-reference edge.
// Only valid when IsRuleRef() is true.
func (e Edge) RuleRefID() int32 { return e.High }

// IsByteRange reports whether e is an ordinary inclusive byte-range edge.
func (e Edge) IsByteRange() bool { return e.Low >= 0 }

// State is a single FSM node with its outgoing edges.
type State struct {
	Edges []Edge
}

// FSM is a graph of States. It carries no notion of start/accept on its
// own; FsmWithStartEnd adds that. Multiple per-rule FSMs may share one
// underlying FSM's state array (the "complete FSM" in the grammar data
// model), so States is addressed by StateID directly.
type FSM struct {
	States []State
}

// AddState appends a new, edgeless state and returns its id.
func (f *FSM) AddState() StateID {
	id := StateID(len(f.States))
	f.States = append(f.States, State{})
	return id
}

// AddEdge appends an edge to the state's outgoing edge list.
func (f *FSM) AddEdge(from StateID, e Edge) {
	f.States[from].Edges = append(f.States[from].Edges, e)
}

// NumStates returns the number of states in the FSM.
func (f *FSM) NumStates() int { return len(f.States) }

// FsmWithStartEnd pairs an FSM with a distinguished start state and a set
// of accept states, per the data model's FsmWithStartEnd.
type FsmWithStartEnd struct {
	FSM    *FSM
	Start  StateID
	Accept map[StateID]bool
	IsDFA  bool
}

// NewAccept builds an accept-state set from a variadic list of ids.
func NewAccept(ids ...StateID) map[StateID]bool {
	m := make(map[StateID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// IsAccept reports whether s is an accept state.
func (f FsmWithStartEnd) IsAccept(s StateID) bool { return f.Accept[s] }

// AcceptStates returns the accept states as a sorted slice.
func (f FsmWithStartEnd) AcceptStates() []StateID {
	out := make([]StateID, 0, len(f.Accept))
	for id := range f.Accept {
		out = append(out, id)
	}
	sortStateIDs(out)
	return out
}

func sortStateIDs(ids []StateID) {
	// Small slices (accept sets rarely exceed a handful of states): plain
	// insertion sort avoids pulling in sort.Slice's reflection overhead.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// BuildError reports a malformed construction request, e.g. an invalid
// UTF-8 codepoint range or an out-of-bounds state id. Construction failures
// are fatal per the spec's FSM core failure semantics.
type BuildError struct {
	Message string
	StateID StateID
}

func (e *BuildError) Error() string {
	if e.StateID != InvalidState {
		return fmt.Sprintf("fsm: %s (state %d)", e.Message, e.StateID)
	}
	return fmt.Sprintf("fsm: %s", e.Message)
}
