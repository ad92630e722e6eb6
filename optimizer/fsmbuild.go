package optimizer

import (
	"github.com/coregx/cfgmask/fsm"
	"github.com/coregx/cfgmask/grammarir"
)

// RuleFSM is one rule's handle into the grammar's shared complete FSM:
// a start state and accept-state set addressed into CompiledFSMs.Complete.
type RuleFSM struct {
	Start  fsm.StateID
	Accept []fsm.StateID
}

// CompiledFSMs is the per-rule FSM layer GrammarFSMBuilder produces: one
// shared, CSR-packed "complete FSM" (§3) plus, per rule, the (start,
// accept) pair addressing that rule's fragment within it.
// compiled.CompiledGrammar stores it; neither the matcher nor the mask
// computation reads it.
type CompiledFSMs struct {
	Complete *fsm.CompactFSM
	Rules    map[grammarir.RuleID]RuleFSM
}

// BuildFSMs implements GrammarFSMBuilder: builds an FsmWithStartEnd per
// rule over the optimised IR (ByteString as a linear chain, CharacterClass
// via UTF-8 range decomposition, CharacterClassStar as a self-loop,
// RuleRef as a single rule-ref edge, Sequence/Choices via concat/union,
// Repeat via bounded unrolling, TagDispatch via a conservative
// any-byte-plus-dispatch shape), determinises and minimises rule
// fragments that contain no rule-ref edges (mirroring the spec's "each
// per-rule FSM is then determinised ... and minimized when the rule does
// not contain rule-ref edges"), and merges every fragment into one
// shared, compacted FSM.
//
// TagDispatch is not lowered into a full Aho-Corasick trie at this
// layer: the matcher (matcher/tagdispatch.go) builds and runs a real
// ahocorasick.Automaton for trigger scanning and is the sole consumer of
// TagDispatch match semantics. Here a TagDispatch becomes a single
// any-byte self-loop state with one rule-ref edge per trigger
// (approximating "a trigger was seen"), a coarse over-approximation of
// its language.
func BuildFSMs(g *grammarir.Grammar) (*CompiledFSMs, error) {
	complete := &fsm.FSM{}
	handles := make(map[grammarir.RuleID]RuleFSM, len(g.Rules))

	for ruleID, r := range g.Rules {
		rid := grammarir.RuleID(ruleID)
		frag, err := buildExprFSM(g, r.Body)
		if err != nil {
			return nil, err
		}
		if !containsRuleRefEdges(frag) {
			nfa := frag.FSM
			dfa := fsm.Determinize(nfa, frag.Start, func(s fsm.StateID) bool { return frag.Accept[s] })
			dfa = fsm.SimplifyEpsilon(dfa)
			dfa = fsm.SimplifyTransition(dfa)
			frag = fsm.Minimize(dfa)
		}
		merged := fsm.Merge(complete, frag)
		handles[rid] = RuleFSM{Start: merged.Start, Accept: merged.AcceptStates()}
	}

	return &CompiledFSMs{
		Complete: fsm.Compact(fsm.FsmWithStartEnd{FSM: complete}),
		Rules:    handles,
	}, nil
}

func containsRuleRefEdges(f fsm.FsmWithStartEnd) bool {
	for _, st := range f.FSM.States {
		for _, e := range st.Edges {
			if e.IsRuleRef() {
				return true
			}
		}
	}
	return false
}

// buildExprFSM recursively lowers a rule-expression into an FSM
// fragment in its own fresh arena, per the GrammarFSMBuilder mapping in
// §4.F.
func buildExprFSM(g *grammarir.Grammar, id grammarir.RuleExprID) (fsm.FsmWithStartEnd, error) {
	e := g.GetExpr(id)
	switch e.Type {
	case grammarir.ByteString:
		if len(e.Bytes) == 0 {
			return fsm.EmptyFSM(), nil
		}
		frags := make([]fsm.FsmWithStartEnd, len(e.Bytes))
		for i, b := range e.Bytes {
			frags[i] = fsm.ByteRangeFSM(b, b)
		}
		return fsm.Concat(frags...), nil
	case grammarir.CharacterClass:
		return fsm.CharClassFSM(toFSMRanges(e.Ranges), e.Negated), nil
	case grammarir.CharacterClassStar:
		return fsm.Star(fsm.CharClassFSM(toFSMRanges(e.Ranges), e.Negated)), nil
	case grammarir.EmptyStr:
		return fsm.EmptyFSM(), nil
	case grammarir.RuleRef:
		return fsm.RuleRefFSM(int32(e.Ref)), nil
	case grammarir.Sequence:
		frags := make([]fsm.FsmWithStartEnd, len(e.Elements))
		for i, c := range e.Elements {
			f, err := buildExprFSM(g, c)
			if err != nil {
				return fsm.FsmWithStartEnd{}, err
			}
			frags[i] = f
		}
		return fsm.Concat(frags...), nil
	case grammarir.Choices:
		frags := make([]fsm.FsmWithStartEnd, len(e.Elements))
		for i, c := range e.Elements {
			f, err := buildExprFSM(g, c)
			if err != nil {
				return fsm.FsmWithStartEnd{}, err
			}
			frags[i] = f
		}
		return fsm.Union(frags...), nil
	case grammarir.Repeat:
		body, err := buildExprFSM(g, e.RepeatBody)
		if err != nil {
			return fsm.FsmWithStartEnd{}, err
		}
		return fsm.Repeat(body, e.Min, e.Max), nil
	case grammarir.TagDispatch:
		return buildTagDispatchFSM(e), nil
	default:
		return fsm.FsmWithStartEnd{}, &fsm.BuildError{Message: "unknown rule-expression type in GrammarFSMBuilder", StateID: fsm.InvalidState}
	}
}

// buildTagDispatchFSM builds the coarse any-byte-self-loop fragment
// described in BuildFSMs's doc comment: a single state accepts (and
// loops on) every byte, with one rule-ref edge per trigger's paired rule
// standing in for "the trigger's text was consumed".
func buildTagDispatchFSM(e *grammarir.RuleExpr) fsm.FsmWithStartEnd {
	f := &fsm.FSM{}
	s := f.AddState()
	f.AddEdge(s, fsm.Edge{Low: 0, High: 255, Target: s})
	for _, t := range e.Triggers {
		f.AddEdge(s, fsm.Edge{Low: -1, High: int32(t.RuleID), Target: s})
	}
	return fsm.FsmWithStartEnd{FSM: f, Start: s, Accept: fsm.NewAccept(s)}
}

func toFSMRanges(ranges []grammarir.CodepointRange) []fsm.CodepointRange {
	out := make([]fsm.CodepointRange, len(ranges))
	for i, r := range ranges {
		out[i] = fsm.CodepointRange{Low: r.Low, High: r.High}
	}
	return out
}
