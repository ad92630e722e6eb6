package optimizer

import "github.com/coregx/cfgmask/grammarir"

// refSite records one occurrence of a RuleRef inside some sequence,
// together with the suffix of elements following it in that sequence.
type refSite struct {
	suffix []grammarir.RuleExprID
}

// inferLookaheads implements LookaheadAssertionAnalyzer: for every
// non-root rule with no explicit lookahead, find every position in the
// whole grammar that references it. A rule referenced from exactly one
// position gets that position's trailing elements attached as an exact
// lookahead assertion.
//
// A reference with nothing following it in its sequence (including a
// rule referring to itself in the tail position of its own body) has an
// empty suffix and gets no lookahead.
func inferLookaheads(g *grammarir.Grammar) {
	sites := make(map[grammarir.RuleID][]refSite)
	record := func(ref grammarir.RuleID, suffix []grammarir.RuleExprID) {
		sites[ref] = append(sites[ref], refSite{suffix: suffix})
	}

	for _, r := range g.Rules {
		collectRefSites(g, r.Body, record)
		if r.Lookahead != grammarir.RuleExprID(grammarir.InvalidID) {
			collectRefSites(g, r.Lookahead, record)
		}
	}

	for ruleID := range g.Rules {
		rid := grammarir.RuleID(ruleID)
		if rid == g.RootID {
			continue
		}
		if g.Rules[ruleID].Lookahead != grammarir.RuleExprID(grammarir.InvalidID) {
			continue
		}
		occ := sites[rid]
		if len(occ) != 1 || len(occ[0].suffix) == 0 {
			continue
		}
		la := makeSequence(g, occ[0].suffix)
		g.Rules[ruleID].Lookahead = la
		g.Rules[ruleID].IsExactLookahead = true
	}
}

// collectRefSites walks every Sequence/Choices alternative reachable
// from id (without crossing into referenced rules' bodies) and reports
// every RuleRef together with the elements following it in its
// enclosing sequence.
func collectRefSites(g *grammarir.Grammar, id grammarir.RuleExprID, record func(grammarir.RuleID, []grammarir.RuleExprID)) {
	e := g.GetExpr(id)
	switch e.Type {
	case grammarir.Choices:
		for _, alt := range e.Elements {
			collectRefSites(g, alt, record)
		}
	case grammarir.Sequence:
		for i, elemID := range e.Elements {
			if g.GetExpr(elemID).Type == grammarir.RuleRef {
				record(g.GetExpr(elemID).Ref, e.Elements[i+1:])
			} else {
				collectRefSites(g, elemID, record)
			}
		}
	case grammarir.RuleRef:
		record(e.Ref, nil)
	case grammarir.Repeat:
		collectRefSites(g, e.RepeatBody, record)
	}
}
