package optimizer

import "github.com/coregx/cfgmask/grammarir"

// eliminateDeadCode implements DeadCodeEliminator: a BFS from the root
// rule collects every reachable rule and, transitively, every
// rule-expression reachable from those rules' bodies and lookaheads.
// Unreachable rules and expressions are dropped and both id spaces are
// renumbered densely, matching "ids are renumbered densely" in §3's
// invariants.
func eliminateDeadCode(g *grammarir.Grammar) error {
	reachRules := reachableRules(g)
	reachExprs := make(map[grammarir.RuleExprID]bool)
	for ruleID := range reachRules {
		r := g.GetRule(ruleID)
		markExprReachable(g, r.Body, reachExprs)
		if r.Lookahead != grammarir.RuleExprID(grammarir.InvalidID) {
			markExprReachable(g, r.Lookahead, reachExprs)
		}
	}

	ruleRemap := make(map[grammarir.RuleID]grammarir.RuleID)
	newRules := make([]grammarir.Rule, 0, len(reachRules))
	for id := 0; id < len(g.Rules); id++ {
		rid := grammarir.RuleID(id)
		if !reachRules[rid] {
			continue
		}
		ruleRemap[rid] = grammarir.RuleID(len(newRules))
		newRules = append(newRules, g.Rules[id])
	}

	exprRemap := make(map[grammarir.RuleExprID]grammarir.RuleExprID)
	newExprs := make([]grammarir.RuleExpr, 0, len(reachExprs))
	for id := 0; id < len(g.Exprs); id++ {
		eid := grammarir.RuleExprID(id)
		if !reachExprs[eid] {
			continue
		}
		exprRemap[eid] = grammarir.RuleExprID(len(newExprs))
		newExprs = append(newExprs, g.Exprs[id])
	}

	for i := range newExprs {
		remapExprIDs(&newExprs[i], exprRemap, ruleRemap)
	}
	for i := range newRules {
		newRules[i].Body = exprRemap[newRules[i].Body]
		if newRules[i].Lookahead != grammarir.RuleExprID(grammarir.InvalidID) {
			newRules[i].Lookahead = exprRemap[newRules[i].Lookahead]
		}
	}

	g.Rules = newRules
	g.Exprs = newExprs
	g.RootID = ruleRemap[g.RootID]
	return nil
}

func reachableRules(g *grammarir.Grammar) map[grammarir.RuleID]bool {
	seen := map[grammarir.RuleID]bool{g.RootID: true}
	queue := []grammarir.RuleID{g.RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		r := g.GetRule(id)
		visitRuleRefs(g, r.Body, func(ref grammarir.RuleID) {
			if !seen[ref] {
				seen[ref] = true
				queue = append(queue, ref)
			}
		})
		if r.Lookahead != grammarir.RuleExprID(grammarir.InvalidID) {
			visitRuleRefs(g, r.Lookahead, func(ref grammarir.RuleID) {
				if !seen[ref] {
					seen[ref] = true
					queue = append(queue, ref)
				}
			})
		}
	}
	return seen
}

// visitRuleRefs walks every rule-expression reachable from id (without
// crossing into referenced rules' own bodies) and calls visit for every
// RuleRef/TagDispatch-trigger rule id encountered.
func visitRuleRefs(g *grammarir.Grammar, id grammarir.RuleExprID, visit func(grammarir.RuleID)) {
	markExprReachable(g, id, make(map[grammarir.RuleExprID]bool), visit)
}

func markExprReachable(g *grammarir.Grammar, id grammarir.RuleExprID, seen map[grammarir.RuleExprID]bool, visitRule ...func(grammarir.RuleID)) {
	if seen[id] {
		return
	}
	seen[id] = true
	e := g.GetExpr(id)
	switch e.Type {
	case grammarir.RuleRef:
		if len(visitRule) > 0 {
			visitRule[0](e.Ref)
		}
	case grammarir.Sequence, grammarir.Choices:
		for _, c := range e.Elements {
			markExprReachable(g, c, seen, visitRule...)
		}
	case grammarir.Repeat:
		markExprReachable(g, e.RepeatBody, seen, visitRule...)
	case grammarir.TagDispatch:
		for _, t := range e.Triggers {
			if len(visitRule) > 0 {
				visitRule[0](t.RuleID)
			}
		}
	}
}

// remapExprIDs rewrites every RuleExprID/RuleID reference inside e to
// its post-DCE id, using the id maps built by eliminateDeadCode.
func remapExprIDs(e *grammarir.RuleExpr, exprRemap map[grammarir.RuleExprID]grammarir.RuleExprID, ruleRemap map[grammarir.RuleID]grammarir.RuleID) {
	switch e.Type {
	case grammarir.RuleRef:
		e.Ref = ruleRemap[e.Ref]
	case grammarir.Sequence, grammarir.Choices:
		for i, c := range e.Elements {
			e.Elements[i] = exprRemap[c]
		}
	case grammarir.Repeat:
		e.RepeatBody = exprRemap[e.RepeatBody]
	case grammarir.TagDispatch:
		for i, t := range e.Triggers {
			e.Triggers[i].RuleID = ruleRemap[t.RuleID]
		}
	}
}
