package optimizer

import "github.com/coregx/cfgmask/grammarir"

// inlineRules implements RuleInliner: when the first element of a rule
// body's alternative is a RuleRef X, and X's own body is a Choices of
// Sequences containing no rule references and no empty alternative,
// X's alternatives are inlined into the outer alternative (cartesian
// product with the remaining suffix elements). Runs to a fixed point
// since inlining can expose a further inlinable RuleRef at the new head
// position.
func inlineRules(g *grammarir.Grammar) {
	changed := true
	for changed {
		changed = false
		for ruleID := range g.Rules {
			body := g.GetExpr(g.Rules[ruleID].Body)
			if body.Type != grammarir.Choices {
				continue
			}
			var newAlts []grammarir.RuleExprID
			ruleChanged := false
			for _, altID := range body.Elements {
				elems := asSequence(g, altID)
				if len(elems) == 0 {
					newAlts = append(newAlts, altID)
					continue
				}
				head := g.GetExpr(elems[0])
				if head.Type != grammarir.RuleRef || !isInlinable(g, head.Ref, grammarir.RuleID(ruleID)) {
					newAlts = append(newAlts, altID)
					continue
				}
				inner := g.GetExpr(g.Rules[head.Ref].Body)
				suffix := elems[1:]
				for _, innerAlt := range inner.Elements {
					innerElems := asSequence(g, innerAlt)
					combined := make([]grammarir.RuleExprID, 0, len(innerElems)+len(suffix))
					combined = append(combined, innerElems...)
					combined = append(combined, suffix...)
					newAlts = append(newAlts, makeSequence(g, combined))
				}
				ruleChanged = true
			}
			if ruleChanged {
				g.Rules[ruleID].Body = appendExpr(g, grammarir.RuleExpr{Type: grammarir.Choices, Elements: newAlts})
				changed = true
			}
		}
	}
}

// isInlinable reports whether target's body is a Choices of Sequences
// with no RuleRef element (a RuleRef nested inside a Repeat element is
// not checked) and no empty alternative, the condition
// RuleInliner requires before substituting it inline. Inlining a rule
// into itself (self == target) is refused to avoid infinite expansion.
func isInlinable(g *grammarir.Grammar, target, self grammarir.RuleID) bool {
	if target == self {
		return false
	}
	body := g.GetExpr(g.Rules[target].Body)
	if body.Type != grammarir.Choices {
		return false
	}
	for _, altID := range body.Elements {
		if g.GetExpr(altID).Type == grammarir.EmptyStr {
			return false
		}
		for _, elemID := range asSequence(g, altID) {
			if containsRuleRef(g, elemID) {
				return false
			}
		}
	}
	return true
}

func containsRuleRef(g *grammarir.Grammar, id grammarir.RuleExprID) bool {
	return g.GetExpr(id).Type == grammarir.RuleRef
}
