package optimizer

import (
	"sort"

	"github.com/coregx/cfgmask/grammarir"
)

// computeAllowEmpty implements AllowEmptyRuleAnalyzer: fixed-point
// propagation, re-scanning every rule until a pass marks no new rule, of
// which rules can derive the empty string. The result is stored on g.AllowEmptyRuleIDs,
// consulted at match time via Grammar.CanDeriveEmpty.
func computeAllowEmpty(g *grammarir.Grammar) {
	empty := make(map[grammarir.RuleID]bool)

	for ruleID, r := range g.Rules {
		if ruleDerivesEmptyInitially(g, r.Body) {
			empty[grammarir.RuleID(ruleID)] = true
		}
	}

	changed := true
	for changed {
		changed = false
		for ruleID, r := range g.Rules {
			rid := grammarir.RuleID(ruleID)
			if empty[rid] {
				continue
			}
			if ruleDerivesEmpty(g, r.Body, empty) {
				empty[rid] = true
				changed = true
			}
		}
	}

	ids := make([]grammarir.RuleID, 0, len(empty))
	for rid := range empty {
		ids = append(ids, rid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	g.AllowEmptyRuleIDs = ids
}

// ruleDerivesEmptyInitially seeds the fixed point: a rule body whose
// first alternative is EmptyStr, or whose every alternative consists
// entirely of CharacterClassStar elements.
func ruleDerivesEmptyInitially(g *grammarir.Grammar, bodyID grammarir.RuleExprID) bool {
	body := g.GetExpr(bodyID)
	if body.Type != grammarir.Choices {
		return false
	}
	if len(body.Elements) > 0 && g.GetExpr(body.Elements[0]).Type == grammarir.EmptyStr {
		return true
	}
	for _, altID := range body.Elements {
		if !allStarElements(g, altID) {
			return false
		}
	}
	return len(body.Elements) > 0
}

func allStarElements(g *grammarir.Grammar, altID grammarir.RuleExprID) bool {
	for _, elemID := range asSequence(g, altID) {
		if g.GetExpr(elemID).Type != grammarir.CharacterClassStar {
			return false
		}
	}
	return true
}

// ruleDerivesEmpty tests the propagation step: a rule becomes ε-deriving
// once some alternative's every element is a CharacterClassStar, a
// reference to an already-ε-deriving rule, or a Repeat with min 0 or an
// ε-deriving body.
func ruleDerivesEmpty(g *grammarir.Grammar, bodyID grammarir.RuleExprID, empty map[grammarir.RuleID]bool) bool {
	body := g.GetExpr(bodyID)
	if body.Type != grammarir.Choices {
		return false
	}
	for _, altID := range body.Elements {
		ok := true
		for _, elemID := range asSequence(g, altID) {
			if !elementCanBeEmpty(g, elemID, empty) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func elementCanBeEmpty(g *grammarir.Grammar, id grammarir.RuleExprID, empty map[grammarir.RuleID]bool) bool {
	e := g.GetExpr(id)
	switch e.Type {
	case grammarir.EmptyStr, grammarir.CharacterClassStar:
		return true
	case grammarir.RuleRef:
		return empty[e.Ref]
	case grammarir.Repeat:
		return e.Min == 0 || elementCanBeEmpty(g, e.RepeatBody, empty)
	default:
		return false
	}
}

// normalizeRepetitions implements RepetitionNormalizer: for each Repeat
// whose body element is ε-deriving, its Min is clamped to 0 and, if the
// body is itself a RuleRef, that rule is marked IsExactLookahead.
func normalizeRepetitions(g *grammarir.Grammar) {
	empty := make(map[grammarir.RuleID]bool, len(g.AllowEmptyRuleIDs))
	for _, rid := range g.AllowEmptyRuleIDs {
		empty[rid] = true
	}
	for i := range g.Exprs {
		e := &g.Exprs[i]
		if e.Type != grammarir.Repeat {
			continue
		}
		if elementCanBeEmpty(g, e.RepeatBody, empty) {
			e.Min = 0
			if body := g.GetExpr(e.RepeatBody); body.Type == grammarir.RuleRef {
				g.Rules[body.Ref].IsExactLookahead = true
			}
		}
	}
}
