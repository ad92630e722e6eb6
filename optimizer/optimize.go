// Package optimizer applies the fixed rewrite pipeline from §4.F to a
// parsed grammarir.Grammar: structural cleanup, rule inlining, dead-code
// elimination, lookahead inference, empty-rule analysis, repetition
// normalisation, and finally per-rule FSM construction. Each pass is
// grounded on a stage of the teacher's regex compile pipeline
// (nfa/compile.go's "parse AST -> lower -> build NFA -> minimize")
// adapted from regex ASTs to grammar rule-expressions.
package optimizer

import "github.com/coregx/cfgmask/grammarir"

// Optimize runs the full pipeline in the order §4.F specifies and
// returns the optimised grammar. The EBNF parser already emits rule
// bodies in the Choices(Sequence(atom...)...) shape StructureNormalizer
// would otherwise produce (every rule body is wrapped via ensureChoices,
// every sequence element is atomic or a RuleRef), so that pass is folded
// into appendix normalisation here rather than a separate rewrite; a
// grammar built by a different front end (e.g. jsonschema or regexconv)
// must emit the same shape, which both of those packages do.
func Optimize(g *grammarir.Grammar) (*grammarir.Grammar, error) {
	normalizeSingleElements(g)
	fuseByteStrings(g)
	inlineRules(g)
	if err := eliminateDeadCode(g); err != nil {
		return nil, err
	}
	inferLookaheads(g)
	computeAllowEmpty(g)
	normalizeRepetitions(g)
	return g, nil
}

// appendExpr appends a new rule-expression to g's arena and returns its
// id, the direct-mutation analogue of grammarir.Builder.add used by
// passes that rewrite an already-built grammar in place instead of
// constructing a fresh one.
func appendExpr(g *grammarir.Grammar, e grammarir.RuleExpr) grammarir.RuleExprID {
	id := grammarir.RuleExprID(len(g.Exprs))
	g.Exprs = append(g.Exprs, e)
	return id
}

// asSequence returns the atomic element ids of a "sequence" addressed by
// id, per the parser's bare-single-element convention: a genuine
// Sequence node's Elements, a single bare atom's own id, or no elements
// for EmptyStr.
func asSequence(g *grammarir.Grammar, id grammarir.RuleExprID) []grammarir.RuleExprID {
	e := g.GetExpr(id)
	switch e.Type {
	case grammarir.Sequence:
		return e.Elements
	case grammarir.EmptyStr:
		return nil
	default:
		return []grammarir.RuleExprID{id}
	}
}

// makeSequence builds a new Sequence node from elems, preserving the
// bare-atom convention (a single element is returned as itself, not
// wrapped) so results stay compatible with the matcher's seqLen/
// seqElementID helpers.
func makeSequence(g *grammarir.Grammar, elems []grammarir.RuleExprID) grammarir.RuleExprID {
	switch len(elems) {
	case 0:
		return appendExpr(g, grammarir.RuleExpr{Type: grammarir.EmptyStr})
	case 1:
		return elems[0]
	default:
		return appendExpr(g, grammarir.RuleExpr{Type: grammarir.Sequence, Elements: elems})
	}
}
