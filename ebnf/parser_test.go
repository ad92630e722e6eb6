package ebnf

import (
	"testing"

	"github.com/coregx/cfgmask/grammarir"
)

func mustParseGrammar(t *testing.T, src, root string) *grammarir.Grammar {
	t.Helper()
	g, err := ParseFile(src, root)
	if err != nil {
		t.Fatalf("ParseFile(%q): %v", src, err)
	}
	return g
}

// countRuleExprType walks every rule's body reachable from the root
// recording how many RuleExpr nodes of the given type are reachable,
// following RuleRef edges once per distinct rule id (grammars are DAGs of
// rules, so a visited-set guards against infinite recursion).
func countRuleExprType(g *grammarir.Grammar, kind grammarir.RuleExprType) int {
	visitedRules := make(map[grammarir.RuleID]bool)
	var count int
	var walkExpr func(id grammarir.RuleExprID)
	walkExpr = func(id grammarir.RuleExprID) {
		expr := g.GetExpr(id)
		if expr.Type == kind {
			count++
		}
		switch expr.Type {
		case grammarir.Sequence, grammarir.Choices:
			for _, c := range expr.Elements {
				walkExpr(c)
			}
		case grammarir.RuleRef:
			walkRule(expr.Ref)
		}
	}
	var walkRule func(id grammarir.RuleID)
	walkRule = func(id grammarir.RuleID) {
		if visitedRules[id] {
			return
		}
		visitedRules[id] = true
		walkExpr(g.GetRule(id).Body)
	}
	walkRule(g.RootID)
	return count
}

func TestParseSimpleSequence(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "ab" "cd"`, "root")
	if len(g.Rules) == 0 {
		t.Fatalf("expected at least one parsed rule")
	}
	rootBody := g.GetExpr(g.GetRule(g.RootID).Body)
	if rootBody.Type != grammarir.Choices || len(rootBody.Elements) != 1 {
		t.Fatalf("expected a single-alternative Choices root body, got %+v", rootBody)
	}
	seq := g.GetExpr(rootBody.Elements[0])
	if seq.Type != grammarir.Sequence || len(seq.Elements) != 2 {
		t.Fatalf("expected \"ab\" \"cd\" to lower to a 2-element sequence, got %+v", seq)
	}
}

func TestParseChoicesAndGrouping(t *testing.T) {
	g := mustParseGrammar(t, `root ::= ("a" | "b") "c"`, "root")
	// The parenthesised choice must have been parked behind a helper rule
	// (a Sequence/Choices cannot sit directly inside another Sequence).
	if len(g.Rules) < 2 {
		t.Fatalf("expected grouping to introduce a helper rule, got %d rules", len(g.Rules))
	}
}

func TestParseUndefinedRuleReferenceIsError(t *testing.T) {
	_, err := ParseFile(`root ::= missing`, "root")
	if err == nil {
		t.Fatalf("expected an error for an undefined rule reference")
	}
}

func TestParseForwardReferenceResolves(t *testing.T) {
	// Two-pass semantics: "later" may be referenced before its own
	// definition appears in the source.
	_, err := ParseFile("root ::= later\nlater ::= \"x\"", "root")
	if err != nil {
		t.Fatalf("expected a forward reference to resolve, got: %v", err)
	}
}

func TestParseStarLowersCharClassDirectly(t *testing.T) {
	g := mustParseGrammar(t, `root ::= [a-z]*`, "root")
	if n := countRuleExprType(g, grammarir.CharacterClassStar); n != 1 {
		t.Fatalf("expected [a-z]* to lower to one CharacterClassStar node, got %d", n)
	}
}

func TestParseStarOnNonCharClassUsesHelperRule(t *testing.T) {
	g1 := mustParseGrammar(t, `root ::= "x"`, "root")
	before := len(g1.Rules)

	g2 := mustParseGrammar(t, `root ::= ("x" "y")*`, "root")
	if len(g2.Rules) <= before {
		t.Fatalf("expected X* over a non-charclass element to add helper rules")
	}
	if n := countRuleExprType(g2, grammarir.CharacterClassStar); n != 0 {
		t.Fatalf("expected (\"x\" \"y\")* not to lower to CharacterClassStar, got %d", n)
	}
}

func TestParsePlusRequiresOneOccurrence(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "x"+`, "root")
	if len(g.Rules) < 2 {
		t.Fatalf("expected X+ to lower via a helper rule")
	}
}

func TestParseOptionalAllowsZeroOrOne(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "x"?`, "root")
	if len(g.Rules) < 2 {
		t.Fatalf("expected X? to lower via a helper rule")
	}
}

func TestParseRepeatExactCount(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "x"{3}`, "root")
	rootBody := g.GetExpr(g.GetRule(g.RootID).Body)
	// ensureChoices wraps the body in Choices with one Sequence alternative
	// of three "x" ByteString elements.
	if rootBody.Type != grammarir.Choices || len(rootBody.Elements) != 1 {
		t.Fatalf("expected a single-alternative Choices root body, got %+v", rootBody)
	}
	seq := g.GetExpr(rootBody.Elements[0])
	if seq.Type != grammarir.Sequence || len(seq.Elements) != 3 {
		t.Fatalf("expected \"x\"{3} to lower to a 3-element sequence, got %+v", seq)
	}
}

func TestParseRepeatUnboundedUpper(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "x"{2,}`, "root")
	if n := countRuleExprType(g, grammarir.CharacterClassStar); n != 0 {
		t.Fatalf("\"x\"{2,} is over a ByteString, not a CharClass: expected no CharacterClassStar nodes")
	}
	// Two required "x" concatenations plus an unbounded star tail means at
	// least one helper rule for the star.
	if len(g.Rules) < 2 {
		t.Fatalf("expected \"x\"{2,} to introduce a star helper rule")
	}
}

func TestParseRepeatBoundedRange(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "x"{2,4}`, "root")
	// n=2 required copies plus a chain of (m-n)=2 optional-continuation
	// helper rules.
	if len(g.Rules) < 3 {
		t.Fatalf("expected \"x\"{2,4} to introduce optional-chain helper rules, got %d rules", len(g.Rules))
	}
}

func TestParseRepeatLowerExceedsUpperIsError(t *testing.T) {
	_, err := ParseFile(`root ::= "x"{5,2}`, "root")
	if err == nil {
		t.Fatalf("expected an error when the repetition lower bound exceeds the upper bound")
	}
}

func TestParseRootNotDefinedIsError(t *testing.T) {
	_, err := ParseFile(`root ::= "x"`, "missing")
	if err == nil {
		t.Fatalf("expected an error when the requested root rule is undefined")
	}
}

func TestParseTagDispatch(t *testing.T) {
	src := `
root ::= TagDispatch(("<a>", inner), stop_eos=false, loop=false, stop_strings=("</a>"))
inner ::= "x"
`
	g := mustParseGrammar(t, src, "root")
	if n := countRuleExprType(g, grammarir.TagDispatch); n != 1 {
		t.Fatalf("expected exactly one TagDispatch node, got %d", n)
	}
}

func TestParseLookaheadClause(t *testing.T) {
	g := mustParseGrammar(t, `root ::= "a" (= "b")`, "root")
	rootRule := g.GetRule(g.RootID)
	if rootRule.Lookahead == grammarir.RuleExprID(grammarir.InvalidID) {
		t.Fatalf("expected the root rule to carry a lookahead expression")
	}
	look := g.GetExpr(rootRule.Lookahead)
	if look.Type != grammarir.ByteString || string(look.Bytes) != "b" {
		t.Fatalf("expected the lookahead expression to be the byte string \"b\", got %+v", look)
	}
}
