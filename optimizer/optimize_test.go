package optimizer

import (
	"testing"

	"github.com/coregx/cfgmask/ebnf"
	"github.com/coregx/cfgmask/grammarir"
)

func mustParse(t *testing.T, src, root string) *grammarir.Grammar {
	t.Helper()
	g, err := ebnf.ParseFile(src, root)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return g
}

func TestOptimizeKeepsRootAndRules(t *testing.T) {
	g := mustParse(t, `
root ::= "{" pair ("," pair)* "}"
pair ::= key ":" value
key ::= [a-z]+
value ::= [0-9]+
`, "root")

	og, err := Optimize(g)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if og.RootID != g.RootID {
		t.Fatalf("optimize should not change RootID identity for this grammar shape")
	}
	if len(og.Rules) == 0 {
		t.Fatalf("optimized grammar lost all rules")
	}
}

func TestNormalizeSingleElementsCollapses(t *testing.T) {
	b := grammarir.NewBuilder()
	lit := b.AddByteString([]byte("x"))
	seq := b.AddSequence([]grammarir.RuleExprID{lit})
	choice := b.AddChoices([]grammarir.RuleExprID{seq})
	ruleID, _ := b.AddRule("root", choice)
	b.SetRoot(ruleID)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	normalizeSingleElements(g)

	body := g.GetExpr(g.GetRule(g.RootID).Body)
	if body.Type != grammarir.ByteString {
		t.Fatalf("expected single-element Choices(Sequence(lit)) to collapse to ByteString, got %s", body.Type)
	}
}

func TestFuseByteStringsMergesAdjacentLiterals(t *testing.T) {
	g := mustParse(t, `root ::= "a" "b" "c"`, "root")
	fuseByteStrings(g)

	// root's body is Choices([Sequence(["a","b","c"])]); fuseByteStrings
	// only rewrites Sequence.Elements in place, so the single fused
	// ByteString still sits behind that Sequence wrapper here (a later
	// normalizeSingleElements pass would collapse it further).
	choices := g.GetExpr(g.GetRule(g.RootID).Body)
	seq := g.GetExpr(choices.Elements[0])
	if len(seq.Elements) != 1 {
		t.Fatalf("expected the three literals to fuse into one element, got %d", len(seq.Elements))
	}
	fused := g.GetExpr(seq.Elements[0])
	if fused.Type != grammarir.ByteString || string(fused.Bytes) != "abc" {
		t.Fatalf("expected fused ByteString %q, got %s %q", "abc", fused.Type, fused.Bytes)
	}
}

func TestEliminateDeadCodeDropsUnreachableRule(t *testing.T) {
	b := grammarir.NewBuilder()
	lit := b.AddByteString([]byte("x"))
	rootID, _ := b.AddRule("root", lit)
	b.SetRoot(rootID)

	dead := b.AddByteString([]byte("unused"))
	if _, err := b.AddRule("dead", dead); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Rules) != 2 {
		t.Fatalf("expected 2 rules before DCE, got %d", len(g.Rules))
	}

	if err := eliminateDeadCode(g); err != nil {
		t.Fatalf("eliminateDeadCode: %v", err)
	}
	if len(g.Rules) != 1 {
		t.Fatalf("expected unreachable rule to be dropped, have %d rules", len(g.Rules))
	}
	if g.Rules[g.RootID].Name != "root" {
		t.Fatalf("root rule identity lost after renumbering")
	}
}

func TestComputeAllowEmptyMarksNullableRule(t *testing.T) {
	g := mustParse(t, `
root ::= maybe "x"
maybe ::= "y"*
`, "root")

	computeAllowEmpty(g)

	maybeID, _ := findRuleByName(g, "maybe")
	if !g.CanDeriveEmpty(maybeID) {
		t.Fatalf("expected rule with a starred body to be allow-empty")
	}
}

func findRuleByName(g *grammarir.Grammar, name string) (grammarir.RuleID, bool) {
	for i, r := range g.Rules {
		if r.Name == name {
			return grammarir.RuleID(i), true
		}
	}
	return 0, false
}

func TestBuildFSMsProducesHandlePerRule(t *testing.T) {
	g := mustParse(t, `
root ::= "ab" | "ac"
`, "root")
	og, err := Optimize(g)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	fsms, err := BuildFSMs(og)
	if err != nil {
		t.Fatalf("BuildFSMs: %v", err)
	}
	if _, ok := fsms.Rules[og.RootID]; !ok {
		t.Fatalf("expected a RuleFSM handle for the root rule")
	}
	if fsms.Complete == nil {
		t.Fatalf("expected a non-nil merged complete FSM")
	}
}
