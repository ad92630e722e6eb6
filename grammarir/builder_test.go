package grammarir

import "testing"

func TestBuilderBasicRule(t *testing.T) {
	b := NewBuilder()
	body := b.AddByteString([]byte("ok"))
	id, err := b.AddRule("root", body)
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	b.SetRoot(id)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.RootID != id || len(g.Rules) != 1 {
		t.Fatalf("unexpected grammar shape: %+v", g)
	}
}

func TestBuilderRejectsMissingRoot(t *testing.T) {
	b := NewBuilder()
	b.AddRule("root", b.AddEmptyStr())
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected Build to fail when SetRoot was never called")
	}
}

func TestBuilderRejectsEmptyRuleBody(t *testing.T) {
	b := NewBuilder()
	id, err := b.AddEmptyRule("root")
	if err != nil {
		t.Fatalf("AddEmptyRule: %v", err)
	}
	b.SetRoot(id)
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected Build to fail when a declared rule's body was never set")
	}
}

func TestGetNewRuleNameAvoidsCollisions(t *testing.T) {
	b := NewBuilder()
	first := b.GetNewRuleName("helper")
	second := b.GetNewRuleName("helper")
	third := b.GetNewRuleName("helper")
	if first != "helper" || second != "helper_1" || third != "helper_2" {
		t.Fatalf("got %q, %q, %q; want helper, helper_1, helper_2", first, second, third)
	}
}

func TestAppendGrammarRemapsIDsAndRenamesCollisions(t *testing.T) {
	inner := NewBuilder()
	innerBody := inner.AddByteString([]byte("x"))
	innerRoot, err := inner.AddRule("root", innerBody)
	if err != nil {
		t.Fatalf("inner AddRule: %v", err)
	}
	inner.SetRoot(innerRoot)
	g1, err := inner.Build()
	if err != nil {
		t.Fatalf("inner Build: %v", err)
	}

	outer := NewBuilder()
	// Declare a rule named "root" in outer first, so splicing g1 in must
	// rename g1's own "root" rule to avoid a collision.
	outerBody := outer.AddByteString([]byte("y"))
	outerRootID, err := outer.AddRule("root", outerBody)
	if err != nil {
		t.Fatalf("outer AddRule: %v", err)
	}

	ref := outer.AppendGrammar(g1)
	seq := outer.AddSequence([]RuleExprID{outer.AddRuleRef(outerRootID), ref})
	combinedRootID, err := outer.AddRule("combined", seq)
	if err != nil {
		t.Fatalf("AddRule(combined): %v", err)
	}
	outer.SetRoot(combinedRootID)

	g2, err := outer.Build()
	if err != nil {
		t.Fatalf("outer Build: %v", err)
	}

	if len(g2.Rules) != 3 {
		t.Fatalf("expected 3 rules after splicing (outer root, spliced root, combined), got %d", len(g2.Rules))
	}
	var sawRenamed bool
	for _, r := range g2.Rules {
		if r.Name == "root_1" {
			sawRenamed = true
		}
	}
	if !sawRenamed {
		t.Fatalf("expected the spliced grammar's \"root\" rule to be renamed to \"root_1\", rules: %+v", g2.Rules)
	}

	refExpr := g2.Exprs[ref]
	if refExpr.Type != RuleRef {
		t.Fatalf("AppendGrammar should return a RuleRef expression id, got %v", refExpr.Type)
	}
	target := g2.Rules[refExpr.Ref]
	if target.Name != "root_1" {
		t.Fatalf("AppendGrammar's returned RuleRef should point at the renamed spliced root, points at %q", target.Name)
	}
}
