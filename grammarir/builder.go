package grammarir

import (
	"fmt"
	"strconv"
)

// Builder provides typed constructors that append to the flat
// rule-expression arena and the rule table, mirroring the teacher's
// incremental nfa.Builder but over grammar rule-expressions instead of
// FSM states.
type Builder struct {
	g         Grammar
	nameToID  map[string]RuleID
	nameUsage map[string]int
}

// NewBuilder creates an empty grammar builder.
func NewBuilder() *Builder {
	return &Builder{
		g:         Grammar{RootID: RuleID(InvalidID)},
		nameToID:  make(map[string]RuleID),
		nameUsage: make(map[string]int),
	}
}

// AddByteString appends a ByteString rule-expression.
func (b *Builder) AddByteString(bytes []byte) RuleExprID {
	return b.add(RuleExpr{Type: ByteString, Bytes: append([]byte(nil), bytes...)})
}

// AddCharacterClass appends a CharacterClass rule-expression.
func (b *Builder) AddCharacterClass(negated bool, ranges []CodepointRange) RuleExprID {
	return b.add(RuleExpr{Type: CharacterClass, Negated: negated, Ranges: ranges})
}

// AddCharacterClassStar appends a CharacterClassStar rule-expression.
func (b *Builder) AddCharacterClassStar(negated bool, ranges []CodepointRange) RuleExprID {
	return b.add(RuleExpr{Type: CharacterClassStar, Negated: negated, Ranges: ranges})
}

// AddCharacterClassStarFrom rewrites an already-built CharacterClass
// expression into an equivalent CharacterClassStar, used when lowering a
// `*`-quantified character class directly instead of via a helper rule.
func (b *Builder) AddCharacterClassStarFrom(charClass RuleExprID) RuleExprID {
	src := b.g.Exprs[charClass]
	return b.add(RuleExpr{Type: CharacterClassStar, Negated: src.Negated, Ranges: src.Ranges})
}

// AddEmptyStr appends an EmptyStr rule-expression.
func (b *Builder) AddEmptyStr() RuleExprID {
	return b.add(RuleExpr{Type: EmptyStr})
}

// AddRuleRef appends a RuleRef rule-expression.
func (b *Builder) AddRuleRef(ref RuleID) RuleExprID {
	return b.add(RuleExpr{Type: RuleRef, Ref: ref})
}

// AddSequence appends a Sequence rule-expression.
func (b *Builder) AddSequence(elements []RuleExprID) RuleExprID {
	return b.add(RuleExpr{Type: Sequence, Elements: elements})
}

// AddChoices appends a Choices rule-expression.
func (b *Builder) AddChoices(elements []RuleExprID) RuleExprID {
	return b.add(RuleExpr{Type: Choices, Elements: elements})
}

// AddRepeat appends a Repeat rule-expression. max == -1 means unbounded.
func (b *Builder) AddRepeat(body RuleExprID, min, max int) RuleExprID {
	return b.add(RuleExpr{Type: Repeat, RepeatBody: body, Min: min, Max: max})
}

// AddTagDispatch appends a TagDispatch rule-expression.
func (b *Builder) AddTagDispatch(triggers []TagTrigger, stopEOS bool, stopStrings []string, loop bool) RuleExprID {
	return b.add(RuleExpr{
		Type:              TagDispatch,
		Triggers:          triggers,
		StopEOS:           stopEOS,
		StopStrings:       stopStrings,
		LoopAfterDispatch: loop,
	})
}

func (b *Builder) add(e RuleExpr) RuleExprID {
	id := RuleExprID(len(b.g.Exprs))
	b.g.Exprs = append(b.g.Exprs, e)
	return id
}

// GetNewRuleName allocates a fresh, unused rule name derived from hint:
// hint, then hint_1, hint_2, ... until an unused name is found, matching
// the builder contract "get_new_rule_name(hint) allocates hint, hint_1,
// ... to avoid collisions".
func (b *Builder) GetNewRuleName(hint string) string {
	if _, used := b.nameUsage[hint]; !used {
		b.nameUsage[hint] = 0
		return hint
	}
	for {
		b.nameUsage[hint]++
		candidate := hint + "_" + strconv.Itoa(b.nameUsage[hint])
		if _, used := b.nameUsage[candidate]; !used {
			b.nameUsage[candidate] = 0
			return candidate
		}
	}
}

// AddEmptyRule declares a rule with name and an as-yet-undetermined body,
// returning its id so mutually recursive rule creation (e.g. during
// inlining) can construct bodies that reference it before it is filled
// in via SetRuleBody.
func (b *Builder) AddEmptyRule(name string) (RuleID, error) {
	if _, exists := b.nameToID[name]; exists {
		return RuleID(InvalidID), fmt.Errorf("grammarir: duplicate rule name %q", name)
	}
	id := RuleID(len(b.g.Rules))
	b.g.Rules = append(b.g.Rules, Rule{Name: name, Body: RuleExprID(InvalidID), Lookahead: RuleExprID(InvalidID)})
	b.nameToID[name] = id
	b.nameUsage[name] = 0
	return id, nil
}

// AddRule declares a rule with a fully-built body in one step.
func (b *Builder) AddRule(name string, body RuleExprID) (RuleID, error) {
	id, err := b.AddEmptyRule(name)
	if err != nil {
		return RuleID(InvalidID), err
	}
	b.g.Rules[id].Body = body
	return id, nil
}

// SetRuleBody fills in the body of a rule previously declared with
// AddEmptyRule.
func (b *Builder) SetRuleBody(id RuleID, body RuleExprID) {
	b.g.Rules[id].Body = body
}

// SetLookahead attaches a lookahead-assertion expression id to a rule.
func (b *Builder) SetLookahead(id RuleID, lookahead RuleExprID, exact bool) {
	b.g.Rules[id].Lookahead = lookahead
	b.g.Rules[id].IsExactLookahead = exact
}

// RuleIDByName looks up a previously declared rule by name.
func (b *Builder) RuleIDByName(name string) (RuleID, bool) {
	id, ok := b.nameToID[name]
	return id, ok
}

// ExprType reports the type tag of an already-built rule-expression,
// without exposing the underlying arena.
func (b *Builder) ExprType(id RuleExprID) RuleExprType {
	return b.g.Exprs[id].Type
}

// RuleNames returns every rule name declared so far, in declaration
// order. Used for fuzzy "did you mean" suggestions on undefined
// references.
func (b *Builder) RuleNames() []string {
	names := make([]string, len(b.g.Rules))
	for i, r := range b.g.Rules {
		names[i] = r.Name
	}
	return names
}

// AppendGrammar copies every rule and rule-expression from an
// already-built Grammar into the builder, remapping ids by the
// builder's current offsets and renaming any colliding rule name via
// GetNewRuleName, then returns a RuleRef to g's root rule. Used by the
// top-level union/concat/star/plus/optional grammar combinators to
// splice independently-built grammars together without re-parsing them.
// g's AllowEmptyRuleIDs annotation is not carried over: it is an
// optimizer-pass artifact recomputed from scratch the next time the
// combined grammar is compiled.
func (b *Builder) AppendGrammar(g *Grammar) RuleExprID {
	exprOffset := RuleExprID(len(b.g.Exprs))
	ruleOffset := RuleID(len(b.g.Rules))

	remapExpr := func(id RuleExprID) RuleExprID {
		if id == RuleExprID(InvalidID) {
			return id
		}
		return id + exprOffset
	}
	remapRule := func(id RuleID) RuleID {
		if id == RuleID(InvalidID) {
			return id
		}
		return id + ruleOffset
	}

	for _, e := range g.Exprs {
		ne := e
		switch e.Type {
		case Sequence, Choices:
			ne.Elements = make([]RuleExprID, len(e.Elements))
			for i, el := range e.Elements {
				ne.Elements[i] = remapExpr(el)
			}
		case Repeat:
			ne.RepeatBody = remapExpr(e.RepeatBody)
		case RuleRef:
			ne.Ref = remapRule(e.Ref)
		case TagDispatch:
			ne.Triggers = make([]TagTrigger, len(e.Triggers))
			for i, t := range e.Triggers {
				ne.Triggers[i] = TagTrigger{Trigger: t.Trigger, RuleID: remapRule(t.RuleID)}
			}
		}
		b.g.Exprs = append(b.g.Exprs, ne)
	}

	for i, r := range g.Rules {
		nr := r
		nr.Body = remapExpr(r.Body)
		if r.Lookahead != RuleExprID(InvalidID) {
			nr.Lookahead = remapExpr(r.Lookahead)
		}
		nr.Name = b.GetNewRuleName(r.Name)
		b.g.Rules = append(b.g.Rules, nr)
		b.nameToID[nr.Name] = RuleID(i) + ruleOffset
	}

	return b.add(RuleExpr{Type: RuleRef, Ref: remapRule(g.RootID)})
}

// SetRoot sets the grammar's root rule.
func (b *Builder) SetRoot(id RuleID) { b.g.RootID = id }

// Build finalises and returns the constructed Grammar. The builder must
// not be used afterwards.
func (b *Builder) Build() (*Grammar, error) {
	if b.g.RootID == RuleID(InvalidID) {
		return nil, fmt.Errorf("grammarir: root rule not set")
	}
	for i, r := range b.g.Rules {
		if r.Body == RuleExprID(InvalidID) {
			return nil, fmt.Errorf("grammarir: rule %q (id %d) has no body", r.Name, i)
		}
	}
	g := b.g
	return &g, nil
}
