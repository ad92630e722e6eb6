package ebnf

import (
	"fmt"

	"github.com/coregx/cfgmask/grammarir"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxRecursionDepth guards against pathological nesting overflowing the
// native call stack, per §5 "A recursion-depth guard (configurable,
// default e.g. 10 000) limits grammar-parser ... recursion".
const maxRecursionDepth = 10000

// Parser is a recursive-descent parser over a token stream, building a
// grammarir.Grammar via grammarir.Builder. Two passes are required: the
// first collects every rule name so forward references resolve; the
// second builds rule bodies.
type Parser struct {
	toks  []Token
	pos   int
	b     *grammarir.Builder
	depth int
}

// ParseFile parses EBNF source text into a grammarir.Grammar. root names
// the rule to use as the grammar root.
func ParseFile(src string, root string) (*grammarir.Grammar, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, b: grammarir.NewBuilder()}
	if err := p.collectRuleNames(); err != nil {
		return nil, err
	}
	if err := p.parseRules(); err != nil {
		return nil, err
	}
	rootID, ok := p.b.RuleIDByName(root)
	if !ok {
		return nil, newSyntaxErrorf(Position{}, "root rule %q not defined", root)
	}
	p.b.SetRoot(rootID)
	return p.b.Build()
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) peekN(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) adv() Token { t := p.toks[p.pos]; p.pos++; return t }

func (p *Parser) expect(kind TokenKind) (Token, error) {
	if p.cur().Kind != kind {
		return Token{}, newSyntaxErrorf(p.cur().Pos, "expected %s, got %s", kind, p.cur().Kind)
	}
	return p.adv(), nil
}

// collectRuleNames scans the full token stream for `RuleName ::=`
// occurrences (identified by the lexer's post-pass retagging) and
// declares each as an empty rule, so any rule may forward-reference any
// other, per §4.D's "two-pass semantics".
func (p *Parser) collectRuleNames() error {
	for i := 0; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.Kind != TokRuleName {
			continue
		}
		if _, err := p.b.AddEmptyRule(t.Text); err != nil {
			return newSyntaxErrorf(t.Pos, "%v", err)
		}
	}
	return nil
}

func (p *Parser) parseRules() error {
	for p.cur().Kind != TokEOF {
		if err := p.parseRule(); err != nil {
			return err
		}
	}
	return nil
}

// parseRule parses `RuleName ::= choices [ (= sequence ) ]`.
func (p *Parser) parseRule() error {
	nameTok, err := p.expect(TokRuleName)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokAssign); err != nil {
		return err
	}
	ruleID, _ := p.b.RuleIDByName(nameTok.Text)

	body, err := p.parseChoices()
	if err != nil {
		return err
	}
	p.b.SetRuleBody(ruleID, p.ensureChoices(body))

	if p.cur().Kind == TokLookaheadOpen {
		p.adv()
		look, err := p.parseSequence()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return err
		}
		p.b.SetLookahead(ruleID, look, false)
	}
	return nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxRecursionDepth {
		return newSyntaxErrorf(p.cur().Pos, "grammar nesting exceeds recursion limit")
	}
	return nil
}
func (p *Parser) leave() { p.depth-- }

// parseChoices parses Sequence ('|' Sequence)*.
func (p *Parser) parseChoices() (grammarir.RuleExprID, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	var alts []grammarir.RuleExprID
	seq, err := p.parseSequence()
	if err != nil {
		return 0, err
	}
	alts = append(alts, seq)
	for p.cur().Kind == TokPipe {
		p.adv()
		seq, err := p.parseSequence()
		if err != nil {
			return 0, err
		}
		alts = append(alts, seq)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return p.b.AddChoices(alts), nil
}

func startsSequenceElement(k TokenKind) bool {
	switch k {
	case TokLParen, TokCharClass, TokStringLiteral, TokIdentifier:
		return true
	default:
		return false
	}
}

// parseSequence parses one or more ElementWithQuantifier.
func (p *Parser) parseSequence() (grammarir.RuleExprID, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	var elems []grammarir.RuleExprID
	for startsSequenceElement(p.cur().Kind) {
		e, err := p.parseElementWithQuantifier()
		if err != nil {
			return 0, err
		}
		elems = append(elems, e)
	}
	if len(elems) == 0 {
		return p.b.AddEmptyStr(), nil
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return p.b.AddSequence(elems), nil
}

// parseElementWithQuantifier parses Element [ * | + | ? | {n[,m?]} ].
func (p *Parser) parseElementWithQuantifier() (grammarir.RuleExprID, error) {
	elem, isCharClass, err := p.parseElement()
	if err != nil {
		return 0, err
	}

	switch p.cur().Kind {
	case TokStar:
		p.adv()
		return p.lowerStar(elem, isCharClass)
	case TokPlus:
		p.adv()
		return p.lowerPlus(elem)
	case TokQuestion:
		p.adv()
		return p.lowerOptional(elem)
	case TokLBrace:
		return p.parseRepeatQuantifier(elem)
	default:
		return elem, nil
	}
}

// wrapAsRuleRef parks a grouped sub-expression behind a freshly named
// rule, returning a RuleRef to it. Atomic expressions (CharacterClass,
// ByteString, RuleRef, EmptyStr, TagDispatch) are left as-is, since they
// are already legal directly inside a Sequence.
func (p *Parser) wrapAsRuleRef(expr grammarir.RuleExprID) (grammarir.RuleExprID, error) {
	switch p.b.ExprType(expr) {
	case grammarir.Sequence, grammarir.Choices:
		name := p.b.GetNewRuleName("group")
		ruleID, err := p.b.AddRule(name, p.ensureChoices(expr))
		if err != nil {
			return 0, err
		}
		return p.b.AddRuleRef(ruleID), nil
	default:
		return expr, nil
	}
}

// ensureChoices guarantees a rule body is always a Choices node, even
// when the grammar text gave it a single alternative, so downstream
// consumers never need to special-case a bare rule body.
func (p *Parser) ensureChoices(body grammarir.RuleExprID) grammarir.RuleExprID {
	if p.b.ExprType(body) == grammarir.Choices {
		return body
	}
	return p.b.AddChoices([]grammarir.RuleExprID{body})
}

// lowerStar implements quantifier lowering: `X*` where X is a CharClass
// becomes CharacterClassStar directly; otherwise a new helper rule
// `R ::= "" | X R`.
func (p *Parser) lowerStar(elem grammarir.RuleExprID, isCharClass bool) (grammarir.RuleExprID, error) {
	if isCharClass {
		return p.b.AddCharacterClassStarFrom(elem), nil
	}
	name := p.b.GetNewRuleName("star")
	ruleID, err := p.b.AddEmptyRule(name)
	if err != nil {
		return 0, err
	}
	ref := p.b.AddRuleRef(ruleID)
	body := p.b.AddChoices([]grammarir.RuleExprID{
		p.b.AddEmptyStr(),
		p.b.AddSequence([]grammarir.RuleExprID{elem, ref}),
	})
	p.b.SetRuleBody(ruleID, body)
	return p.b.AddRuleRef(ruleID), nil
}

// lowerPlus implements `X+` ⇒ new rule `R ::= X R | X`.
func (p *Parser) lowerPlus(elem grammarir.RuleExprID) (grammarir.RuleExprID, error) {
	name := p.b.GetNewRuleName("plus")
	ruleID, err := p.b.AddEmptyRule(name)
	if err != nil {
		return 0, err
	}
	ref := p.b.AddRuleRef(ruleID)
	body := p.b.AddChoices([]grammarir.RuleExprID{
		p.b.AddSequence([]grammarir.RuleExprID{elem, ref}),
		elem,
	})
	p.b.SetRuleBody(ruleID, body)
	return p.b.AddRuleRef(ruleID), nil
}

// lowerOptional implements `X?` ⇒ new rule `R ::= "" | X`.
func (p *Parser) lowerOptional(elem grammarir.RuleExprID) (grammarir.RuleExprID, error) {
	name := p.b.GetNewRuleName("opt")
	ruleID, err := p.b.AddEmptyRule(name)
	if err != nil {
		return 0, err
	}
	body := p.b.AddChoices([]grammarir.RuleExprID{p.b.AddEmptyStr(), elem})
	p.b.SetRuleBody(ruleID, body)
	return p.b.AddRuleRef(ruleID), nil
}

// parseRepeatQuantifier parses `{n}`, `{n,}`, `{n,m}` and lowers per
// §4.D's quantifier-lowering rules.
func (p *Parser) parseRepeatQuantifier(elem grammarir.RuleExprID) (grammarir.RuleExprID, error) {
	pos := p.cur().Pos
	p.adv() // '{'
	nTok, err := p.expect(TokIntegerLiteral)
	if err != nil {
		return 0, err
	}
	n := int(nTok.Int)

	if p.cur().Kind == TokRBrace {
		p.adv()
		return p.concatN(elem, n), nil
	}
	if _, err := p.expect(TokComma); err != nil {
		return 0, err
	}
	if p.cur().Kind == TokRBrace {
		p.adv()
		// X{n,} ⇒ n concatenations then new rule R ::= "" | X R.
		star, err := p.lowerStar(elem, false)
		if err != nil {
			return 0, err
		}
		return p.b.AddSequence(append(p.repeatIDs(elem, n), star)), nil
	}
	mTok, err := p.expect(TokIntegerLiteral)
	if err != nil {
		return 0, err
	}
	m := int(mTok.Int)
	if _, err := p.expect(TokRBrace); err != nil {
		return 0, err
	}
	if m < n {
		return 0, newSyntaxErrorf(pos, "repetition lower bound %d exceeds upper bound %d", n, m)
	}
	if m == n {
		return p.concatN(elem, n), nil
	}
	// X{n,m} with m > n ⇒ n concatenations then a chain of m-n rules
	// each Ri ::= "" | X R(i+1).
	tail, err := p.lowerOptionalChain(elem, m-n)
	if err != nil {
		return 0, err
	}
	return p.b.AddSequence(append(p.repeatIDs(elem, n), tail)), nil
}

func (p *Parser) repeatIDs(elem grammarir.RuleExprID, n int) []grammarir.RuleExprID {
	ids := make([]grammarir.RuleExprID, n)
	for i := range ids {
		ids[i] = elem
	}
	return ids
}

func (p *Parser) concatN(elem grammarir.RuleExprID, n int) grammarir.RuleExprID {
	if n == 0 {
		return p.b.AddEmptyStr()
	}
	if n == 1 {
		return elem
	}
	return p.b.AddSequence(p.repeatIDs(elem, n))
}

// lowerOptionalChain builds the `count`-long chain of
// `Ri ::= "" | X R(i+1)` rules for the X{n,m} case, returning a reference
// to the first rule in the chain.
func (p *Parser) lowerOptionalChain(elem grammarir.RuleExprID, count int) (grammarir.RuleExprID, error) {
	if count <= 0 {
		return p.b.AddEmptyStr(), nil
	}
	ids := make([]grammarir.RuleID, count)
	for i := range ids {
		id, err := p.b.AddEmptyRule(p.b.GetNewRuleName("reprange"))
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}
	for i, id := range ids {
		var tail grammarir.RuleExprID
		if i+1 < count {
			tail = p.b.AddRuleRef(ids[i+1])
		} else {
			tail = p.b.AddEmptyStr()
		}
		body := p.b.AddChoices([]grammarir.RuleExprID{
			p.b.AddEmptyStr(),
			p.b.AddSequence([]grammarir.RuleExprID{elem, tail}),
		})
		p.b.SetRuleBody(id, body)
	}
	return p.b.AddRuleRef(ids[0]), nil
}

// parseElement parses `(` Choices `)` | CharClass | StringLiteral |
// MacroCall | RuleRef. isCharClass reports whether the produced
// expression is a bare CharacterClass (used by the `*` quantifier to
// decide between direct CharacterClassStar lowering and a helper rule).
func (p *Parser) parseElement() (id grammarir.RuleExprID, isCharClass bool, err error) {
	tok := p.cur()
	switch tok.Kind {
	case TokLParen:
		p.adv()
		inner, err := p.parseChoices()
		if err != nil {
			return 0, false, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return 0, false, err
		}
		// A group's body may be a Sequence or Choices, which cannot sit
		// directly inside another Sequence's element list (every element
		// must be atomic or a RuleRef). Park it behind a helper rule, the
		// same trick the quantifier lowerings use.
		ref, err := p.wrapAsRuleRef(inner)
		if err != nil {
			return 0, false, err
		}
		return ref, false, nil
	case TokCharClass:
		p.adv()
		ranges := make([]grammarir.CodepointRange, len(tok.Class.Ranges))
		for i, r := range tok.Class.Ranges {
			ranges[i] = grammarir.CodepointRange{Low: r.Low, High: r.High}
		}
		return p.b.AddCharacterClass(tok.Class.Negated, ranges), true, nil
	case TokStringLiteral:
		p.adv()
		return p.b.AddByteString([]byte(tok.Str)), false, nil
	case TokIdentifier:
		if p.isMacroCall() {
			id, err := p.parseMacroCall()
			return id, false, err
		}
		return p.parseRuleRef()
	default:
		return 0, false, newSyntaxErrorf(tok.Pos, "unexpected token %s in element position", tok.Kind)
	}
}

func (p *Parser) isMacroCall() bool {
	return p.cur().Text == "TagDispatch" && p.peekN(1).Kind == TokLParen
}

func (p *Parser) parseRuleRef() (grammarir.RuleExprID, bool, error) {
	tok := p.adv()
	id, ok := p.b.RuleIDByName(tok.Text)
	if !ok {
		return 0, false, newSyntaxErrorf(tok.Pos, "undefined rule reference %q%s", tok.Text, suggestClosest(tok.Text, p.b))
	}
	return p.b.AddRuleRef(id), false, nil
}

// parseMacroCall parses `TagDispatch(("trigger", rule), ..., key=value)`.
// Positional arguments are (string, rule) trigger pairs; keyword
// arguments configure stop_eos (bool), loop (bool) and stop_strings (a
// parenthesised list of string literals), matching the typed JSON-like
// literal arguments named in §4.D.
func (p *Parser) parseMacroCall() (grammarir.RuleExprID, error) {
	p.adv() // "TagDispatch"
	if _, err := p.expect(TokLParen); err != nil {
		return 0, err
	}

	var triggers []grammarir.TagTrigger
	stopEOS := true
	loop := true
	var stopStrings []string

	for p.cur().Kind != TokRParen {
		if p.cur().Kind == TokLParen {
			p.adv()
			strTok, err := p.expect(TokStringLiteral)
			if err != nil {
				return 0, err
			}
			if _, err := p.expect(TokComma); err != nil {
				return 0, err
			}
			ruleTok, err := p.expect(TokIdentifier)
			if err != nil {
				return 0, err
			}
			ruleID, ok := p.b.RuleIDByName(ruleTok.Text)
			if !ok {
				return 0, newSyntaxErrorf(ruleTok.Pos, "undefined rule reference %q in TagDispatch%s", ruleTok.Text, suggestClosest(ruleTok.Text, p.b))
			}
			if _, err := p.expect(TokRParen); err != nil {
				return 0, err
			}
			triggers = append(triggers, grammarir.TagTrigger{Trigger: strTok.Str, RuleID: ruleID})
		} else {
			keyTok, err := p.expect(TokIdentifier)
			if err != nil {
				return 0, err
			}
			if _, err := p.expect(TokEquals); err != nil {
				return 0, err
			}
			switch keyTok.Text {
			case "stop_eos":
				v, err := p.expect(TokBoolean)
				if err != nil {
					return 0, err
				}
				stopEOS = v.Bool
			case "loop":
				v, err := p.expect(TokBoolean)
				if err != nil {
					return 0, err
				}
				loop = v.Bool
			case "stop_strings":
				if _, err := p.expect(TokLParen); err != nil {
					return 0, err
				}
				for p.cur().Kind != TokRParen {
					s, err := p.expect(TokStringLiteral)
					if err != nil {
						return 0, err
					}
					stopStrings = append(stopStrings, s.Str)
					if p.cur().Kind == TokComma {
						p.adv()
					}
				}
				p.adv() // ')'
			default:
				return 0, newSyntaxErrorf(keyTok.Pos, "unknown TagDispatch keyword argument %q", keyTok.Text)
			}
		}
		if p.cur().Kind == TokComma {
			p.adv()
		}
	}
	p.adv() // ')'
	if len(triggers) == 0 {
		return 0, newSyntaxErrorf(p.cur().Pos, "TagDispatch requires at least one trigger")
	}
	return p.b.AddTagDispatch(triggers, stopEOS, stopStrings, loop), nil
}

// suggestClosest returns a " (did you mean %q?)" hint for an undefined
// rule reference, using fuzzy string matching over every declared rule
// name, per §7.1's call for actionable diagnostics on user input errors.
// It returns the empty string when no sufficiently close name exists.
func suggestClosest(name string, b *grammarir.Builder) string {
	best := ""
	bestRank := -1
	for _, candidate := range b.RuleNames() {
		r := fuzzy.RankMatch(name, candidate)
		if r < 0 {
			continue
		}
		if bestRank == -1 || r < bestRank {
			bestRank = r
			best = candidate
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
