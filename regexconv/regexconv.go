// Package regexconv lowers a standard-library regular expression into a
// grammarir.Grammar, implementing the `Grammar::from_regex(str)` entry
// point named in §6's CLI surface. It walks the same `regexp/syntax`
// parse tree the teacher's own `nfa/compile.go` walks to build an NFA,
// but emits grammarir rule-expressions instead of FSM fragments.
//
// Anchors (`^`, `$`, `\A`, `\z`) and word-boundary assertions (`\b`,
// `\B`) have no grammar-matching analog — a GrammarMatcher always
// matches a complete derivation from the root, so "start"/"end of input"
// is already implicit — and are accepted as no-ops rather than rejected,
// matching how a grammar author would write the equivalent pattern
// without them. Non-greedy quantifiers compile identically to their
// greedy counterparts: a CFG has no backtracking-order concept, only an
// accept/reject set, so greediness is unobservable.
package regexconv

import (
	"fmt"
	"regexp/syntax"

	"github.com/coregx/cfgmask/grammarir"
)

// FromRegex parses pattern with Go's regexp/syntax (the same front end
// `nfa/compile.go` uses) and lowers the resulting AST into a Grammar
// whose root rule accepts exactly the strings pattern matches.
func FromRegex(pattern string) (*grammarir.Grammar, error) {
	b := grammarir.NewBuilder()
	bodyID, err := AppendRegex(b, pattern)
	if err != nil {
		return nil, err
	}
	rootID, err := b.AddRule("root", ensureChoices(b, bodyID))
	if err != nil {
		return nil, err
	}
	b.SetRoot(rootID)
	return b.Build()
}

// AppendRegex lowers pattern into rule-expressions appended directly to
// an already-open Builder, returning the fragment's id without declaring
// a rule or root around it. This lets other front ends (the JSON-Schema
// converter's `pattern`/range-regex keywords) splice a regex-derived
// fragment into a grammar they are already building instead of
// round-tripping through a standalone Grammar.
func AppendRegex(b *grammarir.Builder, pattern string) (grammarir.RuleExprID, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return 0, fmt.Errorf("regexconv: parse %q: %w", pattern, err)
	}
	c := &converter{b: b}
	return c.convert(re)
}

// converter mirrors nfa.Compiler's recursive-descent shape (a depth
// counter guarding pathological nesting, one method per syntax.Op) but
// returns grammarir.RuleExprID fragments instead of (start, end) FSM
// state pairs.
type converter struct {
	b     *grammarir.Builder
	depth int
}

const maxRegexRecursionDepth = 1000

func (c *converter) convert(re *syntax.Regexp) (grammarir.RuleExprID, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxRegexRecursionDepth {
		return 0, fmt.Errorf("regexconv: pattern nesting exceeds recursion limit")
	}

	switch re.Op {
	case syntax.OpLiteral:
		return c.convertLiteral(re), nil
	case syntax.OpCharClass:
		return c.convertCharClass(re.Rune, false), nil
	case syntax.OpAnyChar:
		return c.b.AddCharacterClass(true, nil), nil
	case syntax.OpAnyCharNotNL:
		return c.b.AddCharacterClass(true, []grammarir.CodepointRange{{Low: '\n', High: '\n'}}), nil
	case syntax.OpConcat:
		return c.convertConcat(re.Sub)
	case syntax.OpAlternate:
		return c.convertAlternate(re.Sub)
	case syntax.OpStar:
		return c.convertRepeat(re.Sub[0], 0, -1)
	case syntax.OpPlus:
		return c.convertRepeat(re.Sub[0], 1, -1)
	case syntax.OpQuest:
		return c.convertRepeat(re.Sub[0], 0, 1)
	case syntax.OpRepeat:
		return c.convertRepeat(re.Sub[0], re.Min, re.Max)
	case syntax.OpCapture:
		return c.convert(re.Sub[0])
	case syntax.OpBeginText, syntax.OpEndText, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return c.b.AddEmptyStr(), nil
	case syntax.OpEmptyMatch:
		return c.b.AddEmptyStr(), nil
	default:
		return 0, fmt.Errorf("regexconv: unsupported regex operation %v", re.Op)
	}
}

// convertLiteral lowers a run of literal runes, folding case when the
// FoldCase flag is set by emitting a 2-alternative character class per
// letter instead of a fixed byte string.
func (c *converter) convertLiteral(re *syntax.Regexp) grammarir.RuleExprID {
	if re.Flags&syntax.FoldCase == 0 {
		var buf []byte
		for _, r := range re.Rune {
			buf = appendUTF8(buf, r)
		}
		return c.b.AddByteString(buf)
	}
	elems := make([]grammarir.RuleExprID, len(re.Rune))
	for i, r := range re.Rune {
		elems[i] = c.convertCharClass(foldedRanges(r), false)
	}
	return makeSequence(c.b, elems)
}

// convertCharClass lowers a syntax.Regexp.Rune range list (pairs of
// [lo,hi] codepoints) into a CharacterClass.
func (c *converter) convertCharClass(runes []rune, negated bool) grammarir.RuleExprID {
	ranges := make([]grammarir.CodepointRange, 0, len(runes)/2)
	for i := 0; i+1 < len(runes); i += 2 {
		ranges = append(ranges, grammarir.CodepointRange{Low: runes[i], High: runes[i+1]})
	}
	return c.b.AddCharacterClass(negated, ranges)
}

func (c *converter) convertConcat(subs []*syntax.Regexp) (grammarir.RuleExprID, error) {
	elems := make([]grammarir.RuleExprID, 0, len(subs))
	for _, s := range subs {
		id, err := c.convert(s)
		if err != nil {
			return 0, err
		}
		elems = append(elems, id)
	}
	return makeSequence(c.b, elems), nil
}

func (c *converter) convertAlternate(subs []*syntax.Regexp) (grammarir.RuleExprID, error) {
	alts := make([]grammarir.RuleExprID, 0, len(subs))
	for _, s := range subs {
		id, err := c.convert(s)
		if err != nil {
			return 0, err
		}
		alts = append(alts, id)
	}
	return c.b.AddChoices(alts), nil
}

// convertRepeat lowers `{min,max}` (max == -1 meaning unbounded) into a
// helper rule whose body is a single Repeat expression carrying both
// bounds; unlike the EBNF parser's lowerStar/lowerPlus, the helper rule
// does not refer to itself.
func (c *converter) convertRepeat(sub *syntax.Regexp, min, max int) (grammarir.RuleExprID, error) {
	elemID, err := c.convert(sub)
	if err != nil {
		return 0, err
	}
	name := c.b.GetNewRuleName("repeat")
	ruleID, err := c.b.AddEmptyRule(name)
	if err != nil {
		return 0, err
	}
	body := c.b.AddRepeat(elemID, min, max)
	c.b.SetRuleBody(ruleID, ensureChoices(c.b, body))
	return c.b.AddRuleRef(ruleID), nil
}

func ensureChoices(b *grammarir.Builder, id grammarir.RuleExprID) grammarir.RuleExprID {
	if b.ExprType(id) == grammarir.Choices {
		return id
	}
	return b.AddChoices([]grammarir.RuleExprID{id})
}

func makeSequence(b *grammarir.Builder, elems []grammarir.RuleExprID) grammarir.RuleExprID {
	switch len(elems) {
	case 0:
		return b.AddEmptyStr()
	case 1:
		return elems[0]
	default:
		return b.AddSequence(elems)
	}
}

func appendUTF8(buf []byte, r rune) []byte {
	switch {
	case r < 0x80:
		return append(buf, byte(r))
	case r < 0x800:
		return append(buf, byte(0xC0|r>>6), byte(0x80|r&0x3F))
	case r < 0x10000:
		return append(buf, byte(0xE0|r>>12), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	default:
		return append(buf, byte(0xF0|r>>18), byte(0x80|(r>>12)&0x3F), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	}
}

// foldedRanges returns the [lo,hi] pair list covering r and its simple
// case fold, for FoldCase literal lowering. Go's regexp/syntax already
// expands full Unicode case folding into CharClass nodes for anything
// beyond a single rune; this narrow helper only needs to handle the
// common ASCII-letter case emitted as an OpLiteral with FoldCase set.
func foldedRanges(r rune) []rune {
	lower, upper := r, r
	switch {
	case r >= 'a' && r <= 'z':
		upper = r - ('a' - 'A')
	case r >= 'A' && r <= 'Z':
		upper = r + ('a' - 'A')
	default:
		return []rune{r, r}
	}
	if lower == upper {
		return []rune{lower, lower}
	}
	if lower < upper {
		return []rune{lower, lower, upper, upper}
	}
	return []rune{upper, upper, lower, lower}
}
