// Package cfgmask constrains LLM decoding to a context-free grammar in
// real time: a grammar compiler/optimizer, an Earley-over-FSM matcher,
// and an adaptive per-token-mask cache, tying together the grammarir,
// ebnf, regexconv, jsonschema, optimizer, compiled, matcher, and
// maskcache packages behind the single public surface named in §6.
//
// A typical session: build a Grammar (FromEBNF/FromJSONSchema/
// FromRegex/FromStructuralTag/BuiltinJSONGrammar), compile it against a
// TokenizerInfo with a GrammarCompiler, then drive one GrammarMatcher
// per in-flight generation, calling FillNextTokenBitmask before each
// sampling step and AcceptToken after it.
package cfgmask

import (
	"github.com/coregx/cfgmask/ebnf"
	"github.com/coregx/cfgmask/grammarir"
	"github.com/coregx/cfgmask/jsonschema"
	"github.com/coregx/cfgmask/regexconv"
)

// Grammar wraps a compiled grammar IR, matching §6's `Grammar` handle
// type: an immutable, shareable description of a language, not yet
// bound to a tokenizer or vocabulary.
type Grammar struct {
	ir *grammarir.Grammar
}

// IR exposes the underlying grammarir.Grammar, e.g. to pass to
// optimizer.Optimize directly or to inspect rule names for diagnostics.
func (g *Grammar) IR() *grammarir.Grammar { return g.ir }

// FromEBNF parses an EBNF grammar source and lowers it to a Grammar
// rooted at the rule named root, per §6's `Grammar::from_ebnf(str,
// root)`.
func FromEBNF(src, root string) (*Grammar, error) {
	g, err := ebnf.ParseFile(src, root)
	if err != nil {
		return nil, err
	}
	return &Grammar{ir: g}, nil
}

// FromJSONSchema lowers a JSON Schema document into a Grammar, per §6's
// `Grammar::from_json_schema(schema, ...)`.
func FromJSONSchema(schemaJSON []byte, opts ...jsonschema.Option) (*Grammar, error) {
	g, err := jsonschema.FromJSONSchema(schemaJSON, opts...)
	if err != nil {
		return nil, err
	}
	return &Grammar{ir: g}, nil
}

// FromRegex lowers a standard regular expression into a Grammar, per
// §6's `Grammar::from_regex(str)`.
func FromRegex(pattern string) (*Grammar, error) {
	g, err := regexconv.FromRegex(pattern)
	if err != nil {
		return nil, err
	}
	return &Grammar{ir: g}, nil
}

// FromStructuralTag lowers a structural-tag JSON document into a
// Grammar, per §6's `Grammar::from_structural_tag(json)`.
func FromStructuralTag(tagJSON []byte, opts ...jsonschema.Option) (*Grammar, error) {
	g, err := jsonschema.StructuralTag(tagJSON, opts...)
	if err != nil {
		return nil, err
	}
	return &Grammar{ir: g}, nil
}

// BuiltinJSONGrammar returns the Grammar accepting any well-formed JSON
// value, per §6's `Grammar::builtin_json_grammar()`. Equivalent to
// compiling the empty JSON Schema `{}`.
func BuiltinJSONGrammar() (*Grammar, error) {
	return FromJSONSchema([]byte("{}"))
}

// Union returns a Grammar accepting any string accepted by at least one
// of gs, per §6's `Grammar::union`.
func Union(gs ...*Grammar) (*Grammar, error) {
	if len(gs) == 0 {
		return nil, errNoGrammars("union")
	}
	b := grammarir.NewBuilder()
	alts := make([]grammarir.RuleExprID, len(gs))
	for i, g := range gs {
		alts[i] = b.AppendGrammar(g.ir)
	}
	return finishCombinator(b, b.AddChoices(alts))
}

// Concat returns a Grammar accepting the concatenation of one string
// from each of gs, in order, per §6's `Grammar::concat`.
func Concat(gs ...*Grammar) (*Grammar, error) {
	if len(gs) == 0 {
		return nil, errNoGrammars("concat")
	}
	b := grammarir.NewBuilder()
	elems := make([]grammarir.RuleExprID, len(gs))
	for i, g := range gs {
		elems[i] = b.AppendGrammar(g.ir)
	}
	if len(elems) == 1 {
		return finishCombinator(b, elems[0])
	}
	return finishCombinator(b, b.AddSequence(elems))
}

// Star returns a Grammar accepting zero or more repetitions of g, per
// §6's `Grammar::star`.
func Star(g *Grammar) (*Grammar, error) { return repeatCombinator(g, 0, -1) }

// Plus returns a Grammar accepting one or more repetitions of g, per
// §6's `Grammar::plus`.
func Plus(g *Grammar) (*Grammar, error) { return repeatCombinator(g, 1, -1) }

// Optional returns a Grammar accepting zero or one repetitions of g,
// per §6's `Grammar::optional`.
func Optional(g *Grammar) (*Grammar, error) { return repeatCombinator(g, 0, 1) }

func repeatCombinator(g *Grammar, min, max int) (*Grammar, error) {
	b := grammarir.NewBuilder()
	elem := b.AppendGrammar(g.ir)
	return finishCombinator(b, b.AddRepeat(elem, min, max))
}

// finishCombinator wraps body in a fresh root rule and finalises b.
// GetNewRuleName avoids colliding with any "root" rule already copied
// in from an operand grammar by AppendGrammar.
func finishCombinator(b *grammarir.Builder, body grammarir.RuleExprID) (*Grammar, error) {
	name := b.GetNewRuleName("root")
	rootID, err := b.AddRule(name, ensureChoices(b, body))
	if err != nil {
		return nil, err
	}
	b.SetRoot(rootID)
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Grammar{ir: g}, nil
}

func ensureChoices(b *grammarir.Builder, id grammarir.RuleExprID) grammarir.RuleExprID {
	if b.ExprType(id) == grammarir.Choices {
		return id
	}
	return b.AddChoices([]grammarir.RuleExprID{id})
}

type combinatorError struct{ op string }

func (e *combinatorError) Error() string { return "cfgmask: " + e.op + " requires at least one grammar" }

func errNoGrammars(op string) error { return &combinatorError{op: op} }
