// Package jsonschema lowers a JSON Schema document into a grammarir.Grammar
// that accepts exactly the JSON text instances the schema validates,
// implementing `Grammar::from_json_schema(schema, ...)` from the CLI
// surface and §4.E's keyword coverage.
//
// Schema validity (malformed keywords, unresolvable non-local $refs) is
// checked by compiling the document with the real
// github.com/santhosh-tekuri/jsonschema/v5 Compiler, the same library
// and calling convention opal-lang-opal's validator uses
// (NewCompiler, AddResource, Compile) — grounded on
// core/types/validation.go's compileSchema. That compiler's internal
// *jsonschema.Schema representation is not introspected for the EBNF
// emission walk below; the structural walk instead runs over the
// schema's own decoded map[string]interface{} tree with a local-only
// `#/...` JSON-pointer resolver, since this repo never needs anything
// the Compile call wouldn't already have rejected as invalid.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/coregx/cfgmask/grammarir"
)

// WhitespacePolicy controls how much whitespace the generated grammar
// permits around JSON punctuation, matching §4.E's "any_whitespace
// (default) vs fixed indent/separators (Python json.dumps semantics)".
type WhitespacePolicy struct {
	// AnyWhitespace, when true (the default), allows `[ \n\t]*` at every
	// punctuation boundary. When false, ItemSeparator/KeySeparator are
	// used verbatim and no other whitespace is allowed; Indent is not
	// applied, so no newline or indentation is accepted.
	AnyWhitespace bool
	ItemSeparator string
	KeySeparator  string
	Indent        int
}

// DefaultWhitespacePolicy is `any_whitespace`.
func DefaultWhitespacePolicy() WhitespacePolicy {
	return WhitespacePolicy{AnyWhitespace: true}
}

// CompactWhitespacePolicy mirrors Python's json.dumps(obj,
// separators=(",", ":")): no space after separators, no indentation.
func CompactWhitespacePolicy() WhitespacePolicy {
	return WhitespacePolicy{ItemSeparator: ",", KeySeparator: ":"}
}

// IndentedWhitespacePolicy uses the separators json.dumps(obj, indent=n)
// uses ("," and ": ") and records n in Indent. The converter does not
// apply Indent: no newline or indentation is accepted after `{`/`[`/`,`.
func IndentedWhitespacePolicy(n int) WhitespacePolicy {
	return WhitespacePolicy{ItemSeparator: ",", KeySeparator: ": ", Indent: n}
}

// Option configures FromJSONSchema.
type Option func(*converter)

// WithWhitespacePolicy overrides the default any-whitespace policy.
func WithWhitespacePolicy(p WhitespacePolicy) Option {
	return func(c *converter) { c.ws = p }
}

// WithStrictMode closes object/array nodes to members the schema doesn't
// explicitly describe: `additionalProperties`/`items` and
// `unevaluatedProperties`/`unevaluatedItems` default to closed (false)
// instead of open (true) wherever the schema is silent on them. It does
// not make conversion reject any schema.
func WithStrictMode(strict bool) Option {
	return func(c *converter) { c.strict = strict }
}

// FromJSONSchema parses and validates schemaJSON with the real
// jsonschema.Compiler, then lowers it into a Grammar whose root rule
// accepts exactly the whitespace-flexible JSON text the schema
// validates.
func FromJSONSchema(schemaJSON []byte, opts ...Option) (*grammarir.Grammar, error) {
	var root any
	if err := json.Unmarshal(schemaJSON, &root); err != nil {
		return nil, fmt.Errorf("jsonschema: decode schema: %w", err)
	}

	if err := validateCompiles(schemaJSON); err != nil {
		return nil, err
	}

	c := &converter{
		b:     grammarir.NewBuilder(),
		doc:   root,
		ws:    DefaultWhitespacePolicy(),
		cache: make(map[string]grammarir.RuleID),
	}
	for _, o := range opts {
		o(c)
	}

	bodyID, err := c.convertNode(root, "#")
	if err != nil {
		return nil, err
	}
	rootID, err := c.b.AddRule("root", ensureChoices(c.b, bodyID))
	if err != nil {
		return nil, err
	}
	c.b.SetRoot(rootID)
	return c.b.Build()
}

// validateCompiles runs schemaJSON through the real Compiler, the same
// NewCompiler/AddResource/Compile sequence opal-lang-opal's
// compileSchema uses, purely to surface malformed-keyword and
// unresolvable-$ref errors before the structural walk below runs.
func validateCompiles(schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "cfgmask://schema.json"
	if err := compiler.AddResource(url, strings.NewReader(string(schemaJSON))); err != nil {
		return fmt.Errorf("jsonschema: add resource: %w", err)
	}
	if _, err := compiler.Compile(url); err != nil {
		return fmt.Errorf("jsonschema: invalid schema: %w", err)
	}
	return nil
}

// converter walks the schema's decoded JSON tree and emits grammarir
// nodes, caching one rule per distinct $ref pointer so recursive
// schemas (an object schema referencing itself) terminate.
type converter struct {
	b     *grammarir.Builder
	doc   any
	ws    WhitespacePolicy
	strict bool
	cache map[string]grammarir.RuleID // json-pointer -> rule id, for $ref cycles
	depth int
}

const maxSchemaDepth = 200

// convertNode lowers one schema node (a JSON boolean, or a schema
// object at path) into a rule-expression.
func (c *converter) convertNode(node any, path string) (grammarir.RuleExprID, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxSchemaDepth {
		return 0, fmt.Errorf("jsonschema: schema nesting exceeds recursion limit at %s", path)
	}

	switch v := node.(type) {
	case bool:
		if v {
			return c.anyJSONValue()
		}
		// schema `false` accepts nothing; there is no "empty choice"
		// rule-expression, so approximate with a rule nobody can derive:
		// a self-recursive rule with no base case.
		return c.unsatisfiable(), nil
	case map[string]any:
		return c.convertSchemaObject(v, path)
	default:
		return 0, fmt.Errorf("jsonschema: schema node at %s must be an object or boolean", path)
	}
}

// convertSchemaObject handles one {...} schema node, applying §4.E's
// keyword list. Keywords are combined with an implicit AND: every
// applicable keyword contributes a Sequence element that must hold.
func (c *converter) convertSchemaObject(m map[string]any, path string) (grammarir.RuleExprID, error) {
	if ref, ok := m["$ref"].(string); ok {
		return c.resolveRef(ref)
	}

	// A `type` array (a union of primitive types) is lowered by copying
	// the schema once per named type and ORing the results, rather than
	// threading a type-set through every Visit* method below.
	if typeArr, ok := m["type"].([]any); ok {
		alts := make([]grammarir.RuleExprID, 0, len(typeArr))
		for i, t := range typeArr {
			ts, ok := t.(string)
			if !ok {
				return 0, fmt.Errorf("jsonschema: type array element at %s must be a string", path)
			}
			sub := make(map[string]any, len(m))
			for k, v := range m {
				sub[k] = v
			}
			sub["type"] = ts
			id, err := c.convertSchemaObject(sub, fmt.Sprintf("%s/type/%d", path, i))
			if err != nil {
				return 0, err
			}
			alts = append(alts, id)
		}
		return c.b.AddChoices(alts), nil
	}

	var combinators []grammarir.RuleExprID
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		arr, ok := m[key].([]any)
		if !ok {
			continue
		}
		id, err := c.convertCombinator(key, arr, path)
		if err != nil {
			return 0, err
		}
		combinators = append(combinators, id)
	}
	if len(combinators) > 0 && len(m) == len(presentCombinatorKeys(m)) {
		return combineSequence(c.b, combinators), nil
	}

	if enumVal, ok := m["enum"].([]any); ok {
		return c.convertEnum(enumVal), nil
	}
	if constVal, hasConst := m["const"]; hasConst {
		return c.convertConst(constVal), nil
	}

	typ, err := c.resolveType(m)
	if err != nil {
		return 0, err
	}

	var body grammarir.RuleExprID
	switch typ {
	case "object":
		body, err = c.convertObject(m, path)
	case "array":
		body, err = c.convertArray(m, path)
	case "string":
		body, err = c.convertString(m)
	case "integer":
		body, err = c.convertInteger(m)
	case "number":
		body, err = c.convertNumber()
	case "boolean":
		body = c.boolLiteral()
	case "null":
		body = c.b.AddByteString([]byte("null"))
	case "":
		body, err = c.anyJSONValue()
	default:
		return 0, fmt.Errorf("jsonschema: unsupported type %q at %s", typ, path)
	}
	if err != nil {
		return 0, err
	}

	if len(combinators) > 0 {
		combinators = append(combinators, body)
		return combineSequence(c.b, combinators), nil
	}
	return body, nil
}

func presentCombinatorKeys(m map[string]any) []string {
	var out []string
	for _, k := range []string{"allOf", "anyOf", "oneOf", "$id", "$schema", "title", "description"} {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// combineSequence wraps every element of a logical AND into a Sequence,
// collapsing the trivial one-element case, matching ebnf's own
// single-vs-multi-element sequence convention.
func combineSequence(b *grammarir.Builder, elems []grammarir.RuleExprID) grammarir.RuleExprID {
	if len(elems) == 1 {
		return elems[0]
	}
	return b.AddSequence(elems)
}

func (c *converter) convertCombinator(key string, arr []any, path string) (grammarir.RuleExprID, error) {
	switch key {
	case "allOf":
		elems := make([]grammarir.RuleExprID, 0, len(arr))
		for i, sub := range arr {
			id, err := c.convertNode(sub, fmt.Sprintf("%s/allOf/%d", path, i))
			if err != nil {
				return 0, err
			}
			elems = append(elems, id)
		}
		return combineSequence(c.b, elems), nil
	case "anyOf", "oneOf":
		// oneOf's exactly-one-match constraint cannot be expressed by a
		// context-free grammar, which has no notion of "and no other
		// alternative also matched"; both are lowered identically to an
		// unordered choice, one alternative per subschema.
		alts := make([]grammarir.RuleExprID, 0, len(arr))
		for i, sub := range arr {
			id, err := c.convertNode(sub, fmt.Sprintf("%s/%s/%d", path, key, i))
			if err != nil {
				return 0, err
			}
			alts = append(alts, id)
		}
		return c.b.AddChoices(alts), nil
	default:
		return 0, fmt.Errorf("jsonschema: unknown combinator %q", key)
	}
}

func (c *converter) convertEnum(values []any) grammarir.RuleExprID {
	alts := make([]grammarir.RuleExprID, len(values))
	for i, v := range values {
		alts[i] = c.jsonLiteral(v)
	}
	return c.b.AddChoices(alts)
}

func (c *converter) convertConst(v any) grammarir.RuleExprID {
	return c.jsonLiteral(v)
}

// jsonLiteral encodes v with encoding/json and emits it as a fixed
// ByteString, used for `const` and each `enum` alternative.
func (c *converter) jsonLiteral(v any) grammarir.RuleExprID {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("null")
	}
	return c.b.AddByteString(data)
}

// resolveType returns the schema's declared JSON type, defaulting to ""
// (meaning "any JSON value") when `type` is absent. A `type` array is
// lowered earlier, by convertSchemaObject; any other non-string `type`
// is an error here.
func (c *converter) resolveType(m map[string]any) (string, error) {
	switch t := m["type"].(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("jsonschema: \"type\" must be a string")
	}
}

func (c *converter) boolLiteral() grammarir.RuleExprID {
	return c.b.AddChoices([]grammarir.RuleExprID{
		c.b.AddByteString([]byte("true")),
		c.b.AddByteString([]byte("false")),
	})
}

func ensureChoices(b *grammarir.Builder, id grammarir.RuleExprID) grammarir.RuleExprID {
	if b.ExprType(id) == grammarir.Choices {
		return id
	}
	return b.AddChoices([]grammarir.RuleExprID{id})
}

// resolveRef resolves a local `#/...` JSON-pointer $ref against the
// schema's own root document, the one $ref form §4.E requires support
// for. Each distinct pointer is compiled into its own rule at most once
// so a self-referential schema (e.g. a recursive tree node) terminates
// through normal grammar recursion instead of infinite inlining.
func (c *converter) resolveRef(ref string) (grammarir.RuleExprID, error) {
	if !strings.HasPrefix(ref, "#") {
		return 0, fmt.Errorf("jsonschema: only local #/... $ref pointers are supported, got %q", ref)
	}
	if ruleID, ok := c.cache[ref]; ok {
		return c.b.AddRuleRef(ruleID), nil
	}

	target, err := resolvePointer(c.doc, ref)
	if err != nil {
		return 0, err
	}

	name := c.b.GetNewRuleName(refRuleName(ref))
	ruleID, err := c.b.AddEmptyRule(name)
	if err != nil {
		return 0, err
	}
	c.cache[ref] = ruleID
	body, err := c.convertNode(target, ref)
	if err != nil {
		return 0, err
	}
	c.b.SetRuleBody(ruleID, ensureChoices(c.b, body))
	return c.b.AddRuleRef(ruleID), nil
}

func refRuleName(ref string) string {
	trimmed := strings.TrimPrefix(ref, "#/")
	trimmed = strings.ReplaceAll(trimmed, "/", "_")
	if trimmed == "" || trimmed == "#" {
		return "ref_root"
	}
	return "ref_" + trimmed
}

// resolvePointer walks a local RFC 6901 JSON pointer (the `#/a/b/0`
// form) against doc.
func resolvePointer(doc any, ref string) (any, error) {
	pointer := strings.TrimPrefix(ref, "#")
	if pointer == "" {
		return doc, nil
	}
	pointer = strings.TrimPrefix(pointer, "/")
	cur := doc
	for _, tok := range strings.Split(pointer, "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[tok]
			if !ok {
				return nil, fmt.Errorf("jsonschema: $ref pointer %q: no member %q", ref, tok)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("jsonschema: $ref pointer %q: invalid array index %q", ref, tok)
			}
			cur = v[idx]
		default:
			return nil, fmt.Errorf("jsonschema: $ref pointer %q: cannot descend into a scalar", ref)
		}
	}
	return cur, nil
}

// unsatisfiable builds `R ::= R`, a rule that can only derive more of
// itself: no finite string derives it, matching schema `false`.
func (c *converter) unsatisfiable() grammarir.RuleExprID {
	id, _ := c.cachedBuiltin("false", func() (grammarir.RuleExprID, error) {
		name := c.b.GetNewRuleName("unsatisfiable")
		ruleID, _ := c.b.AddEmptyRule(name)
		self := c.b.AddRuleRef(ruleID)
		c.b.SetRuleBody(ruleID, c.b.AddChoices([]grammarir.RuleExprID{self}))
		return self, nil
	})
	return id
}
