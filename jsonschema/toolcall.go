package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coregx/cfgmask/grammarir"
)

// ToolCallFormat selects which of §4.E's two function-call encodings
// ToolCall emits.
type ToolCallFormat int

const (
	// JSONToolCallFormat emits standard JSON: `{"name": value, ...}`,
	// built by delegating to FromJSONSchema over a synthesized object
	// schema (every parameter required).
	JSONToolCallFormat ToolCallFormat = iota
	// XMLParameterToolCallFormat emits the "XML tool-calling" format named
	// in §4.E: `<parameter=name>value</parameter>` once per parameter, in
	// declaration order.
	XMLParameterToolCallFormat
)

// FunctionParameter names one function-call argument and its source type
// tag (a free-form string like "int", "string", "object" — whatever the
// calling convention's schema uses), matching the original converter's
// own (args_names, args_types) pair.
type FunctionParameter struct {
	Name string
	Type string
}

// ToolCall lowers a function's parameter list into a Grammar, grounded
// on original_source/cpp/function_call_converter.cc's
// FunctionCallConverterImpl::Apply and its two grammar shapes.
func ToolCall(params []FunctionParameter, format ToolCallFormat) (*grammarir.Grammar, error) {
	if len(params) == 0 {
		b := grammarir.NewBuilder()
		rootID, err := b.AddRule("root", b.AddChoices([]grammarir.RuleExprID{b.AddEmptyStr()}))
		if err != nil {
			return nil, err
		}
		b.SetRoot(rootID)
		return b.Build()
	}
	switch format {
	case XMLParameterToolCallFormat:
		return buildXMLToolCallGrammar(params)
	case JSONToolCallFormat:
		return buildJSONToolCallGrammar(params)
	default:
		return nil, fmt.Errorf("jsonschema: unsupported tool-call format %v", format)
	}
}

// buildXMLToolCallGrammar ports BuildXmlParameterGrammar +
// DecorateXmlParameterGrammar: one `<parameter=name>value</parameter>`
// block per argument, concatenated in declaration order. The original
// decorator's exact separator/ordering behavior between parameters is
// not specified beyond concatenation, so this port requires all
// parameters to appear, in order, with no separator between blocks.
func buildXMLToolCallGrammar(params []FunctionParameter) (*grammarir.Grammar, error) {
	c := &converter{b: grammarir.NewBuilder(), ws: DefaultWhitespacePolicy(), cache: make(map[string]grammarir.RuleID)}
	elems := make([]grammarir.RuleExprID, len(params))
	for i, p := range params {
		body, err := buildXMLParamGrammar(c, p.Type)
		if err != nil {
			return nil, err
		}
		open := c.b.AddByteString([]byte("<parameter=" + p.Name + ">"))
		closeTag := c.b.AddByteString([]byte("</parameter>"))
		elems[i] = c.b.AddSequence([]grammarir.RuleExprID{open, body, closeTag})
	}
	var full grammarir.RuleExprID
	if len(elems) == 1 {
		full = elems[0]
	} else {
		full = c.b.AddSequence(elems)
	}
	rootID, err := c.b.AddRule("root", ensureChoices(c.b, full))
	if err != nil {
		return nil, err
	}
	c.b.SetRoot(rootID)
	return c.b.Build()
}

// buildJSONToolCallGrammar ports the `kXmlStyleFunctionCall`
// alternative's JSON sibling: delegate to the main JSON-Schema converter
// over a synthesized `{type: object, properties, required: <all>}`
// schema, since a JSON-encoded function call is exactly an object whose
// every declared parameter must be present.
func buildJSONToolCallGrammar(params []FunctionParameter) (*grammarir.Grammar, error) {
	props := make(map[string]any, len(params))
	required := make([]any, len(params))
	for i, p := range params {
		props[p.Name] = map[string]any{"type": jsonSchemaTypeFor(p.Type)}
		required[i] = p.Name
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: encode synthesized tool-call schema: %w", err)
	}
	return FromJSONSchema(data)
}

// resolveXMLParamType ports BuildXmlParameterGrammar's raw_string_to_types
// table: an exact match wins, otherwise the first table entry whose key
// is a prefix of argType (case-insensitive), defaulting to "string".
func resolveXMLParamType(argType string) string {
	lower := strings.ToLower(argType)
	table := []struct{ prefix, kind string }{
		{"string", "string"}, {"str", "string"}, {"char", "string"}, {"enum", "string"},
		{"text", "string"}, {"varchar", "string"},
		{"int", "number"}, {"uint", "number"}, {"long", "number"}, {"short", "number"},
		{"unsign", "number"}, {"float", "number"}, {"num", "number"},
		{"boolean", "boolean"}, {"bool", "boolean"}, {"binary", "boolean"},
		{"object", "object"}, {"dict", "object"},
	}
	for _, e := range table {
		if lower == e.prefix {
			return e.kind
		}
	}
	for _, e := range table {
		if strings.HasPrefix(lower, e.prefix) {
			return e.kind
		}
	}
	return "string"
}

func jsonSchemaTypeFor(argType string) string {
	return resolveXMLParamType(argType)
}

// buildXMLParamGrammar lowers one parameter's value grammar, reusing the
// same basic-type builtins the main JSON-Schema converter shares
// (kNumberGrammarString/kStringGrammarString/kBooleanGrammarString/
// kObjectGrammarString in the original are hand-written EBNF text; here
// they are the same cachedBuiltin-memoized rule-expressions).
func buildXMLParamGrammar(c *converter, argType string) (grammarir.RuleExprID, error) {
	switch resolveXMLParamType(argType) {
	case "number":
		return c.numberBasic(), nil
	case "boolean":
		return c.boolLiteral(), nil
	case "object":
		return c.genericObject()
	default:
		return c.stringBasic()
	}
}
