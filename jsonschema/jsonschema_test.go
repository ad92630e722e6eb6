package jsonschema

import (
	"testing"

	"github.com/coregx/cfgmask/grammarir"
)

func TestFromJSONSchemaObject(t *testing.T) {
	schema := `{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"integer"}},"required":["name"]}`
	g, err := FromJSONSchema([]byte(schema))
	if err != nil {
		t.Fatalf("FromJSONSchema: %v", err)
	}
	if g == nil || len(g.Rules) == 0 {
		t.Fatalf("FromJSONSchema produced an empty grammar")
	}
}

func TestFromJSONSchemaRejectsBadJSON(t *testing.T) {
	if _, err := FromJSONSchema([]byte("{not json")); err == nil {
		t.Fatalf("expected an error decoding malformed schema JSON")
	}
}

func TestStructuralTagLiteral(t *testing.T) {
	doc := `{"type":"structural_tag","format":{"type":"literal","value":"hello"}}`
	g, err := StructuralTag([]byte(doc))
	if err != nil {
		t.Fatalf("StructuralTag: %v", err)
	}
	if g == nil || len(g.Rules) == 0 {
		t.Fatalf("StructuralTag produced an empty grammar")
	}
}

func TestStructuralTagSequence(t *testing.T) {
	doc := `{
		"type": "structural_tag",
		"format": {
			"type": "sequence",
			"elements": [
				{"type": "literal", "value": "a"},
				{"type": "wildcard_text"},
				{"type": "literal", "value": "b"}
			]
		}
	}`
	g, err := StructuralTag([]byte(doc))
	if err != nil {
		t.Fatalf("StructuralTag: %v", err)
	}
	if g == nil {
		t.Fatalf("StructuralTag produced a nil grammar")
	}
}

func TestStructuralTagTag(t *testing.T) {
	doc := `{
		"type": "structural_tag",
		"format": {"type": "tag", "begin": "<think>", "end": "</think>"}
	}`
	g, err := StructuralTag([]byte(doc))
	if err != nil {
		t.Fatalf("StructuralTag: %v", err)
	}
	if g == nil {
		t.Fatalf("StructuralTag produced a nil grammar")
	}
}

func TestStructuralTagTriggeredTags(t *testing.T) {
	doc := `{
		"type": "structural_tag",
		"format": {
			"type": "triggered_tags",
			"triggers": ["<func="],
			"tags": [
				{"type": "tag", "begin": "<func=a>", "end": "</func>"},
				{"type": "tag", "begin": "<func=b>", "end": "</func>"}
			]
		}
	}`
	g, err := StructuralTag([]byte(doc))
	if err != nil {
		t.Fatalf("StructuralTag: %v", err)
	}
	var dispatch *grammarir.RuleExpr
	for i := range g.Exprs {
		if g.Exprs[i].Type == grammarir.TagDispatch {
			dispatch = &g.Exprs[i]
			break
		}
	}
	if dispatch == nil {
		t.Fatalf("expected a TagDispatch expression in the built grammar")
	}
	if len(dispatch.Triggers) != 1 || dispatch.Triggers[0].Trigger != "<func=" {
		t.Fatalf("expected exactly one trigger \"<func=\", got %+v", dispatch.Triggers)
	}
}

func TestStructuralTagRejectsUnknownFormat(t *testing.T) {
	doc := `{"type":"structural_tag","format":{"type":"qwen_xml"}}`
	if _, err := StructuralTag([]byte(doc)); err == nil {
		t.Fatalf("expected an error for the unsupported qwen_xml format type")
	}
}

func TestStructuralTagRejectsMissingFormat(t *testing.T) {
	if _, err := StructuralTag([]byte(`{"type":"structural_tag"}`)); err == nil {
		t.Fatalf("expected an error for a document with no \"format\" field")
	}
}

func TestToolCallEmptyParamsAcceptsEmptyString(t *testing.T) {
	g, err := ToolCall(nil, JSONToolCallFormat)
	if err != nil {
		t.Fatalf("ToolCall: %v", err)
	}
	if g == nil || len(g.Rules) == 0 {
		t.Fatalf("ToolCall with no parameters produced an empty grammar")
	}
	body := g.Exprs[g.Rules[g.RootID].Body]
	if len(body.Elements) != 1 || g.Exprs[body.Elements[0]].Type != grammarir.EmptyStr {
		t.Fatalf("expected the root rule to derive only the empty string, got %+v", body)
	}
}

func TestToolCallXMLFormat(t *testing.T) {
	params := []FunctionParameter{
		{Name: "city", Type: "string"},
		{Name: "count", Type: "integer"},
	}
	g, err := ToolCall(params, XMLParameterToolCallFormat)
	if err != nil {
		t.Fatalf("ToolCall: %v", err)
	}
	if g == nil || len(g.Rules) == 0 {
		t.Fatalf("ToolCall (XML) produced an empty grammar")
	}
}

func TestToolCallJSONFormat(t *testing.T) {
	params := []FunctionParameter{
		{Name: "city", Type: "string"},
		{Name: "flag", Type: "boolean"},
	}
	g, err := ToolCall(params, JSONToolCallFormat)
	if err != nil {
		t.Fatalf("ToolCall: %v", err)
	}
	if g == nil || len(g.Rules) == 0 {
		t.Fatalf("ToolCall (JSON) produced an empty grammar")
	}
}

func TestResolveXMLParamTypeTable(t *testing.T) {
	cases := map[string]string{
		"string":  "string",
		"integer": "number",
		"Boolean": "boolean",
		"object":  "object",
		"unknown": "string",
	}
	for in, want := range cases {
		if got := resolveXMLParamType(in); got != want {
			t.Errorf("resolveXMLParamType(%q) = %q, want %q", in, got, want)
		}
	}
}
