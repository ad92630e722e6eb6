package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/cfgmask/grammarir"
	"github.com/coregx/cfgmask/regexconv"
)

// cachedBuiltin returns a RuleRef to a shared helper rule named by key
// (any, object, array, string, string_sub, escape, number,
// integer, false), building it via build() the first time it is
// requested so a schema with many string/number fields doesn't emit a
// duplicate basic-type grammar per field — the same memoisation
// `CreateBasicRule`/`basic_rules_cache_` use in the original converter.
func (c *converter) cachedBuiltin(key string, build func() (grammarir.RuleExprID, error)) (grammarir.RuleExprID, error) {
	fullKey := "#/$builtin/" + key
	if id, ok := c.cache[fullKey]; ok {
		return c.b.AddRuleRef(id), nil
	}
	ruleID, err := c.b.AddEmptyRule(c.b.GetNewRuleName("basic_" + key))
	if err != nil {
		return 0, err
	}
	c.cache[fullKey] = ruleID
	body, err := build()
	if err != nil {
		return 0, err
	}
	c.b.SetRuleBody(ruleID, ensureChoices(c.b, body))
	return c.b.AddRuleRef(ruleID), nil
}

// wsStar builds the `[ \n\t]*` whitespace-run rule-expression used at
// every structural boundary in any_whitespace mode.
func (c *converter) wsStar() grammarir.RuleExprID {
	return c.b.AddCharacterClassStar(false, []grammarir.CodepointRange{
		{Low: '\t', High: '\n'},
		{Low: ' ', High: ' '},
	})
}

// wsBoundary is what sits just inside `{`/`[`/`}`/`]` when no separator
// already supplies whitespace there.
func (c *converter) wsBoundary() grammarir.RuleExprID {
	if c.ws.AnyWhitespace {
		return c.wsStar()
	}
	return c.b.AddEmptyStr()
}

// sepExpr is the comma (plus surrounding whitespace, in any_whitespace
// mode) placed between two object properties or array elements.
func (c *converter) sepExpr() grammarir.RuleExprID {
	if c.ws.AnyWhitespace {
		return c.b.AddSequence([]grammarir.RuleExprID{c.wsStar(), c.b.AddByteString([]byte(",")), c.wsStar()})
	}
	sep := c.ws.ItemSeparator
	if sep == "" {
		sep = ","
	}
	return c.b.AddByteString([]byte(sep))
}

// colonExpr is the `:` between an object key and its value.
func (c *converter) colonExpr() grammarir.RuleExprID {
	if c.ws.AnyWhitespace {
		return c.b.AddSequence([]grammarir.RuleExprID{c.wsStar(), c.b.AddByteString([]byte(":")), c.wsStar()})
	}
	sep := c.ws.KeySeparator
	if sep == "" {
		sep = ":"
	}
	return c.b.AddByteString([]byte(sep))
}

// digitClass is `[0-9]`.
func (c *converter) digitClass() grammarir.RuleExprID {
	return c.b.AddCharacterClass(false, []grammarir.CodepointRange{{Low: '0', High: '9'}})
}

// escapeRule is `basic_escape`: one of the short JSON escapes, or `\uXXXX`.
func (c *converter) escapeRule() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("escape", func() (grammarir.RuleExprID, error) {
		shortEscape := c.b.AddCharacterClass(false, []grammarir.CodepointRange{
			{Low: '"', High: '"'},
			{Low: '/', High: '/'},
			{Low: '\\', High: '\\'},
			{Low: 'b', High: 'b'},
			{Low: 'f', High: 'f'},
			{Low: 'n', High: 'n'},
			{Low: 'r', High: 'r'},
			{Low: 't', High: 't'},
		})
		hex := c.b.AddCharacterClass(false, []grammarir.CodepointRange{
			{Low: '0', High: '9'}, {Low: 'A', High: 'F'}, {Low: 'a', High: 'f'},
		})
		unicodeEscape := c.b.AddSequence([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("u")), hex, hex, hex, hex,
		})
		return c.b.AddChoices([]grammarir.RuleExprID{shortEscape, unicodeEscape}), nil
	})
}

// stringSubRule is `basic_string_sub`: the body of a JSON string after
// the opening quote, matching zero or more ordinary/escaped characters
// up to and including the terminating `"`. An explicit lookahead
// requires that whatever follows the closing quote, once consumed, is
// whitespace then one of `,}]:` — grounded on the original's own
// hand-written lookahead on this rule, one of the few user-authored (as
// opposed to inferred) lookahead assertions this converter emits.
func (c *converter) stringSubRule() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("string_sub", func() (grammarir.RuleExprID, error) {
		escape, err := c.escapeRule()
		if err != nil {
			return 0, err
		}
		closeQuote := c.b.AddByteString([]byte(`"`))
		ordinary := c.b.AddCharacterClass(true, []grammarir.CodepointRange{
			{Low: '"', High: '"'}, {Low: '\\', High: '\\'}, {Low: '\r', High: '\r'}, {Low: '\n', High: '\n'},
		})

		ruleID, err := c.b.AddEmptyRule(c.b.GetNewRuleName("basic_string_sub"))
		if err != nil {
			return 0, err
		}
		selfRef := c.b.AddRuleRef(ruleID)
		body := c.b.AddChoices([]grammarir.RuleExprID{
			closeQuote,
			c.b.AddSequence([]grammarir.RuleExprID{ordinary, selfRef}),
			c.b.AddSequence([]grammarir.RuleExprID{c.b.AddByteString([]byte(`\`)), escape, selfRef}),
		})
		c.b.SetRuleBody(ruleID, body)
		lookahead := c.b.AddSequence([]grammarir.RuleExprID{
			c.wsStar(),
			c.b.AddCharacterClass(false, []grammarir.CodepointRange{
				{Low: ',', High: ','}, {Low: ':', High: ':'}, {Low: ']', High: ']'}, {Low: '}', High: '}'},
			}),
		})
		c.b.SetLookahead(ruleID, lookahead, false)
		return selfRef, nil
	})
}

// stringBasic is `basic_string`: a JSON string literal with no pattern
// constraint.
func (c *converter) stringBasic() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("string", func() (grammarir.RuleExprID, error) {
		sub, err := c.stringSubRule()
		if err != nil {
			return 0, err
		}
		return c.b.AddSequence([]grammarir.RuleExprID{c.b.AddByteString([]byte(`"`)), sub}), nil
	})
}

// numberBasic is `basic_number`: `("0" | "-"? [1-9] [0-9]*) ("." [0-9]+)?
// ([eE] [+-]? [0-9]+)?`, matching the original's unconstrained number
// grammar (range keywords only apply to `integer`, per §4.E).
func (c *converter) numberBasic() grammarir.RuleExprID {
	id, _ := c.cachedBuiltin("number", func() (grammarir.RuleExprID, error) {
		digit := c.digitClass()
		nonZero := c.b.AddCharacterClass(false, []grammarir.CodepointRange{{Low: '1', High: '9'}})
		digits := c.b.AddCharacterClassStar(false, []grammarir.CodepointRange{{Low: '0', High: '9'}})
		intPart := c.b.AddChoices([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("0")),
			c.b.AddSequence([]grammarir.RuleExprID{
				c.b.AddChoices([]grammarir.RuleExprID{c.b.AddEmptyStr(), c.b.AddByteString([]byte("-"))}),
				nonZero, digits,
			}),
		})
		fracDigits := c.b.AddSequence([]grammarir.RuleExprID{digit, digits})
		frac := c.b.AddChoices([]grammarir.RuleExprID{
			c.b.AddEmptyStr(),
			c.b.AddSequence([]grammarir.RuleExprID{c.b.AddByteString([]byte(".")), fracDigits}),
		})
		sign := c.b.AddChoices([]grammarir.RuleExprID{c.b.AddEmptyStr(), c.b.AddCharacterClass(false, []grammarir.CodepointRange{{Low: '+', High: '+'}, {Low: '-', High: '-'}})})
		exp := c.b.AddChoices([]grammarir.RuleExprID{
			c.b.AddEmptyStr(),
			c.b.AddSequence([]grammarir.RuleExprID{
				c.b.AddCharacterClass(false, []grammarir.CodepointRange{{Low: 'E', High: 'E'}, {Low: 'e', High: 'e'}}),
				sign, fracDigits,
			}),
		})
		return c.b.AddSequence([]grammarir.RuleExprID{intPart, frac, exp}), nil
	})
	return id
}

// integerBasic is the default, unconstrained integer grammar: `"0" |
// "-"? [1-9] [0-9]*`.
func (c *converter) integerBasic() grammarir.RuleExprID {
	id, _ := c.cachedBuiltin("integer", func() (grammarir.RuleExprID, error) {
		nonZero := c.b.AddCharacterClass(false, []grammarir.CodepointRange{{Low: '1', High: '9'}})
		digits := c.b.AddCharacterClassStar(false, []grammarir.CodepointRange{{Low: '0', High: '9'}})
		return c.b.AddChoices([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("0")),
			c.b.AddSequence([]grammarir.RuleExprID{
				c.b.AddChoices([]grammarir.RuleExprID{c.b.AddEmptyStr(), c.b.AddByteString([]byte("-"))}),
				nonZero, digits,
			}),
		}), nil
	})
	return id
}

// convertInteger lowers an `integer` schema, honoring minimum/maximum/
// exclusiveMinimum/exclusiveMaximum by compiling a generated digit-range
// regex through regexconv, the same `GenerateRangeRegex` +
// `RegexToEBNF` two-step the original converter uses. multipleOf is
// recognised by the schema compiler but not by this lowering (the
// original only ever warns about it too); left unconstrained, per
// SPEC_FULL.md's "mirror the source's permissive behaviour" decision.
func (c *converter) convertInteger(m map[string]any) (grammarir.RuleExprID, error) {
	hasStart, hasEnd := false, false
	var start, end int
	if v, ok := numberField(m, "minimum"); ok {
		start, hasStart = v, true
	}
	if v, ok := numberField(m, "exclusiveMinimum"); ok {
		start, hasStart = v+1, true
	}
	if v, ok := numberField(m, "maximum"); ok {
		end, hasEnd = v, true
	}
	if v, ok := numberField(m, "exclusiveMaximum"); ok {
		end, hasEnd = v-1, true
	}
	if !hasStart && !hasEnd {
		return c.integerBasic(), nil
	}
	var startPtr, endPtr *int
	if hasStart {
		startPtr = &start
	}
	if hasEnd {
		endPtr = &end
	}
	pattern := generateRangeRegex(startPtr, endPtr)
	return regexconv.AppendRegex(c.b, pattern)
}

func (c *converter) convertNumber() (grammarir.RuleExprID, error) {
	return c.numberBasic(), nil
}

// numberField reads an integer-valued numeric schema keyword (JSON
// numbers decode to float64 via encoding/json).
func numberField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// generateRangeRegex ports the original converter's digit-group range
// regex generator: with both bounds set it decomposes [start,end] into
// runs of at most ten consecutive integers that share every digit but
// the last (e.g. `2[0-5]`), one alternative per run rather than one per
// integer.
func generateRangeRegex(start, end *int) string {
	if start == nil && end == nil {
		return `^\d+$`
	}
	var negativeParts, positiveParts []string

	group := func(s, e int) string {
		if s == e {
			return strconv.Itoa(s)
		}
		startStr, endStr := strconv.Itoa(s), strconv.Itoa(e)
		common := 0
		for common < len(startStr) && startStr[common] == endStr[common] {
			common++
		}
		var sb strings.Builder
		if common > 0 {
			sb.WriteString(startStr[:common])
		}
		if common < len(startStr) {
			sb.WriteByte('[')
			sb.WriteByte(startStr[common])
			if startStr[common] != endStr[common] {
				sb.WriteByte('-')
				sb.WriteByte(endStr[common])
			}
			sb.WriteByte(']')
			if common+1 < len(startStr) {
				fmt.Fprintf(&sb, `\d{%d}`, len(startStr)-common-1)
			}
		}
		return sb.String()
	}

	switch {
	case start != nil && end != nil:
		s, e := *start, *end
		if s < 0 {
			negEnd := e
			if negEnd > -1 {
				negEnd = -1
			}
			for s <= negEnd {
				nextEnd := -((-s) / 10 * 10)
				if nextEnd > negEnd {
					nextEnd = negEnd
				}
				negativeParts = append(negativeParts, "-"+group(-nextEnd, -s))
				s = nextEnd + 1
			}
		}
		if e >= 0 {
			if s < 0 {
				s = 0
			}
			for s <= e {
				nextEnd := (s/10+1)*10 - 1
				if nextEnd > e {
					nextEnd = e
				}
				positiveParts = append(positiveParts, group(s, nextEnd))
				s = nextEnd + 1
			}
		}
	case start != nil:
		if *start < 0 {
			negativeParts = append(negativeParts, fmt.Sprintf("-%d\\d*", -*start))
		} else {
			positiveParts = append(positiveParts, fmt.Sprintf("%d\\d*", *start))
		}
	case end != nil:
		if *end < 0 {
			negativeParts = append(negativeParts, fmt.Sprintf("-%d", -*end))
		} else {
			positiveParts = append(positiveParts, fmt.Sprintf("%d", *end))
		}
	}

	var sb strings.Builder
	sb.WriteString("^(")
	if len(negativeParts) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(negativeParts, "|"))
		sb.WriteString(")")
		if len(positiveParts) > 0 {
			sb.WriteString("|")
		}
	}
	if len(positiveParts) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(positiveParts, "|"))
		sb.WriteString(")")
	}
	sb.WriteString(")$")
	return sb.String()
}

// convertString lowers a `string` schema. Only `pattern` is honored as a
// hard constraint (lowered through regexconv, the same front end
// `Grammar::from_regex` uses); minLength/maxLength/format are accepted
// but not enforced, matching the original's own WarnUnsupportedKeywords
// list for VisitString.
func (c *converter) convertString(m map[string]any) (grammarir.RuleExprID, error) {
	if pat, ok := m["pattern"].(string); ok {
		body, err := regexconv.AppendRegex(c.b, pat)
		if err != nil {
			return 0, fmt.Errorf("jsonschema: pattern: %w", err)
		}
		quote := c.b.AddByteString([]byte(`"`))
		return c.b.AddSequence([]grammarir.RuleExprID{quote, body, quote}), nil
	}
	return c.stringBasic()
}

// schemaExprFor lowers a value used in a "schema-or-bool" position
// (additionalProperties/items/patternProperties-style keywords): `true`
// means "any JSON value", `false` means "nothing", a map is a nested
// schema node.
func (c *converter) schemaExprFor(v any, path string) (grammarir.RuleExprID, error) {
	if b, ok := v.(bool); ok {
		if b {
			return c.anyJSONValue()
		}
		return c.unsatisfiable(), nil
	}
	return c.convertNode(v, path)
}

// resolveAdditional implements the shared additionalProperties/items
// resolution rule: an explicit schema or `true` wins; otherwise fall
// back to the unevaluated* keyword (defaulting to `!strict`).
func (c *converter) resolveAdditional(m map[string]any, key, unevalKey string) (any, bool) {
	if v, ok := m[key]; ok {
		if b, isBool := v.(bool); isBool {
			if !b {
				return nil, false
			}
			return true, true
		}
		return v, true
	}
	var uneval any = !c.strict
	if v, ok := m[unevalKey]; ok {
		uneval = v
	}
	if b, isBool := uneval.(bool); isBool {
		if !b {
			return nil, false
		}
		return true, true
	}
	return uneval, true
}

// anyJSONValue is `basic_any`: the union of every JSON value kind,
// referenced by `additionalProperties: true`, bare `{}` schemas, and the
// generic object/array helper rules below (which in turn reference it,
// so construction registers the rule in the cache before recursing).
func (c *converter) anyJSONValue() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("any", func() (grammarir.RuleExprID, error) {
		obj, err := c.genericObject()
		if err != nil {
			return 0, err
		}
		arr, err := c.genericArray()
		if err != nil {
			return 0, err
		}
		str, err := c.stringBasic()
		if err != nil {
			return 0, err
		}
		return c.b.AddChoices([]grammarir.RuleExprID{
			obj, arr, str, c.numberBasic(), c.boolLiteral(), c.b.AddByteString([]byte("null")),
		}), nil
	})
}

// genericObject is `basic_object`: any well-formed JSON object, keys and
// values unconstrained. Used for `additionalProperties: true` in an
// otherwise-unconstrained position and as part of `basic_any`.
func (c *converter) genericObject() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("object", func() (grammarir.RuleExprID, error) {
		key, err := c.stringBasic()
		if err != nil {
			return 0, err
		}
		val, err := c.anyJSONValue()
		if err != nil {
			return 0, err
		}
		pair := c.b.AddSequence([]grammarir.RuleExprID{key, c.colonExpr(), val})
		rest := c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), pair}), 0, -1)
		nonEmpty := c.b.AddSequence([]grammarir.RuleExprID{c.wsBoundary(), pair, rest, c.wsBoundary()})
		inner := c.b.AddChoices([]grammarir.RuleExprID{c.wsBoundary(), nonEmpty})
		return c.b.AddSequence([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("{")), inner, c.b.AddByteString([]byte("}")),
		}), nil
	})
}

// genericArray is `basic_array`: any well-formed JSON array, elements
// unconstrained.
func (c *converter) genericArray() (grammarir.RuleExprID, error) {
	return c.cachedBuiltin("array", func() (grammarir.RuleExprID, error) {
		val, err := c.anyJSONValue()
		if err != nil {
			return 0, err
		}
		rest := c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), val}), 0, -1)
		nonEmpty := c.b.AddSequence([]grammarir.RuleExprID{c.wsBoundary(), val, rest, c.wsBoundary()})
		inner := c.b.AddChoices([]grammarir.RuleExprID{c.wsBoundary(), nonEmpty})
		return c.b.AddSequence([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("[")), inner, c.b.AddByteString([]byte("]")),
		}), nil
	})
}

// propertyPattern builds `"name" : value` for one object property, JSON-
// escaping name the same way encoding/json would.
func (c *converter) propertyPattern(name string, valExpr grammarir.RuleExprID) grammarir.RuleExprID {
	keyBytes, _ := json.Marshal(name)
	return c.b.AddSequence([]grammarir.RuleExprID{c.b.AddByteString(keyBytes), c.colonExpr(), valExpr})
}

// convertObject lowers an `object` schema, following the original
// converter's three-way split on whether `properties` is present and
// whether any of them are required (VisitObject/
// GetPartialRuleForPropertiesAllOptional/
// GetPartialRuleForPropertiesContainRequired). patternProperties/
// propertyNames/minProperties/maxProperties are accepted but not
// enforced, matching the original's own unsupported-keyword list for
// VisitObject.
//
// Property order in the emitted grammar follows sorted key order rather
// than declaration order (Go's decoded map[string]any has none): this
// only affects which textual key ordering the grammar accepts first in
// the "properties declared in schema order" convention the original
// assumes objects follow, not whether any valid JSON instance is
// accepted overall for the all-optional/no-required cases, and keeps
// conversion output deterministic across runs.
func (c *converter) convertObject(m map[string]any, path string) (grammarir.RuleExprID, error) {
	propsMap, _ := m["properties"].(map[string]any)
	propNames := make([]string, 0, len(propsMap))
	for k := range propsMap {
		propNames = append(propNames, k)
	}
	sort.Strings(propNames)

	required := map[string]bool{}
	if arr, ok := m["required"].([]any); ok {
		for _, r := range arr {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	additional, hasAdditional := c.resolveAdditional(m, "additionalProperties", "unevaluatedProperties")

	allOptional := true
	for _, n := range propNames {
		if required[n] {
			allOptional = false
			break
		}
	}

	var elems []grammarir.RuleExprID
	elems = append(elems, c.b.AddByteString([]byte("{")))
	couldBeEmpty := false

	switch {
	case len(propNames) > 0 && allOptional:
		expr, err := c.partialPropertiesAllOptional(propsMap, propNames, additional, hasAdditional, path)
		if err != nil {
			return 0, err
		}
		elems = append(elems, expr)
		couldBeEmpty = true
	case len(propNames) > 0:
		expr, err := c.partialPropertiesRequired(propsMap, propNames, required, path)
		if err != nil {
			return 0, err
		}
		elems = append(elems, expr)
		if hasAdditional {
			key, err := c.stringBasic()
			if err != nil {
				return 0, err
			}
			val, err := c.schemaExprFor(additional, path+"/additionalProperties")
			if err != nil {
				return 0, err
			}
			pair := c.b.AddSequence([]grammarir.RuleExprID{key, c.colonExpr(), val})
			elems = append(elems, c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), pair}), 0, -1))
		}
		elems = append(elems, c.wsBoundary())
	case hasAdditional:
		key, err := c.stringBasic()
		if err != nil {
			return 0, err
		}
		val, err := c.schemaExprFor(additional, path+"/additionalProperties")
		if err != nil {
			return 0, err
		}
		pair := c.b.AddSequence([]grammarir.RuleExprID{key, c.colonExpr(), val})
		rest := c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), pair}), 0, -1)
		elems = append(elems, c.wsBoundary(), pair, rest, c.wsBoundary())
		couldBeEmpty = true
	default:
		elems = append(elems, c.wsBoundary())
	}
	elems = append(elems, c.b.AddByteString([]byte("}")))
	full := c.b.AddSequence(elems)

	if !c.strict && couldBeEmpty {
		empty := c.b.AddSequence([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("{")), c.wsBoundary(), c.b.AddByteString([]byte("}")),
		})
		return c.b.AddChoices([]grammarir.RuleExprID{full, empty}), nil
	}
	return full, nil
}

// partialPropertiesAllOptional ports
// GetPartialRuleForPropertiesAllOptional: since every property is
// optional, the grammar must accept any one of them appearing first,
// with the remaining ones (in declared order) each optionally following
// behind a separator. This is encoded as a chain of helper rules built
// back-to-front, one per property position, exactly mirroring the
// original's `rule_name_part_i` construction.
func (c *converter) partialPropertiesAllOptional(propsMap map[string]any, propNames []string, additional any, hasAdditional bool, path string) (grammarir.RuleExprID, error) {
	n := len(propNames)
	patterns := make([]grammarir.RuleExprID, n)
	for i, name := range propNames {
		val, err := c.schemaExprFor(propsMap[name], fmt.Sprintf("%s/properties/%s", path, name))
		if err != nil {
			return 0, err
		}
		patterns[i] = c.propertyPattern(name, val)
	}

	var additionalPattern grammarir.RuleExprID
	tailRef := make([]grammarir.RuleExprID, n)
	if hasAdditional {
		key, err := c.stringBasic()
		if err != nil {
			return 0, err
		}
		val, err := c.schemaExprFor(additional, path+"/additionalProperties")
		if err != nil {
			return 0, err
		}
		additionalPattern = c.b.AddSequence([]grammarir.RuleExprID{key, c.colonExpr(), val})
		ruleID, err := c.b.AddEmptyRule(c.b.GetNewRuleName("obj_tail"))
		if err != nil {
			return 0, err
		}
		c.b.SetRuleBody(ruleID, ensureChoices(c.b, c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), additionalPattern}), 0, -1)))
		tailRef[n-1] = c.b.AddRuleRef(ruleID)
	} else {
		tailRef[n-1] = c.b.AddEmptyStr()
	}

	for i := n - 2; i >= 0; i-- {
		ruleID, err := c.b.AddEmptyRule(c.b.GetNewRuleName("obj_tail"))
		if err != nil {
			return 0, err
		}
		body := c.b.AddChoices([]grammarir.RuleExprID{
			tailRef[i+1],
			c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), patterns[i+1], tailRef[i+1]}),
		})
		c.b.SetRuleBody(ruleID, body)
		tailRef[i] = c.b.AddRuleRef(ruleID)
	}

	alts := make([]grammarir.RuleExprID, 0, n+1)
	for i := 0; i < n; i++ {
		alts = append(alts, c.b.AddSequence([]grammarir.RuleExprID{patterns[i], tailRef[i]}))
	}
	if hasAdditional {
		alts = append(alts, c.b.AddSequence([]grammarir.RuleExprID{additionalPattern, tailRef[n-1]}))
	}
	inner := c.b.AddChoices(alts)
	return c.b.AddSequence([]grammarir.RuleExprID{c.wsBoundary(), inner, c.wsBoundary()}), nil
}

// partialPropertiesRequired ports GetPartialRuleForPropertiesContainRequired:
// properties before the first required one are each independently
// optional (with their own trailing separator); the first required
// property is mandatory; every property after it is mandatory-with-
// leading-separator if required, optional-with-leading-separator
// otherwise.
func (c *converter) partialPropertiesRequired(propsMap map[string]any, propNames []string, required map[string]bool, path string) (grammarir.RuleExprID, error) {
	firstRequired := -1
	for i, n := range propNames {
		if required[n] {
			firstRequired = i
			break
		}
	}
	if firstRequired == -1 {
		return 0, fmt.Errorf("jsonschema: internal: no required property found at %s", path)
	}

	propExpr := func(name string) (grammarir.RuleExprID, error) {
		val, err := c.schemaExprFor(propsMap[name], fmt.Sprintf("%s/properties/%s", path, name))
		if err != nil {
			return 0, err
		}
		return c.propertyPattern(name, val), nil
	}

	elems := []grammarir.RuleExprID{c.wsBoundary()}
	for i := 0; i < firstRequired; i++ {
		pat, err := propExpr(propNames[i])
		if err != nil {
			return 0, err
		}
		opt := c.b.AddChoices([]grammarir.RuleExprID{
			c.b.AddEmptyStr(),
			c.b.AddSequence([]grammarir.RuleExprID{pat, c.sepExpr()}),
		})
		elems = append(elems, opt)
	}

	firstPat, err := propExpr(propNames[firstRequired])
	if err != nil {
		return 0, err
	}
	elems = append(elems, firstPat)

	for i := firstRequired + 1; i < len(propNames); i++ {
		name := propNames[i]
		pat, err := propExpr(name)
		if err != nil {
			return 0, err
		}
		if required[name] {
			elems = append(elems, c.sepExpr(), pat)
		} else {
			opt := c.b.AddChoices([]grammarir.RuleExprID{
				c.b.AddEmptyStr(),
				c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), pat}),
			})
			elems = append(elems, opt)
		}
	}
	return c.b.AddSequence(elems), nil
}

// convertArray lowers an `array` schema: prefixItems first (one rule per
// position, matching VisitArray's `rule_name_item_i`), then an optional
// run of `items`/`unevaluatedItems`-typed trailing elements. minItems/
// maxItems/uniqueItems/contains are accepted but not enforced, matching
// the original's own unsupported-keyword list for VisitArray.
func (c *converter) convertArray(m map[string]any, path string) (grammarir.RuleExprID, error) {
	var prefixExprs []grammarir.RuleExprID
	if arr, ok := m["prefixItems"].([]any); ok {
		for i, sub := range arr {
			id, err := c.convertNode(sub, fmt.Sprintf("%s/prefixItems/%d", path, i))
			if err != nil {
				return 0, err
			}
			prefixExprs = append(prefixExprs, id)
		}
	}
	additional, hasAdditional := c.resolveAdditional(m, "items", "unevaluatedItems")

	var elems []grammarir.RuleExprID
	elems = append(elems, c.b.AddByteString([]byte("[")))
	couldBeEmpty := false

	switch {
	case len(prefixExprs) > 0:
		elems = append(elems, c.wsBoundary())
		for i, pe := range prefixExprs {
			if i > 0 {
				elems = append(elems, c.sepExpr())
			}
			elems = append(elems, pe)
		}
		if hasAdditional {
			val, err := c.schemaExprFor(additional, path+"/items")
			if err != nil {
				return 0, err
			}
			elems = append(elems, c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), val}), 0, -1))
		}
		elems = append(elems, c.wsBoundary())
	case hasAdditional:
		val, err := c.schemaExprFor(additional, path+"/items")
		if err != nil {
			return 0, err
		}
		rest := c.b.AddRepeat(c.b.AddSequence([]grammarir.RuleExprID{c.sepExpr(), val}), 0, -1)
		elems = append(elems, c.wsBoundary(), val, rest, c.wsBoundary())
		couldBeEmpty = true
	default:
		elems = append(elems, c.wsBoundary())
	}
	elems = append(elems, c.b.AddByteString([]byte("]")))
	full := c.b.AddSequence(elems)

	if !c.strict && couldBeEmpty {
		empty := c.b.AddSequence([]grammarir.RuleExprID{
			c.b.AddByteString([]byte("[")), c.wsBoundary(), c.b.AddByteString([]byte("]")),
		})
		return c.b.AddChoices([]grammarir.RuleExprID{full, empty}), nil
	}
	return full, nil
}
