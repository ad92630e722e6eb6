package optimizer

import "github.com/coregx/cfgmask/grammarir"

// normalizeSingleElements implements SingleElementExprEliminator: a
// Sequence or Choices holding exactly one element collapses into that
// element, and a single-codepoint CharacterClass lowers to the ByteString
// of its UTF-8 encoding. Collapsing is done by copying the child's
// content into the parent's arena slot (rather than rewriting every
// reference to the parent), so every existing RuleExprID pointing at the
// collapsed node keeps working unchanged. Chains of single-element
// wrappers are resolved by iterating to a fixed point.
func normalizeSingleElements(g *grammarir.Grammar) {
	changed := true
	for changed {
		changed = false
		for i := range g.Exprs {
			e := &g.Exprs[i]
			switch e.Type {
			case grammarir.Sequence, grammarir.Choices:
				if len(e.Elements) == 1 {
					*e = g.Exprs[e.Elements[0]]
					changed = true
				}
			case grammarir.CharacterClass:
				if !e.Negated && len(e.Ranges) == 1 && e.Ranges[0].Low == e.Ranges[0].High {
					buf := make([]byte, 0, 4)
					buf = appendUTF8(buf, e.Ranges[0].Low)
					*e = grammarir.RuleExpr{Type: grammarir.ByteString, Bytes: buf}
					changed = true
				}
			}
		}
	}
}

// appendUTF8 encodes r as UTF-8 bytes appended to buf, without pulling in
// unicode/utf8's rune-validity checks (grammar codepoint ranges are
// already validated by the EBNF/JSON-schema front ends).
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

// fuseByteStrings implements ByteStringFuser: consecutive ByteString
// elements within a Sequence are concatenated into one ByteString. It
// runs after single-element collapsing since that pass can turn
// multi-element sequences into bare ByteStrings that then sit adjacent
// to their former siblings.
func fuseByteStrings(g *grammarir.Grammar) {
	// n is fixed before the loop: appendExpr below grows g.Exprs (and may
	// reallocate its backing array), so every access to an expr must go
	// through a fresh g.GetExpr/indexing call rather than a pointer held
	// across an appendExpr call.
	n := len(g.Exprs)
	for i := 0; i < n; i++ {
		if g.Exprs[i].Type != grammarir.Sequence {
			continue
		}
		elements := g.Exprs[i].Elements
		var out []grammarir.RuleExprID
		for _, elemID := range elements {
			elemType := g.GetExpr(elemID).Type
			if elemType == grammarir.ByteString && len(out) > 0 && g.GetExpr(out[len(out)-1]).Type == grammarir.ByteString {
				prevBytes := g.GetExpr(out[len(out)-1]).Bytes
				curBytes := g.GetExpr(elemID).Bytes
				fused := appendExpr(g, grammarir.RuleExpr{
					Type:  grammarir.ByteString,
					Bytes: append(append([]byte(nil), prevBytes...), curBytes...),
				})
				out[len(out)-1] = fused
				continue
			}
			out = append(out, elemID)
		}
		g.Exprs[i].Elements = out
	}
}
