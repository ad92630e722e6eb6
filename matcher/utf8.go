package matcher

import "github.com/coregx/cfgmask/grammarir"

// decodeUTF8FirstByte classifies a UTF-8 lead byte, returning whether it
// is a valid lead byte, how many continuation bytes follow, and the
// value bits the lead byte itself contributes to the final codepoint
// (the low 7/5/4/3 bits, per the 1/2/3/4-byte UTF-8 layouts). Callers
// accumulate this seed value with each continuation byte's low 6 bits
// (via `partial = partial<<6 | (b&0x3F)`) to reconstruct the full
// codepoint once every continuation byte has arrived; see
// CheckIfAccepted/AdvanceStackElementWithChar.
func decodeUTF8FirstByte(b byte) (accepted bool, numBytes int, initial int32) {
	switch {
	case b < 0x80:
		return true, 1, int32(b)
	case b&0xE0 == 0xC0:
		return true, 2, int32(b & 0x1F)
	case b&0xF0 == 0xE0:
		return true, 3, int32(b & 0x0F)
	case b&0xF8 == 0xF0:
		return true, 4, int32(b & 0x07)
	default:
		return false, 0, 0
	}
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}

// accumulateContinuation folds one continuation byte's six value bits
// into a partially-decoded codepoint.
func accumulateContinuation(partial int32, b byte) int32 {
	return partial<<6 | int32(b&0x3F)
}

// codepointInClass reports whether cp falls in one of cls's ranges,
// honoring the Negated flag, per §3's CharacterClass semantics.
func codepointInClass(cls *grammarir.RuleExpr, cp int32) bool {
	for _, r := range cls.Ranges {
		if r.Low <= rune(cp) && rune(cp) <= r.High {
			return !cls.Negated
		}
	}
	return cls.Negated
}
