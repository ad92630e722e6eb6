package fsm

import "unicode/utf8"

// CodepointRange is an inclusive range of Unicode codepoints, as used by
// the grammar IR's CharacterClass payload.
type CodepointRange struct {
	Low, High rune
}

// utf8LenBoundaries are the inclusive codepoint boundaries for each UTF-8
// encoded length, per the spec's UTF-8 boundary table (§6). Surrogates
// (0xD800-0xDFFF) are never valid codepoints and are excluded by callers
// that sanitise ranges before calling CharClassFSM.
var utf8LenBoundaries = [4][2]rune{
	{0x0000, 0x007F},
	{0x0080, 0x07FF},
	{0x0800, 0xFFFF},
	{0x10000, 0x10FFFF},
}

// CharClassFSM builds the FSM fragment matching one UTF-8-encoded
// codepoint drawn from ranges (or, if negated, any codepoint NOT covered
// by ranges). It implements "for each codepoint range, the exact sequence
// of byte ranges that encode it in UTF-8, splitting the range at the
// 1/2/3/4-byte UTF-8 boundaries and at each leading-byte change".
func CharClassFSM(ranges []CodepointRange, negated bool) FsmWithStartEnd {
	effective := ranges
	if negated {
		effective = complementRanges(ranges)
	}
	var seqs [][]Edge // each inner slice is a chain of byte-range edges (Target filled in later)
	for _, r := range effective {
		seqs = append(seqs, rangeToByteSequences(r.Low, r.High)...)
	}
	return sequencesToUnion(seqs)
}

// complementRanges returns the set of codepoint ranges in [0, 0x10FFFF]
// NOT covered by ranges, excluding the surrogate block (which never
// appears as a UTF-8-decoded codepoint).
func complementRanges(ranges []CodepointRange) []CodepointRange {
	sorted := append([]CodepointRange(nil), ranges...)
	sortRanges(sorted)
	merged := mergeRanges(sorted)

	var out []CodepointRange
	const maxCP = rune(0x10FFFF)
	cur := rune(0)
	for _, r := range merged {
		if r.Low > cur {
			addComplementSegment(&out, cur, r.Low-1)
		}
		if r.High+1 > cur {
			cur = r.High + 1
		}
	}
	if cur <= maxCP {
		addComplementSegment(&out, cur, maxCP)
	}
	return out
}

// addComplementSegment appends [lo, hi], splitting around the surrogate
// block so no produced range ever includes an unencodable codepoint.
func addComplementSegment(out *[]CodepointRange, lo, hi rune) {
	const surrLo, surrHi = 0xD800, 0xDFFF
	if hi < surrLo || lo > surrHi {
		*out = append(*out, CodepointRange{lo, hi})
		return
	}
	if lo < surrLo {
		*out = append(*out, CodepointRange{lo, surrLo - 1})
	}
	if hi > surrHi {
		*out = append(*out, CodepointRange{surrHi + 1, hi})
	}
}

func sortRanges(rs []CodepointRange) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].Low > rs[j].Low; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

func mergeRanges(rs []CodepointRange) []CodepointRange {
	if len(rs) == 0 {
		return nil
	}
	out := []CodepointRange{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.Low <= last.High+1 {
			if r.High > last.High {
				last.High = r.High
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// rangeToByteSequences splits [lo, hi] first at the UTF-8 length
// boundaries, then recursively by leading byte for each same-length
// sub-range, returning one edge chain per produced byte sequence.
func rangeToByteSequences(lo, hi rune) [][]Edge {
	var out [][]Edge
	for _, b := range utf8LenBoundaries {
		segLo, segHi := maxRune(lo, b[0]), minRune(hi, b[1])
		if segLo > segHi {
			continue
		}
		out = append(out, splitSameLength(segLo, segHi)...)
	}
	return out
}

func maxRune(a, b rune) rune {
	if a > b {
		return a
	}
	return b
}
func minRune(a, b rune) rune {
	if a < b {
		return a
	}
	return b
}

// splitSameLength assumes lo and hi encode to the same number of UTF-8
// bytes and recursively splits at each leading-byte change so every
// produced chain is expressible as a simple per-byte-position range.
func splitSameLength(lo, hi rune) [][]Edge {
	var loBuf, hiBuf [utf8.UTFMax]byte
	nlo := utf8.EncodeRune(loBuf[:], lo)
	nhi := utf8.EncodeRune(hiBuf[:], hi)
	if nlo != nhi {
		// Should not happen: caller already split at length boundaries.
		panic("fsm: mismatched utf8 length in splitSameLength")
	}
	return splitBytes(loBuf[:nlo], hiBuf[:nhi])
}

func splitBytes(lo, hi []byte) [][]Edge {
	if len(lo) == 1 {
		return [][]Edge{{{Low: int32(lo[0]), High: int32(hi[0])}}}
	}
	if lo[0] == hi[0] {
		rest := splitBytes(lo[1:], hi[1:])
		for i := range rest {
			rest[i] = append([]Edge{{Low: int32(lo[0]), High: int32(lo[0])}}, rest[i]...)
		}
		return rest
	}

	var out [][]Edge

	// 1. lo[0] paired with the continuation suffix from lo[1:] up to max (0xBF...).
	maxSuffix := make([]byte, len(lo)-1)
	for i := range maxSuffix {
		maxSuffix[i] = 0xBF
	}
	head1 := splitBytes(lo[1:], maxSuffix)
	for _, seq := range head1 {
		out = append(out, append([]Edge{{Low: int32(lo[0]), High: int32(lo[0])}}, seq...))
	}

	// 2. Full middle range of leading bytes with unconstrained continuation bytes.
	if hi[0]-lo[0] > 1 {
		full := make([]Edge, len(lo)-1)
		for i := range full {
			full[i] = Edge{Low: 0x80, High: 0xBF}
		}
		mid := append([]Edge{{Low: int32(lo[0] + 1), High: int32(hi[0] - 1)}}, full...)
		out = append(out, mid)
	}

	// 3. hi[0] paired with the continuation suffix from min (0x80...) up to hi[1:].
	minSuffix := make([]byte, len(hi)-1)
	for i := range minSuffix {
		minSuffix[i] = 0x80
	}
	head3 := splitBytes(minSuffix, hi[1:])
	for _, seq := range head3 {
		out = append(out, append([]Edge{{Low: int32(hi[0]), High: int32(hi[0])}}, seq...))
	}

	return out
}

// sequencesToUnion builds a union-of-concatenations FSM from byte edge
// chains, as produced by rangeToByteSequences.
func sequencesToUnion(seqs [][]Edge) FsmWithStartEnd {
	if len(seqs) == 0 {
		// An empty character class matches nothing: start state with no
		// accepting path.
		f := &FSM{}
		s := f.AddState()
		return FsmWithStartEnd{FSM: f, Start: s, Accept: map[StateID]bool{}}
	}
	var frags []FsmWithStartEnd
	for _, chain := range seqs {
		var parts []FsmWithStartEnd
		for _, e := range chain {
			parts = append(parts, ByteRangeFSM(byte(e.Low), byte(e.High)))
		}
		frags = append(frags, Concat(parts...))
	}
	return Union(frags...)
}
