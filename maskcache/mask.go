package maskcache

import "sort"

// MaskKind identifies which of the four compact storage forms an
// AdaptiveTokenMask uses, chosen per state by population count so the
// smallest representation wins.
type MaskKind uint8

const (
	AcceptedList MaskKind = iota
	RejectedList
	AcceptedBitset
	RejectedBitset
)

func (k MaskKind) String() string {
	switch k {
	case AcceptedList:
		return "AcceptedList"
	case RejectedList:
		return "RejectedList"
	case AcceptedBitset:
		return "AcceptedBitset"
	case RejectedBitset:
		return "RejectedBitset"
	default:
		return "Unknown"
	}
}

// AdaptiveTokenMask is the per-state compressed accept set. Exactly one
// of AcceptedIDs, RejectedIDs or Bits holds data, selected by Kind.
// UncertainIDs is always populated: tokens whose acceptance depends on
// what follows, resolved at query time by a speculative matcher probe.
type AdaptiveTokenMask struct {
	Kind         MaskKind
	AcceptedIDs  []int32
	RejectedIDs  []int32
	Bits         *Bitset
	UncertainIDs []int32
	VocabSize    int
}

// Classify builds an AdaptiveTokenMask from the three raw sets computed
// by a matcher sweep over the vocabulary (accepted, rejected, uncertain
// token ids), picking whichever of the four storage forms is smallest.
// Per the cache-entry invariant, uncertain tokens count as accepted for
// the purpose of the accepted/rejected partition (they are never
// rejected outright), so len(accepted)+len(rejected) == vocabSize.
func Classify(accepted, rejected, uncertain []int32, vocabSize int) *AdaptiveTokenMask {
	sort.Slice(accepted, func(i, j int) bool { return accepted[i] < accepted[j] })
	sort.Slice(rejected, func(i, j int) bool { return rejected[i] < rejected[j] })
	sort.Slice(uncertain, func(i, j int) bool { return uncertain[i] < uncertain[j] })

	bitsetBytes := wordsFor(vocabSize) * 4
	listBytes := func(n int) int { return n * 4 }

	type candidate struct {
		kind MaskKind
		size int
	}
	candidates := []candidate{
		{AcceptedList, listBytes(len(accepted))},
		{RejectedList, listBytes(len(rejected))},
		{AcceptedBitset, bitsetBytes},
		{RejectedBitset, bitsetBytes},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.size < best.size {
			best = c
		}
	}

	m := &AdaptiveTokenMask{Kind: best.kind, UncertainIDs: uncertain, VocabSize: vocabSize}
	switch best.kind {
	case AcceptedList:
		m.AcceptedIDs = accepted
	case RejectedList:
		m.RejectedIDs = rejected
	case AcceptedBitset:
		bs := NewBitset(vocabSize)
		for _, id := range accepted {
			bs.Set(int(id))
		}
		m.Bits = bs
	case RejectedBitset:
		bs := NewBitset(vocabSize)
		for _, id := range rejected {
			bs.Set(int(id))
		}
		m.Bits = bs
	}
	return m
}

// ApplyInto writes this mask's baseline allow/deny decision for every
// token into dst (a word slice sized per the wire format), treating
// every uncertain token as allowed. The caller resolves uncertain tokens
// afterwards with ResolveUncertain.
func (m *AdaptiveTokenMask) ApplyInto(dst []uint32) {
	for i := range dst {
		dst[i] = 0
	}
	switch m.Kind {
	case AcceptedList:
		for _, id := range m.AcceptedIDs {
			setBit(dst, int(id))
		}
		for _, id := range m.UncertainIDs {
			setBit(dst, int(id))
		}
	case RejectedList:
		setAllBits(dst, m.VocabSize)
		for _, id := range m.RejectedIDs {
			clearBit(dst, int(id))
		}
	case AcceptedBitset:
		copy(dst, m.Bits.Words())
		for _, id := range m.UncertainIDs {
			setBit(dst, int(id))
		}
	case RejectedBitset:
		setAllBits(dst, m.VocabSize)
		bw := m.Bits.Words()
		for i := range dst {
			if i < len(bw) {
				dst[i] &^= bw[i]
			}
		}
	}
}

// ResolveUncertain sets or clears the bit for token id in dst according
// to the result of a speculative probe, per §I's query algorithm step 3.
func ResolveUncertain(dst []uint32, id int32, allowed bool) {
	if allowed {
		setBit(dst, int(id))
	} else {
		clearBit(dst, int(id))
	}
}

func setBit(dst []uint32, i int) {
	dst[i/32] |= 1 << uint(i%32)
}

func clearBit(dst []uint32, i int) {
	dst[i/32] &^= 1 << uint(i%32)
}

func setAllBits(dst []uint32, vocabSize int) {
	for i := range dst {
		dst[i] = ^uint32(0)
	}
	rem := vocabSize % 32
	if rem != 0 && len(dst) > 0 {
		dst[len(dst)-1] &= (1 << uint(rem)) - 1
	}
}

// SizeBytes estimates the in-memory footprint of this mask, used by the
// cache's byte-budget eviction accounting.
func (m *AdaptiveTokenMask) SizeBytes() int {
	base := 4 * len(m.UncertainIDs)
	switch m.Kind {
	case AcceptedList:
		return base + 4*len(m.AcceptedIDs)
	case RejectedList:
		return base + 4*len(m.RejectedIDs)
	case AcceptedBitset, RejectedBitset:
		return base + len(m.Bits.Words())*4
	default:
		return base
	}
}
