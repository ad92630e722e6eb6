package maskcache

import "testing"

func TestClassifyPicksSmallestForm(t *testing.T) {
	tests := []struct {
		name      string
		accepted  []int32
		rejected  []int32
		vocabSize int
		want      MaskKind
	}{
		{name: "few accepts", accepted: []int32{1, 2, 3}, rejected: seqInt32(4, 100), vocabSize: 100, want: AcceptedList},
		{name: "few rejects", accepted: seqInt32(4, 100), rejected: []int32{1, 2, 3}, vocabSize: 100, want: RejectedList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Classify(tt.accepted, tt.rejected, nil, tt.vocabSize)
			if m.Kind != tt.want {
				t.Fatalf("Classify().Kind = %v, want %v", m.Kind, tt.want)
			}
		})
	}
}

func seqInt32(from, to int) []int32 {
	out := make([]int32, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, int32(i))
	}
	return out
}

func TestApplyIntoAcceptedList(t *testing.T) {
	m := Classify([]int32{1, 3}, seqInt32(0, 64), nil, 64)
	// 2 accepted ids take 8 bytes as an AcceptedList, which ties with the
	// 2-word bitsets and wins the tie as the first candidate.
	if m.Kind != AcceptedList {
		t.Fatalf("expected AcceptedList, got %v", m.Kind)
	}
	dst := make([]uint32, 2)
	m.ApplyInto(dst)
	if dst[0]&(1<<1) == 0 || dst[0]&(1<<3) == 0 {
		t.Fatalf("expected bits 1 and 3 set, got %032b", dst[0])
	}
	if dst[0]&(1<<2) != 0 {
		t.Fatalf("expected bit 2 clear, got %032b", dst[0])
	}
}

func TestApplyIntoUncertainTreatedAccepted(t *testing.T) {
	m := Classify([]int32{1}, seqInt32(2, 64), []int32{0}, 64)
	dst := make([]uint32, 2)
	m.ApplyInto(dst)
	if dst[0]&1 == 0 {
		t.Fatalf("uncertain token 0 should default to accepted, got %032b", dst[0])
	}
}

func TestResolveUncertainOverridesBit(t *testing.T) {
	dst := make([]uint32, 1)
	setBit(dst, 5)
	ResolveUncertain(dst, 5, false)
	if dst[0]&(1<<5) != 0 {
		t.Fatalf("expected bit 5 cleared after ResolveUncertain(false)")
	}
	ResolveUncertain(dst, 5, true)
	if dst[0]&(1<<5) == 0 {
		t.Fatalf("expected bit 5 set after ResolveUncertain(true)")
	}
}

func TestAcceptedRejectedCoverWholeVocab(t *testing.T) {
	// Property: |accepted| + |rejected| == |vocab| (uncertain counts as accepted).
	accepted := []int32{0, 1, 2}
	rejected := seqInt32(3, 10)
	m := Classify(accepted, rejected, nil, 10)
	dst := make([]uint32, 1)
	m.ApplyInto(dst)
	allowed := 0
	for id := 0; id < 10; id++ {
		if dst[0]&(1<<uint(id)) != 0 {
			allowed++
		}
	}
	if got := allowed + len(rejected); got != 10 {
		t.Fatalf("accepted+rejected = %d, want 10", got)
	}
}
