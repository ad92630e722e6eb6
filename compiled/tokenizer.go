// Package compiled assembles a grammarir.Grammar, its tag-dispatch
// FSMs, and vocabulary metadata into a CompiledGrammar ready for a
// matcher to run against, and serializes that form to JSON or CBOR.
package compiled

import (
	"fmt"
	"sort"
)

// VocabType identifies how raw vocabulary strings decode into bytes,
// matching the three encodings a real tokenizer can use.
type VocabType int

const (
	// VocabRaw means each vocabulary entry is already the literal byte
	// string the token decodes to.
	VocabRaw VocabType = iota
	// VocabByteFallback means multi-byte UTF-8 sequences the tokenizer
	// could not represent directly appear as `<0xXX>` escapes.
	VocabByteFallback
	// VocabByteLevel means tokens use a byte-to-unicode remapping (the
	// GPT-2/RoBERTa byte-level BPE alphabet).
	VocabByteLevel
)

func (v VocabType) String() string {
	switch v {
	case VocabRaw:
		return "raw"
	case VocabByteFallback:
		return "byte_fallback"
	case VocabByteLevel:
		return "byte_level"
	default:
		return "unknown"
	}
}

// TokenizerInfo describes the decoder-facing vocabulary: every token id
// together with the literal bytes it decodes to, plus the metadata the
// matcher needs (stop ids, whether a leading space is implicitly
// prepended before the first token of a sequence). Construction from an
// actual tokenizer file is an external collaborator's job; this type
// only accepts an already-decoded vocabulary.
type TokenizerInfo struct {
	decodedVocab   [][]byte
	vocabType      VocabType
	vocabSize      int
	stopTokenIDs   []int32
	specialTokens  []int32
	addPrefixSpace bool

	sortedVocab []sortedEntry // lazily built, sorted by decoded bytes
}

type sortedEntry struct {
	id    int32
	bytes []byte
}

// NewTokenizerInfo builds a TokenizerInfo from an already-decoded
// vocabulary (token id -> literal bytes), matching the
// `TokenizerInfo::new(vocab, kind, size, stop_ids, add_prefix_space)`
// surface named in §6. vocabSize may exceed len(decodedVocab) when the
// tokenizer reserves trailing ids with no textual form (e.g. padding).
func NewTokenizerInfo(decodedVocab [][]byte, kind VocabType, vocabSize int, stopTokenIDs []int32, addPrefixSpace bool) (*TokenizerInfo, error) {
	if vocabSize < len(decodedVocab) {
		return nil, fmt.Errorf("compiled: vocabSize %d smaller than decoded vocab length %d", vocabSize, len(decodedVocab))
	}
	t := &TokenizerInfo{
		decodedVocab:   decodedVocab,
		vocabType:      kind,
		vocabSize:      vocabSize,
		stopTokenIDs:   append([]int32(nil), stopTokenIDs...),
		addPrefixSpace: addPrefixSpace,
	}
	return t, nil
}

// VocabSize returns the total vocabulary size (including ids beyond the
// last decoded entry).
func (t *TokenizerInfo) VocabSize() int { return t.vocabSize }

// VocabType reports the decoding scheme.
func (t *TokenizerInfo) VocabType() VocabType { return t.vocabType }

// AddPrefixSpace reports whether tokenization prepends a space to the
// first token of a sequence.
func (t *TokenizerInfo) AddPrefixSpace() bool { return t.addPrefixSpace }

// StopTokenIDs returns the token ids that terminate generation.
func (t *TokenizerInfo) StopTokenIDs() []int32 { return t.stopTokenIDs }

// DecodedVocab returns the literal byte string for every token id in
// order; an id with no textual form decodes to a nil slice.
func (t *TokenizerInfo) DecodedVocab() [][]byte { return t.decodedVocab }

// Decode returns the literal bytes for a single token id.
func (t *TokenizerInfo) Decode(id int32) []byte {
	if int(id) < 0 || int(id) >= len(t.decodedVocab) {
		return nil
	}
	return t.decodedVocab[id]
}

// SortedDecodedVocab returns every (id, bytes) pair sorted
// lexicographically by bytes, built once and cached. Sorting the
// vocabulary lets a matcher prefix-share work across tokens that begin
// identically, per the original implementation's
// `GetSortedDecodedVocab`.
func (t *TokenizerInfo) SortedDecodedVocab() []struct {
	ID    int32
	Bytes []byte
} {
	if t.sortedVocab == nil {
		entries := make([]sortedEntry, 0, len(t.decodedVocab))
		for id, b := range t.decodedVocab {
			entries = append(entries, sortedEntry{id: int32(id), bytes: b})
		}
		sort.Slice(entries, func(i, j int) bool {
			return string(entries[i].bytes) < string(entries[j].bytes)
		})
		t.sortedVocab = entries
	}
	out := make([]struct {
		ID    int32
		Bytes []byte
	}, len(t.sortedVocab))
	for i, e := range t.sortedVocab {
		out[i].ID = e.id
		out[i].Bytes = e.bytes
	}
	return out
}
