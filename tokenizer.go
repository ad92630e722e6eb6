package cfgmask

import "github.com/coregx/cfgmask/compiled"

// VocabType identifies how raw vocabulary strings decode into bytes.
type VocabType = compiled.VocabType

const (
	VocabRaw          = compiled.VocabRaw
	VocabByteFallback = compiled.VocabByteFallback
	VocabByteLevel    = compiled.VocabByteLevel
)

// TokenizerInfo describes a tokenizer's decoder-facing vocabulary,
// matching §6's `TokenizerInfo` handle type. It is a thin alias over
// compiled.TokenizerInfo: the compiled-grammar layer and the public
// facade share one representation, since a TokenizerInfo's only job is
// carrying decoded-vocabulary metadata between them.
type TokenizerInfo = compiled.TokenizerInfo

// NewTokenizerInfo builds a TokenizerInfo from an already-decoded
// vocabulary, per §6's `TokenizerInfo::new(vocab, kind, size, stop_ids,
// add_prefix_space)`.
func NewTokenizerInfo(decodedVocab [][]byte, kind VocabType, vocabSize int, stopTokenIDs []int32, addPrefixSpace bool) (*TokenizerInfo, error) {
	return compiled.NewTokenizerInfo(decodedVocab, kind, vocabSize, stopTokenIDs, addPrefixSpace)
}
