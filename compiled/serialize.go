package compiled

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/coregx/cfgmask/grammarir"
)

// formatVersion guards against loading a persisted form written by an
// incompatible future (or past) version of this package.
const formatVersion = 1

// tokenizerMetadata is the serializable slice of TokenizerInfo checked
// against the loading caller's own tokenizer on Deserialize, per §7's
// "loading a cache file compiled against a different tokenizer is a
// fatal error, never a silent mismatch".
type tokenizerMetadata struct {
	VocabType      VocabType `json:"vocab_type"`
	VocabSize      int       `json:"vocab_size"`
	StopTokenIDs   []int32   `json:"stop_token_ids"`
	AddPrefixSpace bool      `json:"add_prefix_space"`
}

func metadataOf(t *TokenizerInfo) tokenizerMetadata {
	return tokenizerMetadata{
		VocabType:      t.VocabType(),
		VocabSize:      t.VocabSize(),
		StopTokenIDs:   append([]int32(nil), t.StopTokenIDs()...),
		AddPrefixSpace: t.AddPrefixSpace(),
	}
}

func (m tokenizerMetadata) matches(t *TokenizerInfo) error {
	if m.VocabType != t.VocabType() {
		return &TokenizerMismatchError{Field: "vocab_type", Expected: m.VocabType, Got: t.VocabType()}
	}
	if m.VocabSize != t.VocabSize() {
		return &TokenizerMismatchError{Field: "vocab_size", Expected: m.VocabSize, Got: t.VocabSize()}
	}
	if m.AddPrefixSpace != t.AddPrefixSpace() {
		return &TokenizerMismatchError{Field: "add_prefix_space", Expected: m.AddPrefixSpace, Got: t.AddPrefixSpace()}
	}
	if len(m.StopTokenIDs) != len(t.StopTokenIDs()) {
		return &TokenizerMismatchError{Field: "stop_token_ids", Expected: m.StopTokenIDs, Got: t.StopTokenIDs()}
	}
	got := t.StopTokenIDs()
	for i, id := range m.StopTokenIDs {
		if got[i] != id {
			return &TokenizerMismatchError{Field: "stop_token_ids", Expected: m.StopTokenIDs, Got: got}
		}
	}
	return nil
}

// persistedForm is the on-disk shape shared by the JSON and CBOR
// encodings: the grammar IR (§6's `grammar` field), the tokenizer
// metadata it was compiled against, and a version tag. The adaptive
// token-mask cache is intentionally not persisted: it is cheap to rebuild
// lazily and pinning specific masks to a format version would couple the
// wire format to maskcache's internal storage-kind selection.
type persistedForm struct {
	Version   int               `json:"version"`
	Grammar   grammarir.Grammar `json:"grammar"`
	Tokenizer tokenizerMetadata `json:"tokenizer_metadata"`
}

// MarshalJSON implements json.Marshaler, producing the persisted form
// named in §6 (fields `grammar`, `tokenizer_metadata`, plus a version
// tag this package checks on load).
func (cg *CompiledGrammar) MarshalJSON() ([]byte, error) {
	return json.Marshal(persistedForm{
		Version:   formatVersion,
		Grammar:   *cg.Grammar,
		Tokenizer: metadataOf(cg.Tokenizer),
	})
}

// DeserializeJSON reconstructs a CompiledGrammar from JSON produced by
// MarshalJSON, re-running FSM construction (the FSMs themselves are not
// persisted) and checking the embedded tokenizer metadata against
// tokenizer, which must be the same tokenizer (or an equivalent one) the
// grammar was originally compiled against.
func DeserializeJSON(data []byte, tokenizer *TokenizerInfo, opts ...CompilerOption) (*CompiledGrammar, error) {
	var pf persistedForm
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("compiled: decode json: %w", err)
	}
	return finishDeserialize(pf, tokenizer, opts...)
}

// MarshalBinary implements encoding.BinaryMarshaler via CBOR
// (github.com/fxamacker/cbor/v2), the compact binary sibling of the JSON
// form named in §6.
func (cg *CompiledGrammar) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(persistedForm{
		Version:   formatVersion,
		Grammar:   *cg.Grammar,
		Tokenizer: metadataOf(cg.Tokenizer),
	})
}

// DeserializeCBOR is the CBOR counterpart of DeserializeJSON.
func DeserializeCBOR(data []byte, tokenizer *TokenizerInfo, opts ...CompilerOption) (*CompiledGrammar, error) {
	var pf persistedForm
	if err := cbor.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("compiled: decode cbor: %w", err)
	}
	return finishDeserialize(pf, tokenizer, opts...)
}

func finishDeserialize(pf persistedForm, tokenizer *TokenizerInfo, opts ...CompilerOption) (*CompiledGrammar, error) {
	if pf.Version != formatVersion {
		return nil, fmt.Errorf("compiled: unsupported format version %d (want %d)", pf.Version, formatVersion)
	}
	if err := pf.Tokenizer.matches(tokenizer); err != nil {
		return nil, err
	}
	g := pf.Grammar
	gc := NewGrammarCompiler(tokenizer, opts...)
	defer gc.Close()
	return gc.compileOptimized(&g)
}
