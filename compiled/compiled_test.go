package compiled

import (
	"testing"

	"github.com/coregx/cfgmask/ebnf"
	"github.com/coregx/cfgmask/maskcache"
	"github.com/coregx/cfgmask/matcher"
	"github.com/coregx/cfgmask/workerpool"
)

func mustTokenizer(t *testing.T, vocab []string) *TokenizerInfo {
	t.Helper()
	decoded := make([][]byte, len(vocab))
	for i, s := range vocab {
		decoded[i] = []byte(s)
	}
	ti, err := NewTokenizerInfo(decoded, VocabRaw, len(decoded), nil, false)
	if err != nil {
		t.Fatalf("NewTokenizerInfo: %v", err)
	}
	return ti
}

func TestCompilePipeline(t *testing.T) {
	g, err := ebnf.ParseFile(`root ::= "ab" | "ac"`, "root")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	tok := mustTokenizer(t, []string{"a", "b", "c", "ab"})

	gc := NewGrammarCompiler(tok)
	defer gc.Close()

	cg, err := gc.Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cg.Grammar == nil || cg.FSMs == nil || cg.Cache == nil {
		t.Fatalf("Compile produced an incomplete CompiledGrammar")
	}
}

// maskAccepts reports whether id is in the accepted set described by
// mask, regardless of which of the four storage kinds Classify chose.
func maskAccepts(mask *maskcache.AdaptiveTokenMask, id int32) bool {
	for _, u := range mask.UncertainIDs {
		if u == id {
			return true
		}
	}
	switch mask.Kind {
	case maskcache.AcceptedList:
		for _, a := range mask.AcceptedIDs {
			if a == id {
				return true
			}
		}
		return false
	case maskcache.RejectedList:
		for _, r := range mask.RejectedIDs {
			if r == id {
				return false
			}
		}
		return true
	case maskcache.AcceptedBitset:
		return mask.Bits.Get(int(id))
	case maskcache.RejectedBitset:
		return !mask.Bits.Get(int(id))
	default:
		return false
	}
}

func TestMaskForMatcherPartitionsVocab(t *testing.T) {
	g, err := ebnf.ParseFile(`root ::= "ab"`, "root")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	tok := mustTokenizer(t, []string{"a", "b", "x", "ab"})

	gc := NewGrammarCompiler(tok)
	defer gc.Close()
	cg, err := gc.Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pool := workerpool.New(2)
	defer pool.Close()

	m := matcher.NewMatcher(cg.Grammar, 8, nil)
	mask, err := cg.MaskForMatcher(pool, m)
	if err != nil {
		t.Fatalf("MaskForMatcher: %v", err)
	}

	if !maskAccepts(mask, 0) {
		t.Fatalf("expected token \"a\" (id 0) to be accepted as a prefix of \"ab\"")
	}
	if !maskAccepts(mask, 3) {
		t.Fatalf("expected token \"ab\" (id 3) to be accepted outright")
	}
	if maskAccepts(mask, 2) {
		t.Fatalf("expected token \"x\" (id 2) to be rejected")
	}
}

func TestMaskForMatcherCachesByState(t *testing.T) {
	g, err := ebnf.ParseFile(`root ::= "ab"`, "root")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	tok := mustTokenizer(t, []string{"a", "b"})

	gc := NewGrammarCompiler(tok)
	defer gc.Close()
	cg, err := gc.Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pool := workerpool.New(2)
	defer pool.Close()

	m := matcher.NewMatcher(cg.Grammar, 8, nil)
	if _, err := cg.MaskForMatcher(pool, m); err != nil {
		t.Fatalf("MaskForMatcher: %v", err)
	}
	if cg.Cache.Len() != 1 {
		t.Fatalf("expected exactly one cache entry after one distinct state query, got %d", cg.Cache.Len())
	}
	if _, err := cg.MaskForMatcher(pool, m); err != nil {
		t.Fatalf("MaskForMatcher (second call): %v", err)
	}
	hits, _, _ := cg.Cache.Stats()
	if hits == 0 {
		t.Fatalf("expected the second identical-state query to hit the cache")
	}
}

func TestSerializeRoundTripJSON(t *testing.T) {
	g, err := ebnf.ParseFile(`root ::= "ab" | "ac"`, "root")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	tok := mustTokenizer(t, []string{"a", "b", "c"})

	gc := NewGrammarCompiler(tok)
	defer gc.Close()
	cg, err := gc.Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data, err := cg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	reloaded, err := DeserializeJSON(data, tok)
	if err != nil {
		t.Fatalf("DeserializeJSON: %v", err)
	}
	if len(reloaded.Grammar.Rules) != len(cg.Grammar.Rules) {
		t.Fatalf("round-tripped grammar has %d rules, want %d", len(reloaded.Grammar.Rules), len(cg.Grammar.Rules))
	}
}

func TestSerializeRejectsTokenizerMismatch(t *testing.T) {
	g, err := ebnf.ParseFile(`root ::= "ab"`, "root")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	tok := mustTokenizer(t, []string{"a", "b"})
	other := mustTokenizer(t, []string{"a", "b", "c"})

	gc := NewGrammarCompiler(tok)
	defer gc.Close()
	cg, err := gc.Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data, err := cg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	if _, err := DeserializeJSON(data, other); err == nil {
		t.Fatalf("expected a tokenizer-mismatch error when loading against a different vocab size")
	}
}
