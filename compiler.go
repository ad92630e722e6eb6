package cfgmask

import (
	"github.com/coregx/cfgmask/compiled"
	"github.com/coregx/cfgmask/jsonschema"
)

// CompilerOption configures a GrammarCompiler.
type CompilerOption = compiled.CompilerOption

// WithMaxThreads overrides the compiler's thread-pool size.
func WithMaxThreads(n int) CompilerOption { return compiled.WithMaxThreads(n) }

// WithCacheEnabled toggles whether compiled grammars get an adaptive
// mask cache attached.
func WithCacheEnabled(enabled bool) CompilerOption { return compiled.WithCacheEnabled(enabled) }

// WithCacheLimitBytes bounds a compiled grammar's mask-cache memory
// footprint.
func WithCacheLimitBytes(n int64) CompilerOption { return compiled.WithCacheLimitBytes(n) }

// CompiledGrammar is a Grammar bound to a tokenizer: optimized rule set,
// per-rule compact FSMs, and an adaptive token-mask cache, per §3.
type CompiledGrammar = compiled.CompiledGrammar

// GrammarCompiler turns Grammars into CompiledGrammars for a fixed
// tokenizer, matching §6's `GrammarCompiler::new(tokenizer, max_threads,
// cache_enabled, cache_limit_bytes)` plus its `compile_*` family. Each
// `Compile*` convenience method lowers its input through the matching
// front end (EBNF/JSON-Schema/regex/structural-tag/builtin) and then
// runs the shared optimize-and-attach-cache pipeline, so callers never
// need to round-trip through a bare *Grammar for the common cases.
type GrammarCompiler struct {
	*compiled.GrammarCompiler
}

// NewGrammarCompiler creates a compiler bound to a fixed tokenizer.
func NewGrammarCompiler(tokenizer *TokenizerInfo, opts ...CompilerOption) *GrammarCompiler {
	return &GrammarCompiler{GrammarCompiler: compiled.NewGrammarCompiler(tokenizer, opts...)}
}

// CompileGrammar compiles an already-built Grammar, per §6's
// `compile_grammar`.
func (gc *GrammarCompiler) CompileGrammar(g *Grammar) (*CompiledGrammar, error) {
	return gc.Compile(g.ir)
}

// CompileEBNF parses and compiles an EBNF grammar source, per §6's
// `compile_json_grammar`-style convenience entry points generalised to
// EBNF's own root-rule argument.
func (gc *GrammarCompiler) CompileEBNF(src, root string) (*CompiledGrammar, error) {
	g, err := FromEBNF(src, root)
	if err != nil {
		return nil, err
	}
	return gc.Compile(g.ir)
}

// CompileJSONSchema compiles a JSON Schema document, per §6's
// `compile_json_schema`.
func (gc *GrammarCompiler) CompileJSONSchema(schemaJSON []byte, opts ...jsonschema.Option) (*CompiledGrammar, error) {
	g, err := FromJSONSchema(schemaJSON, opts...)
	if err != nil {
		return nil, err
	}
	return gc.Compile(g.ir)
}

// CompileBuiltinJSONGrammar compiles the any-JSON-value grammar, per
// §6's `compile_builtin_json_grammar`.
func (gc *GrammarCompiler) CompileBuiltinJSONGrammar() (*CompiledGrammar, error) {
	g, err := BuiltinJSONGrammar()
	if err != nil {
		return nil, err
	}
	return gc.Compile(g.ir)
}

// CompileRegex compiles a regular expression, per §6's `compile_regex`.
func (gc *GrammarCompiler) CompileRegex(pattern string) (*CompiledGrammar, error) {
	g, err := FromRegex(pattern)
	if err != nil {
		return nil, err
	}
	return gc.Compile(g.ir)
}

// CompileStructuralTag compiles a structural-tag JSON document, per
// §6's `compile_structural_tag`.
func (gc *GrammarCompiler) CompileStructuralTag(tagJSON []byte, opts ...jsonschema.Option) (*CompiledGrammar, error) {
	g, err := FromStructuralTag(tagJSON, opts...)
	if err != nil {
		return nil, err
	}
	return gc.Compile(g.ir)
}
