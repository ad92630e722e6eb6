package compiled

import "fmt"

// CompileError wraps a failure from a specific stage of the compile
// pipeline (optimize, fsm-build, precompute), so callers can tell which
// stage failed without string-matching the message.
type CompileError struct {
	Stage string
	Err   error
}

func (e *CompileError) Error() string { return fmt.Sprintf("compiled: %s: %v", e.Stage, e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

// TokenizerMismatchError is returned by DeserializeJSON and
// DeserializeCBOR when a persisted
// CompiledGrammar's tokenizer metadata does not match the tokenizer the
// caller supplies, per §7's "loading a cache file compiled against a
// different tokenizer is a fatal error, never a silent mismatch".
type TokenizerMismatchError struct {
	Field    string
	Expected any
	Got      any
}

func (e *TokenizerMismatchError) Error() string {
	return fmt.Sprintf("compiled: tokenizer mismatch in %s: persisted %v, loaded %v", e.Field, e.Expected, e.Got)
}
