// Package matcher implements the Earley-over-FSM grammar matcher: a
// persistent stack of partial-match positions that is advanced one byte
// at a time, ported from xgrammar's GrammarMatcherBase onto this
// repository's grammarir IR.
package matcher

import "github.com/coregx/cfgmask/grammarir"

// noParent marks a StackElement with no enclosing rule invocation (the
// bottom of the call stack, i.e. the root rule itself).
const noParent int32 = -1

// unexpandedSequence marks a StackElement that names a rule whose
// choice has not yet been picked; ExpandEquivalentStackElements turns it
// into one concrete StackElement per non-empty alternative.
var unexpandedSequence = grammarir.RuleExprID(grammarir.InvalidID)

// dispatchedTagElement marks a StackElement that just transitioned out
// of a TagDispatch's FSM into the rule it dispatched to, before that
// rule has been expanded.
const dispatchedTagElement int32 = -1

// StackElement is one frame of a partial match: a position within a
// rule's sequence (or, for TagDispatch, a state in its compact FSM),
// plus a link to the parent frame that invoked this rule.
type StackElement struct {
	RuleID          grammarir.RuleID
	SequenceID      grammarir.RuleExprID // unexpandedSequence, or a TagDispatch expr id, or a Sequence/Choices alt
	ElementID       int32                // index into the sequence, or an FSM state id for TagDispatch
	ElementInString int32                // byte offset within a ByteString element
	LeftUTF8Bytes   int32                // UTF-8 continuation bytes still owed for the current codepoint
	PartialRune     int32                // codepoint bits decoded so far, while LeftUTF8Bytes > 0
	ParentID        int32                // index into PersistentStack, or noParent
}

// isEndOfGrammar reports whether this element sits past the end of the
// root rule with no parent to return to, meaning a full match.
func (s StackElement) isEndOfGrammar(g *grammarir.Grammar) bool {
	if s.ParentID != noParent || s.SequenceID == unexpandedSequence {
		return false
	}
	expr := g.GetExpr(s.SequenceID)
	return int(s.ElementID) == seqLen(expr)
}

// PersistentStack is an append-only arena of StackElement frames,
// addressed by index. It never removes nodes: DiscardEarliest in
// StackTopsHistory drops old history snapshots, but the frames those
// snapshots referenced stay in the arena for the life of the stack.
type PersistentStack struct {
	nodes []StackElement
}

// NewPersistentStack creates an empty stack.
func NewPersistentStack() *PersistentStack {
	return &PersistentStack{}
}

// NewNode appends a frame and returns its index.
func (p *PersistentStack) NewNode(elem StackElement) int32 {
	p.nodes = append(p.nodes, elem)
	return int32(len(p.nodes) - 1)
}

// Get returns the frame at id.
func (p *PersistentStack) Get(id int32) StackElement {
	return p.nodes[id]
}

// Len returns the number of frames ever allocated.
func (p *PersistentStack) Len() int { return len(p.nodes) }
