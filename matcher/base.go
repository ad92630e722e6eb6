package matcher

import "github.com/coregx/cfgmask/grammarir"

// Base implements the byte-level matching algorithm shared by every
// matcher mode: advancing a set of persistent-stack tops one byte at a
// time, expanding rule references through ε-equivalent positions, and
// reporting whether the current state could be a complete match. It is
// embedded by Matcher, which adds the token-level and mask-cache-facing
// operations.
type Base struct {
	g       *grammarir.Grammar
	stack   *PersistentStack
	history *StackTopsHistory
	tagDisp *tagDispatchCache

	bytes []byte // every byte accepted so far, for TagDispatch windowing

	tmpTops []int32
}

func newBase(g *grammarir.Grammar) *Base {
	return &Base{
		g:       g,
		stack:   NewPersistentStack(),
		history: NewStackTopsHistory(),
		tagDisp: newTagDispatchCache(g),
	}
}

// seqLen reports how many atomic elements a "sequence" holds. Most
// alternatives are genuine Sequence nodes, but a single-element
// alternative is stored bare (the element itself, acting as its own
// length-1 sequence) and an empty alternative is EmptyStr (length 0).
func seqLen(seq *grammarir.RuleExpr) int {
	switch seq.Type {
	case grammarir.TagDispatch:
		return 1 << 30 // TagDispatch never reaches "end of sequence" by element_id
	case grammarir.Sequence:
		return len(seq.Elements)
	case grammarir.EmptyStr:
		return 0
	default:
		return 1
	}
}

// seqElementID returns the atomic element at idx within the "sequence"
// named by seqID/seq, per the same bare-single-element convention as
// seqLen.
func seqElementID(seqID grammarir.RuleExprID, seq *grammarir.RuleExpr, idx int32) grammarir.RuleExprID {
	if seq.Type == grammarir.Sequence {
		return seq.Elements[idx]
	}
	return seqID
}

// CheckIfAccepted reports whether charValue is legal at the position
// named by elem, without mutating any state.
func (b *Base) CheckIfAccepted(elem StackElement, charValue byte) bool {
	if elem.SequenceID == unexpandedSequence {
		return false
	}
	seq := b.g.GetExpr(elem.SequenceID)
	if seq.Type == grammarir.TagDispatch {
		return true
	}
	current := b.g.GetExpr(seqElementID(elem.SequenceID, seq, elem.ElementID))
	switch current.Type {
	case grammarir.CharacterClass, grammarir.CharacterClassStar:
		if elem.LeftUTF8Bytes > 0 {
			if !isUTF8Continuation(charValue) {
				return false
			}
			partial := accumulateContinuation(elem.PartialRune, charValue)
			if elem.LeftUTF8Bytes > 1 {
				// Not the codepoint's last continuation byte yet: this
				// byte is always a legal UTF-8 continuation and the
				// range check is deferred until the full codepoint is
				// known, per §4.H.
				return true
			}
			return codepointInClass(current, partial)
		}
		accepted, numBytes, initial := decodeUTF8FirstByte(charValue)
		if !accepted {
			return false
		}
		if numBytes > 1 {
			// Multi-byte lead byte under a CharacterClass: acceptance is
			// deferred to later advance steps until the continuation
			// bytes complete the codepoint (§4.H).
			return true
		}
		return codepointInClass(current, initial)
	case grammarir.ByteString:
		return current.Bytes[elem.ElementInString] == charValue
	default:
		panic("matcher: unexpected rule-expr type in CheckIfAccepted")
	}
}

// moveToNextPosition advances elem past the current sequence element.
func (b *Base) moveToNextPosition(elem StackElement) StackElement {
	elem.ElementID++
	elem.ElementInString = 0
	elem.LeftUTF8Bytes = 0
	elem.PartialRune = 0
	return elem
}

// AdvanceStackElementWithChar consumes charValue from elem, returning
// the resulting position. The caller must already know charValue is
// accepted (via CheckIfAccepted).
func (b *Base) AdvanceStackElementWithChar(elem StackElement, charValue byte) StackElement {
	seq := b.g.GetExpr(elem.SequenceID)
	if seq.Type == grammarir.TagDispatch {
		return b.advanceTagDispatch(elem, seq, charValue)
	}

	current := b.g.GetExpr(seqElementID(elem.SequenceID, seq, elem.ElementID))
	next := elem
	switch current.Type {
	case grammarir.CharacterClass:
		if elem.LeftUTF8Bytes > 1 {
			next.LeftUTF8Bytes--
			next.PartialRune = accumulateContinuation(elem.PartialRune, charValue)
			return next
		} else if elem.LeftUTF8Bytes == 1 {
			return b.moveToNextPosition(elem)
		}
		_, numBytes, initial := decodeUTF8FirstByte(charValue)
		if numBytes > 1 {
			next.LeftUTF8Bytes = int32(numBytes - 1)
			next.PartialRune = initial
			return next
		}
		return b.moveToNextPosition(elem)
	case grammarir.CharacterClassStar:
		if elem.LeftUTF8Bytes >= 1 {
			next.LeftUTF8Bytes--
			next.PartialRune = accumulateContinuation(elem.PartialRune, charValue)
			if next.LeftUTF8Bytes == 0 {
				next.PartialRune = 0
			}
		} else {
			_, numBytes, initial := decodeUTF8FirstByte(charValue)
			next.LeftUTF8Bytes = int32(numBytes - 1)
			if next.LeftUTF8Bytes == 0 {
				next.PartialRune = 0
			} else {
				next.PartialRune = initial
			}
		}
		return next
	case grammarir.ByteString:
		if int(elem.ElementInString)+1 < len(current.Bytes) {
			next.ElementInString++
			return next
		}
		return b.moveToNextPosition(elem)
	default:
		panic("matcher: unexpected rule-expr type in AdvanceStackElementWithChar")
	}
}

// advanceTagDispatch implements the trigger-scan window described in
// tagdispatch.go: CheckIfAccepted already let every byte through, so
// here we record it and test whether the scan window (since the offset
// recorded in ElementInString) now ends in a trigger.
func (b *Base) advanceTagDispatch(elem StackElement, seq *grammarir.RuleExpr, charValue byte) StackElement {
	window := append(append([]byte(nil), b.bytes[elem.ElementInString:]...), charValue)

	rt, err := b.tagDisp.get(elem.SequenceID)
	if err != nil {
		return elem
	}
	rule, _, matched := rt.findEarliestTrigger(window)
	if !matched {
		return elem
	}

	continuation := elem
	continuation.ElementID = dispatchedTagElement
	contID := b.stack.NewNode(continuation)
	return StackElement{
		RuleID:     rule,
		SequenceID: unexpandedSequence,
		ElementID:  0,
		ParentID:   contID,
	}
}

// ExpandEquivalentStackElements turns cur into every concrete stack top
// reachable from it via ε-moves: unexpanded-rule alternatives,
// zero-width CharacterClassStar/optional-rule continuations, and
// end-of-rule returns to the parent frame.
func (b *Base) ExpandEquivalentStackElements(cur StackElement, tops *[]int32, reuseID int32, considerParent bool) {
	addElem := func(elem StackElement) int32 {
		if reuseID != -1 {
			return reuseID
		}
		return b.stack.NewNode(elem)
	}

	if cur.SequenceID == unexpandedSequence {
		ruleBody := b.g.GetExpr(b.g.GetRule(cur.RuleID).Body)
		for _, altID := range ruleBody.Elements {
			alt := b.g.GetExpr(altID)
			if alt.Type == grammarir.EmptyStr {
				continue
			}
			next := StackElement{RuleID: cur.RuleID, SequenceID: altID, ElementID: 0, ParentID: cur.ParentID}
			b.ExpandEquivalentStackElements(next, tops, -1, false)
		}
		return
	}

	seq := b.g.GetExpr(cur.SequenceID)
	length := seqLen(seq)

	if int(cur.ElementID) == length {
		if cur.ParentID == noParent {
			*tops = append(*tops, addElem(cur))
		} else if considerParent {
			parent := b.stack.Get(cur.ParentID)
			parent.ElementID++
			b.ExpandEquivalentStackElements(parent, tops, -1, considerParent)
		}
		return
	}

	current := b.g.GetExpr(seqElementID(cur.SequenceID, seq, cur.ElementID))
	id := addElem(cur)

	if current.Type == grammarir.RuleRef {
		b.ExpandEquivalentStackElements(
			StackElement{RuleID: current.Ref, SequenceID: unexpandedSequence, ElementID: 0, ParentID: id},
			tops, -1, false,
		)
	} else {
		*tops = append(*tops, id)
	}

	zeroWidthStar := current.Type == grammarir.CharacterClassStar && cur.LeftUTF8Bytes == 0
	zeroWidthRule := current.Type == grammarir.RuleRef && b.g.CanDeriveEmpty(current.Ref)
	if zeroWidthStar || zeroWidthRule {
		next := b.moveToNextPosition(cur)
		b.ExpandEquivalentStackElements(next, tops, -1, considerParent)
	}
}

// AcceptByte advances every live stack top by one byte, reporting
// whether the byte was accepted by at least one of them. On rejection
// the matcher state is left unchanged.
func (b *Base) AcceptByte(charValue byte) bool {
	prevTops := b.history.GetLatest()
	b.tmpTops = b.tmpTops[:0]

	for _, prevTop := range prevTops {
		cur := b.stack.Get(prevTop)
		if cur.isEndOfGrammar(b.g) {
			continue
		}
		if !b.CheckIfAccepted(cur, charValue) {
			continue
		}
		next := b.AdvanceStackElementWithChar(cur, charValue)
		if next == cur {
			b.ExpandEquivalentStackElements(next, &b.tmpTops, prevTop, true)
		} else {
			b.ExpandEquivalentStackElements(next, &b.tmpTops, -1, true)
		}
	}

	if len(b.tmpTops) == 0 {
		return false
	}
	b.bytes = append(b.bytes, charValue)
	b.history.PushHistory(b.tmpTops)
	return true
}

// CanReachEnd reports whether any current stack top is a complete
// match of the grammar.
func (b *Base) CanReachEnd() bool {
	for _, id := range b.history.GetLatest() {
		if b.stack.Get(id).isEndOfGrammar(b.g) {
			return true
		}
	}
	return false
}

// RollbackBytes undoes the last n accepted bytes.
func (b *Base) RollbackBytes(n int) {
	b.history.Rollback(n)
	if n > len(b.bytes) {
		n = len(b.bytes)
	}
	b.bytes = b.bytes[:len(b.bytes)-n]
}

// DiscardEarliestBytes drops the n oldest accepted bytes from history,
// for callers that never need to roll back past that point.
func (b *Base) DiscardEarliestBytes(n int) {
	b.history.DiscardEarliest(n)
}

// Fork returns an independent copy of b: its own PersistentStack (a
// snapshot of every frame allocated so far) and its own history/bytes,
// sharing only the immutable grammar and the tagDispatchCache (whose
// automatons are safe to share once built; see tagDispatchCache.get).
// Used by the mask-cache precompute sweep to probe hypothetical token
// continuations from a given state without mutating the matcher that
// state came from, and to let many such probes run concurrently.
func (b *Base) Fork() *Base {
	nodes := make([]StackElement, len(b.stack.nodes))
	copy(nodes, b.stack.nodes)
	nb := &Base{
		g:       b.g,
		stack:   &PersistentStack{nodes: nodes},
		history: NewStackTopsHistory(),
		tagDisp: b.tagDisp,
		bytes:   append([]byte(nil), b.bytes...),
	}
	latest := b.history.GetLatest()
	tops := make([]int32, len(latest))
	copy(tops, latest)
	nb.history.PushHistory(tops)
	return nb
}

// Grammar exposes the underlying grammar, used by callers that need to
// interpret StackElement positions returned from CurrentTops.
func (b *Base) Grammar() *grammarir.Grammar { return b.g }

// CurrentTops returns the live stack-top ids after the bytes accepted so
// far.
func (b *Base) CurrentTops() []int32 { return b.history.GetLatest() }

// Accept is an exported alias for AcceptByte, used by callers outside
// this package (the mask-cache precompute sweep) driving a Fork()ed
// probe byte by byte.
func (b *Base) Accept(c byte) bool { return b.AcceptByte(c) }

// HasActiveTagDispatch reports whether any current stack top sits inside
// an active TagDispatch scan. Full acceptance of such a state depends on
// bytes not yet observed, since the trigger window can still extend past
// what has been fed so far; the mask-cache precompute sweep treats a
// token landing here as uncertain rather than definitively accepted.
func (b *Base) HasActiveTagDispatch() bool {
	for _, id := range b.history.GetLatest() {
		elem := b.stack.Get(id)
		if elem.SequenceID == unexpandedSequence {
			continue
		}
		if b.g.GetExpr(elem.SequenceID).Type == grammarir.TagDispatch {
			return true
		}
	}
	return false
}

// PushInitialState seeds the matcher from the grammar root.
func (b *Base) PushInitialState() {
	init := StackElement{RuleID: b.g.RootID, SequenceID: unexpandedSequence, ElementID: 0, ParentID: noParent}
	b.tmpTops = b.tmpTops[:0]
	b.ExpandEquivalentStackElements(init, &b.tmpTops, -1, true)
	b.history.PushHistory(b.tmpTops)
}
