package ebnf

import "testing"

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func assertKinds(t *testing.T, toks []Token, want ...TokenKind) {
	t.Helper()
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (got kinds %v)", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("token %d kind = %s, want %s", i, got[i], k)
		}
	}
}

func TestLexRetagsRuleNameBeforeAssign(t *testing.T) {
	toks, err := Lex(`root ::= "a"`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	assertKinds(t, toks, TokRuleName, TokAssign, TokStringLiteral, TokEOF)
}

func TestLexDoesNotRetagOtherIdentifiers(t *testing.T) {
	toks, err := Lex(`root ::= other`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	assertKinds(t, toks, TokRuleName, TokAssign, TokIdentifier, TokEOF)
}

func TestLexSkipsCommentsAndWhitespace(t *testing.T) {
	toks, err := Lex("root ::= \"a\" # trailing comment\n  | \"b\"")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	assertKinds(t, toks, TokRuleName, TokAssign, TokStringLiteral, TokPipe, TokStringLiteral, TokEOF)
}

func TestLexLookaheadOpenVsParen(t *testing.T) {
	toks, err := Lex(`root ::= "a" (= "b")`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	assertKinds(t, toks, TokRuleName, TokAssign, TokStringLiteral, TokLookaheadOpen, TokStringLiteral, TokRParen, TokEOF)
}

func TestLexIntegerLiteral(t *testing.T) {
	toks, err := Lex(`root ::= "a"{2,5}`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	assertKinds(t, toks, TokRuleName, TokAssign, TokStringLiteral, TokLBrace, TokIntegerLiteral, TokComma, TokIntegerLiteral, TokRBrace, TokEOF)
}

func TestLexIntegerLiteralOverflowRejected(t *testing.T) {
	_, err := Lex(`root ::= "a"{9999999999999999}`)
	if err == nil {
		t.Fatalf("expected an error for an integer literal exceeding the maximum")
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := Lex(`root ::= "\n\t\\\"\/\b\f«\U0001F600\x41"`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	str := toks[2].Str
	want := "\n\t\\\"/\b\f«\U0001F600A"
	if str != want {
		t.Fatalf("decoded string = %q, want %q", str, want)
	}
}

func TestLexUnknownEscapeRejected(t *testing.T) {
	_, err := Lex(`root ::= "\q"`)
	if err == nil {
		t.Fatalf("expected an error for an unknown escape sequence")
	}
}

func TestLexUnterminatedStringRejected(t *testing.T) {
	_, err := Lex(`root ::= "abc`)
	if err == nil {
		t.Fatalf("expected an error for an unterminated string literal")
	}
}

func TestLexCharClassSimpleRange(t *testing.T) {
	toks, err := Lex(`root ::= [a-z]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	cc := toks[2].Class
	if cc.Negated {
		t.Fatalf("expected [a-z] to not be negated")
	}
	if len(cc.Ranges) != 1 || cc.Ranges[0] != (RuneRange{'a', 'z'}) {
		t.Fatalf("expected a single range a-z, got %v", cc.Ranges)
	}
}

func TestLexCharClassNegated(t *testing.T) {
	toks, err := Lex(`root ::= [^a-z]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if !toks[2].Class.Negated {
		t.Fatalf("expected [^a-z] to be negated")
	}
}

func TestLexCharClassTrailingHyphenMustBeEscaped(t *testing.T) {
	// A '-' immediately before ']' does not start a range, but a literal
	// hyphen must still be escaped inside a class.
	if _, err := Lex(`root ::= [a-]`); err == nil {
		t.Fatalf("expected an error for an unescaped trailing '-' in a class")
	}
	toks, err := Lex(`root ::= [a\-]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	cc := toks[2].Class
	if len(cc.Ranges) != 2 {
		t.Fatalf("expected two single-rune ranges ('a' and '-'), got %v", cc.Ranges)
	}
	if cc.Ranges[0] != (RuneRange{'a', 'a'}) || cc.Ranges[1] != (RuneRange{'-', '-'}) {
		t.Fatalf("unexpected ranges: %v", cc.Ranges)
	}
}

func TestLexCharClassShorthands(t *testing.T) {
	toks, err := Lex(`root ::= [\d\s\w]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	cc := toks[2].Class
	wantLen := len(shorthandRanges['d']) + len(shorthandRanges['s']) + len(shorthandRanges['w'])
	if len(cc.Ranges) != wantLen {
		t.Fatalf("expected %d expanded ranges from \\d\\s\\w, got %d", wantLen, len(cc.Ranges))
	}
}

func TestLexCharClassNegatedShorthandComplements(t *testing.T) {
	// \D must expand to the complement of \d's range, not \d itself.
	toks, err := Lex(`root ::= [\D]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	cc := toks[2].Class
	for _, r := range cc.Ranges {
		if r.Low <= '5' && '5' <= r.High {
			t.Fatalf("expected \\D's expansion to exclude digits, but range %v covers '5'", r)
		}
	}
	var covers0x41 bool
	for _, r := range cc.Ranges {
		if r.Low <= 'A' && 'A' <= r.High {
			covers0x41 = true
		}
	}
	if !covers0x41 {
		t.Fatalf("expected \\D's expansion to cover non-digit characters like 'A'")
	}
}

func TestLexMultiByteCharClassRange(t *testing.T) {
	toks, err := Lex(`root ::= [α-ω]`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	cc := toks[2].Class
	if len(cc.Ranges) != 1 || cc.Ranges[0] != (RuneRange{0x03B1, 0x03C9}) {
		t.Fatalf("expected a single Greek-letter range, got %v", cc.Ranges)
	}
}
