package regexconv

import (
	"testing"

	"github.com/coregx/cfgmask/matcher"
)

func mustMatch(t *testing.T, pattern string, s string) bool {
	t.Helper()
	g, err := FromRegex(pattern)
	if err != nil {
		t.Fatalf("FromRegex(%q): %v", pattern, err)
	}
	m := matcher.NewMatcher(g, 0, nil)
	if !m.AcceptString([]byte(s)) {
		return false
	}
	return m.CanReachEnd()
}

func TestFromRegexLiteral(t *testing.T) {
	if !mustMatch(t, "abc", "abc") {
		t.Fatalf("expected \"abc\" to match literal pattern")
	}
	if mustMatch(t, "abc", "abd") {
		t.Fatalf("expected \"abd\" to reject literal pattern")
	}
}

func TestFromRegexAlternate(t *testing.T) {
	for _, s := range []string{"cat", "dog"} {
		if !mustMatch(t, "cat|dog", s) {
			t.Fatalf("expected %q to match cat|dog", s)
		}
	}
	if mustMatch(t, "cat|dog", "cow") {
		t.Fatalf("expected \"cow\" to reject cat|dog")
	}
}

func TestFromRegexStarPlusQuest(t *testing.T) {
	if !mustMatch(t, "ab*c", "ac") {
		t.Fatalf("expected \"ac\" to match ab*c")
	}
	if !mustMatch(t, "ab*c", "abbbc") {
		t.Fatalf("expected \"abbbc\" to match ab*c")
	}
	if mustMatch(t, "ab+c", "ac") {
		t.Fatalf("expected \"ac\" to reject ab+c")
	}
	if !mustMatch(t, "ab?c", "ac") {
		t.Fatalf("expected \"ac\" to match ab?c")
	}
	if !mustMatch(t, "ab?c", "abc") {
		t.Fatalf("expected \"abc\" to match ab?c")
	}
}

func TestFromRegexCharClass(t *testing.T) {
	if !mustMatch(t, "[a-c]+", "abcabc") {
		t.Fatalf("expected \"abcabc\" to match [a-c]+")
	}
	if mustMatch(t, "[a-c]+", "abcd") {
		t.Fatalf("expected \"abcd\" to reject [a-c]+")
	}
}

func TestFromRegexRepeatBounds(t *testing.T) {
	if mustMatch(t, "a{2,3}", "a") {
		t.Fatalf("expected \"a\" to reject a{2,3}")
	}
	if !mustMatch(t, "a{2,3}", "aa") {
		t.Fatalf("expected \"aa\" to match a{2,3}")
	}
	if !mustMatch(t, "a{2,3}", "aaa") {
		t.Fatalf("expected \"aaa\" to match a{2,3}")
	}
	if mustMatch(t, "a{2,3}", "aaaa") {
		t.Fatalf("expected \"aaaa\" to reject a{2,3}")
	}
}

func TestFromRegexAnchorsAreNoOps(t *testing.T) {
	if !mustMatch(t, "^abc$", "abc") {
		t.Fatalf("expected anchored pattern to match its literal body")
	}
}

func TestFromRegexFoldCase(t *testing.T) {
	if !mustMatch(t, "(?i)abc", "ABC") {
		t.Fatalf("expected case-insensitive pattern to match upper-case input")
	}
	if !mustMatch(t, "(?i)abc", "aBc") {
		t.Fatalf("expected case-insensitive pattern to match mixed-case input")
	}
}

func TestFromRegexRejectsInvalidPattern(t *testing.T) {
	if _, err := FromRegex("a("); err == nil {
		t.Fatalf("expected an error for an unbalanced pattern")
	}
}
