package conversation

import (
	"strings"
	"testing"
)

func TestSanitizeRemovesControlCharacters(t *testing.T) {
	in := "hello\x00wor\x1fld\x7f\nend"
	got := Sanitize(in)
	if got != "helloworldend" {
		t.Errorf("expected 'helloworldend', got %q", got)
	}
}

func TestSanitizeRemovesTemplateBreakers(t *testing.T) {
	in := "say `rm -rf` and \"quote\" plus back\\slash"
	got := Sanitize(in)
	for _, c := range []string{"`", `"`, `\`} {
		if strings.Contains(got, c) {
			t.Errorf("output still contains %q: %q", c, got)
		}
	}
	if got != "say rm -rf and quote plus backslash" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestSanitizeTruncates(t *testing.T) {
	in := strings.Repeat("A", 300)
	got := Sanitize(in)
	if len([]rune(got)) != 200 {
		t.Errorf("expected length 200, got %d", len([]rune(got)))
	}
}

func TestSanitizeEmpty(t *testing.T) {
	if got := Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"with\ncontrol\tchars",
		"`backticks` and \"quotes\" and \\slashes",
		strings.Repeat("x\x01", 500),
		"unicode: héllo wörld ✓",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSanitizeOutputNeverContainsForbidden(t *testing.T) {
	in := "a\x00b\x1fc\x7fd`e\"f\\g" + strings.Repeat("\x02", 50)
	got := Sanitize(in)
	for _, r := range got {
		if r < 0x20 || r == 0x7F || r == '`' || r == '"' || r == '\\' {
			t.Fatalf("forbidden rune %q in output %q", r, got)
		}
	}
}

func TestMaxMessages(t *testing.T) {
	tests := []struct {
		itype InteractionType
		want  int
	}{
		{TypePeerReview, 5},
		{TypeThreeSixty, 5},
		{TypeSelfReflection, 4},
		{TypePulseCheck, 3},
		{InteractionType("quarterly_review"), 4},
	}
	for _, tt := range tests {
		if got := MaxMessages(tt.itype); got != tt.want {
			t.Errorf("MaxMessages(%s) = %d, want %d", tt.itype, got, tt.want)
		}
	}
}

func TestClosingMessagesAreThemed(t *testing.T) {
	for _, itype := range []InteractionType{TypePeerReview, TypeThreeSixty, TypeSelfReflection, TypePulseCheck, InteractionType("unknown")} {
		if ClosingMessage(itype) == "" {
			t.Errorf("empty closing message for %s", itype)
		}
	}

	if !strings.Contains(strings.ToLower(ClosingMessage(TypePeerReview)), "feedback") {
		t.Error("peer_review closing message should mention feedback")
	}
	if !strings.Contains(strings.ToLower(ClosingMessage(TypeThreeSixty)), "feedback") {
		t.Error("three_sixty closing message should mention feedback")
	}
	if !strings.Contains(strings.ToLower(ClosingMessage(TypeSelfReflection)), "reflect") {
		t.Error("self_reflection closing message should mention reflection")
	}
	if !strings.Contains(strings.ToLower(ClosingMessage(TypePulseCheck)), "check") {
		t.Error("pulse_check closing message should mention checking in")
	}
}
