package plate

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ab-12 cd!", "AB 12 CD"},
		{"ab-12-cd", "AB 12 CD"},
		{"ab 12-cd ", "AB 12 CD"},
		{"  wx   99\t\nyz ", "WX 99 YZ"},
		{"", ""},
		{"---", ""},
		{"ÄBC-1", "BC 1"},
		{"straße 5", "STRASSE 5"},
		{"straße", "STRASSE"},
		{"ﬁ-12", "FI 12"},
		{"KA·AB·123", "KA AB 123"},
		{"AB12CD", "AB12CD"},
	}

	for _, tt := range tests {
		result := Normalize(tt.input)
		if result != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"ab-12 cd!", "  x  ", "ÄÖÜ 12", "a b", "1--2__3", "plate\r\nnumber", "ǅ9", "straße", "ﬁ-12",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_Alphabet(t *testing.T) {
	inputs := []string{
		"ab-12 cd!", " \t x  y ", "émile 42", "日本 品川 300", "a b", "ǅ9", " AB ",
	}

	for _, in := range inputs {
		out := Normalize(in)
		for _, r := range out {
			if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != ' ' {
				t.Errorf("Normalize(%q) = %q contains %q", in, out, r)
			}
		}
		if strings.Contains(out, "  ") {
			t.Errorf("Normalize(%q) = %q has repeated spaces", in, out)
		}
		if strings.TrimSpace(out) != out {
			t.Errorf("Normalize(%q) = %q has surrounding spaces", in, out)
		}
	}
}
