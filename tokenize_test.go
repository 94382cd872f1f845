package redsift

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "hello world", []string{"hello", "world"}},
		{"lowercases", "Hello WORLD", []string{"hello", "world"}},
		{"punctuation splits", "a@gmail.com", []string{"a", "com", "gmail"}},
		{"dedupes", "go go go", []string{"go"}},
		{"digits kept", "room 42b", []string{"42b", "room"}},
		{"unicode letters", "Crème brûlée", []string{"brûlée", "crème"}},
		{"empty", "", nil},
		{"only separators", "--- !!!", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	a := Tokenize("the quick brown fox, the lazy dog")
	b := Tokenize("the quick brown fox, the lazy dog")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same input tokenized differently: %v vs %v", a, b)
	}
}

func TestReverseString(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"a":     "a",
		"abc":   "cba",
		"héllo": "olléh",
	}
	for in, want := range cases {
		if got := reverseString(in); got != want {
			t.Errorf("reverseString(%q) = %q, want %q", in, got, want)
		}
	}
	if got := reverseString(reverseString("gmail.com")); got != "gmail.com" {
		t.Errorf("double reverse changed the string: %q", got)
	}
}

func TestNextPrefix(t *testing.T) {
	cases := map[string]string{
		"a":          "b",
		"abc":        "abd",
		"ab\xff":     "ac",
		"\xff\xff":   "",
		"":           "",
		"gmail":      "gmaim",
	}
	for in, want := range cases {
		if got := nextPrefix(in); got != want {
			t.Errorf("nextPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(5, false); got != "5" {
		t.Errorf("inclusive bound = %q, want %q", got, "5")
	}
	if got := formatScore(5, true); got != "(5" {
		t.Errorf("exclusive bound = %q, want %q", got, "(5")
	}
	if got := formatScore(2.5, false); got != "2.5" {
		t.Errorf("fractional bound = %q, want %q", got, "2.5")
	}

	v := 10.0
	if got := scoreBound(&v, false, "-inf"); got != "10" {
		t.Errorf("bounded endpoint = %q, want %q", got, "10")
	}
	if got := scoreBound(nil, false, "-inf"); got != "-inf" {
		t.Errorf("open endpoint = %q, want %q", got, "-inf")
	}
}
