package redsift

import (
	"errors"
	"testing"
)

func TestNewSchema_Validation(t *testing.T) {
	cases := []struct {
		name string
		ns   string
		cols []Column
	}{
		{"empty namespace", "", []Column{{Name: "a", Type: Text, Indexed: true}}},
		{"empty column name", "u", []Column{{Name: "", Type: Text, Indexed: true}}},
		{"colon in name", "u", []Column{{Name: "a:b", Type: Text, Indexed: true}}},
		{"space in name", "u", []Column{{Name: "a b", Type: Text, Indexed: true}}},
		{"numeric name", "u", []Column{{Name: "123", Type: Text, Indexed: true}}},
		{"affix on numeric", "u", []Column{{Name: "age", Type: Numeric, Indexed: true, Prefix: true}}},
		{"no index declared", "u", []Column{{Name: "bio", Type: Text}}},
		{"duplicate column", "u", []Column{
			{Name: "bio", Type: Text, Indexed: true},
			{Name: "bio", Type: Text, Indexed: true},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSchema(tc.ns, tc.cols...); !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("expected ErrInvalidSchema, got %v", err)
			}
		})
	}
}

func TestNewSchema_Valid(t *testing.T) {
	s, err := NewSchema("user",
		Column{Name: "email", Type: String, Indexed: true, Suffix: true},
		Column{Name: "bio", Type: Text, Indexed: true},
		Column{Name: "age", Type: Numeric, Indexed: true},
	)
	if err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}

	if _, ok := s.Column("email"); !ok {
		t.Error("declared column not found")
	}
	if _, ok := s.Column("missing"); ok {
		t.Error("undeclared column reported as present")
	}

	cols := s.Columns()
	if len(cols) != 3 || cols[0].Name != "email" || cols[2].Name != "age" {
		t.Errorf("Columns() lost declaration order: %+v", cols)
	}
}

func TestSchema_KeyLayout(t *testing.T) {
	s := MustSchema("user",
		Column{Name: "email", Type: String, Indexed: true, Prefix: true, Suffix: true},
		Column{Name: "age", Type: Numeric, Indexed: true},
	)

	cases := map[string]string{
		s.wordKey("email", "alice"): "user:email:alice",
		s.numericKey("age"):         "user:age",
		s.prefixKey("email"):        "user:email:pre",
		s.suffixKey("email"):        "user:email:suf",
		s.registryKey():             "user::",
		s.entityKey("42"):           "user:42",
		s.idCounterKey():            "user::id",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("key = %q, want %q", got, want)
		}
	}
}

func TestSchema_TokensFor(t *testing.T) {
	s := MustSchema("user",
		Column{Name: "email", Type: String, Indexed: true},
		Column{Name: "bio", Type: Text, Indexed: true},
	)

	email, _ := s.Column("email")
	if got := s.tokensFor(email, "Alice@Gmail.com"); len(got) != 1 || got[0] != "alice@gmail.com" {
		t.Errorf("String column tokens = %v, want the whole lowercased value", got)
	}

	bio, _ := s.Column("bio")
	if got := s.tokensFor(bio, "Alice@Gmail.com"); len(got) != 3 {
		t.Errorf("Text column tokens = %v, want 3 words", got)
	}

	if got := s.tokensFor(bio, ""); got != nil {
		t.Errorf("empty value produced tokens: %v", got)
	}
}
