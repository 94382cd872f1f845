package redsift

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	time.Sleep(1 * time.Millisecond)
	id2 := NewID()

	if !IsValidID(id1) || !IsValidID(id2) {
		t.Fatalf("generated invalid ids: %s, %s", id1, id2)
	}
	if id1 == id2 {
		t.Error("duplicate ids generated")
	}

	// UUIDv7 is lexicographically sortable by creation time
	if id1 > id2 {
		t.Error("ids not time-ordered")
	}
	parsed, err := ParseID(id1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version() != 7 {
		t.Errorf("version = %d, want 7", parsed.Version())
	}
}

func TestIsValidID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{NewID(), true},
		{uuid.New().String(), true},
		{"invalid", false},
		{"", false},
		{"123", false},
	}
	for _, tc := range cases {
		if got := IsValidID(tc.id); got != tc.valid {
			t.Errorf("IsValidID(%q) = %v, want %v", tc.id, got, tc.valid)
		}
	}
}

func TestTempKey(t *testing.T) {
	a := tempKey("user")
	b := tempKey("user")

	if a == b {
		t.Error("temp keys collide")
	}
	if !strings.HasPrefix(a, "user:") {
		t.Errorf("temp key %q not scoped to namespace", a)
	}
	// the random part is a UUID, which never collides with index key shapes
	if !IsValidID(strings.TrimPrefix(a, "user:")) {
		t.Errorf("temp key suffix is not a UUID: %q", a)
	}
}
