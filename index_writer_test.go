package redsift

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func assertSameIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	if len(g) != len(w) {
		t.Fatalf("got ids %v, want %v", got, want)
	}
	for i := range g {
		if g[i] != w[i] {
			t.Fatalf("got ids %v, want %v", got, want)
		}
	}
}

func TestIndexWriter_AddAndRemoveWords(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := testSchema(t)
	w := NewIndexWriter(rdb, s)
	ctx := context.Background()

	if err := w.Index(ctx, "1", "bio", "", "go and redis"); err != nil {
		t.Fatalf("initial index: %v", err)
	}

	members, err := rdb.SMembers(ctx, "test:bio:go").Result()
	if err != nil || len(members) != 1 || members[0] != "1" {
		t.Fatalf("word set after index = %v (%v)", members, err)
	}

	// update: "redis" survives, "go" goes away, "rust" appears
	if err := w.Index(ctx, "1", "bio", "go and redis", "rust and redis"); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	if n, _ := rdb.SCard(ctx, "test:bio:go").Result(); n != 0 {
		t.Error("stale word still indexed after value change")
	}
	if ok, _ := rdb.SIsMember(ctx, "test:bio:rust", "1").Result(); !ok {
		t.Error("new word not indexed")
	}
	if ok, _ := rdb.SIsMember(ctx, "test:bio:redis", "1").Result(); !ok {
		t.Error("unchanged word lost")
	}
}

func TestIndexWriter_Idempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := testSchema(t)
	w := NewIndexWriter(rdb, s)
	ctx := context.Background()

	if err := w.Index(ctx, "1", "bio", "", "go redis"); err != nil {
		t.Fatalf("index: %v", err)
	}
	before := mr.Keys()
	sort.Strings(before)

	// same tokenization again, including a reordered variant
	for _, v := range []string{"go redis", "redis GO", "go, redis!"} {
		if err := w.Index(ctx, "1", "bio", "go redis", v); err != nil {
			t.Fatalf("reindex %q: %v", v, err)
		}
	}

	after := mr.Keys()
	sort.Strings(after)
	if len(before) != len(after) {
		t.Fatalf("idempotent reindex changed keys: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("idempotent reindex changed keys: %v -> %v", before, after)
		}
	}
}

func TestIndexWriter_Numeric(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := testSchema(t)
	w := NewIndexWriter(rdb, s)
	ctx := context.Background()

	if err := w.Index(ctx, "1", "age", "", "25"); err != nil {
		t.Fatalf("index: %v", err)
	}
	if score, _ := rdb.ZScore(ctx, "test:age", "1").Result(); score != 25 {
		t.Errorf("score = %v, want 25", score)
	}

	// replaces prior score
	if err := w.Index(ctx, "1", "age", "25", "26"); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if score, _ := rdb.ZScore(ctx, "test:age", "1").Result(); score != 26 {
		t.Errorf("score after update = %v, want 26", score)
	}

	// empty value removes
	if err := w.Index(ctx, "1", "age", "26", ""); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := rdb.ZCard(ctx, "test:age").Result(); n != 0 {
		t.Error("entity still scored after removal")
	}

	if err := w.Index(ctx, "1", "age", "", "not-a-number"); !errors.Is(err, ErrInvalidData) {
		t.Errorf("bad number error = %v, want ErrInvalidData", err)
	}
}

func TestIndexWriter_AffixMembers(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := testSchema(t)
	w := NewIndexWriter(rdb, s)
	ctx := context.Background()

	if err := w.Index(ctx, "7", "email", "", "a@gmail.com"); err != nil {
		t.Fatalf("index: %v", err)
	}

	// prefix member is word\x01id at score 0
	pre, err := rdb.ZRangeWithScores(ctx, "test:email:pre", 0, -1).Result()
	if err != nil || len(pre) != 1 {
		t.Fatalf("prefix structure = %v (%v)", pre, err)
	}
	if pre[0].Member != "a@gmail.com\x017" || pre[0].Score != 0 {
		t.Errorf("prefix member = %+v, want a@gmail.com\\x017 at score 0", pre[0])
	}

	// suffix member stores the reversed word
	suf, err := rdb.ZRange(ctx, "test:email:suf", 0, -1).Result()
	if err != nil || len(suf) != 1 {
		t.Fatalf("suffix structure = %v (%v)", suf, err)
	}
	if suf[0] != reverseString("a@gmail.com")+"\x017" {
		t.Errorf("suffix member = %q", suf[0])
	}

	// removal clears affix entries
	if err := w.Remove(ctx, "7", "email", "a@gmail.com"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := rdb.ZCard(ctx, "test:email:pre").Result(); n != 0 {
		t.Error("prefix entry survived removal")
	}
	if n, _ := rdb.ZCard(ctx, "test:email:suf").Result(); n != 0 {
		t.Error("suffix entry survived removal")
	}
}

func TestIndexWriter_UnknownColumn(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewIndexWriter(rdb, testSchema(t))

	err := w.Index(context.Background(), "1", "zipcode", "", "12345")
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("error = %v, want ErrUnknownColumn", err)
	}
}

func TestDiffTokens(t *testing.T) {
	removed, added := diffTokens([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	assertSameIDs(t, removed, "a")
	assertSameIDs(t, added, "d")

	removed, added = diffTokens(nil, []string{"x"})
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
	assertSameIDs(t, added, "x")

	removed, added = diffTokens([]string{"x"}, []string{"x"})
	if len(removed) != 0 || len(added) != 0 {
		t.Errorf("identical lists produced diff: -%v +%v", removed, added)
	}
}
