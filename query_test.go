package redsift

import (
	"context"
	"testing"
	"time"
)

func TestQuery_Fluent(t *testing.T) {
	_, m := newUserModel(t)
	ctx := context.Background()

	ids, err := m.Query().
		Filter("bio", "systems").
		Between("age", 18, 30).
		Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	assertSameIDs(t, ids, "1")

	ids, err = m.Query().
		EndsWith("email", "gmail.com").
		OrderBy("-age").
		Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(ids) != 2 || ids[0] != "2" || ids[1] != "1" {
		t.Errorf("ordered ids = %v, want [2 1]", ids)
	}
}

func TestQuery_Immutable(t *testing.T) {
	_, m := newUserModel(t)
	ctx := context.Background()

	base := m.Query().Filter("bio", "systems")
	young := base.AtMost("age", 30)
	older := base.AtLeast("age", 30)

	ids, err := young.Execute(ctx)
	if err != nil {
		t.Fatalf("young: %v", err)
	}
	assertSameIDs(t, ids, "1")

	ids, err = older.Execute(ctx)
	if err != nil {
		t.Fatalf("older: %v", err)
	}
	assertSameIDs(t, ids, "2")

	// the shared base is untouched by its branches
	ids, err = base.Execute(ctx)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	assertSameIDs(t, ids, "1", "2")
}

func TestQuery_FilterMultipleWordsIsOrGroup(t *testing.T) {
	_, m := newUserModel(t)

	ids, err := m.Query().Filter("bio", "gardening", "music").Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	assertSameIDs(t, ids, "2", "3")
}

func TestQuery_First(t *testing.T) {
	_, m := newUserModel(t)
	ctx := context.Background()

	id, err := m.Query().Filter("bio", "systems").OrderBy("age").First(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if id != "1" {
		t.Errorf("first = %q, want 1", id)
	}

	if _, err := m.Query().Filter("bio", "unheard").First(ctx); !IsNotFound(err) {
		t.Errorf("no-match error = %v, want ErrNotFound", err)
	}
}

func TestQuery_CountIgnoresLimit(t *testing.T) {
	_, m := newUserModel(t)

	n, err := m.Query().Filter("bio", "systems").Limit(0, 1).Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestQuery_Fetch(t *testing.T) {
	_, m := newUserModel(t)

	entities, err := m.Query().EndsWith("email", "yahoo.com").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(entities) != 1 || entities[0]["email"] != "c@yahoo.com" {
		t.Errorf("fetched = %v", entities)
	}
}

func TestQuery_WithoutModel(t *testing.T) {
	_, m := newUserModel(t)
	ctx := context.Background()

	q := NewQuery(m.Engine()).Filter("bio", "systems")
	ids, err := q.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	assertSameIDs(t, ids, "1", "2")

	// Fetch needs entity storage, which a bare engine query does not have
	if _, err := q.Fetch(ctx); err == nil {
		t.Error("Fetch without a model succeeded")
	}
}

func TestQuery_CachedResult(t *testing.T) {
	_, m := newUserModel(t)
	ctx := context.Background()

	key, err := m.Query().Filter("bio", "systems").OrderBy("age").CachedResult(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("cached result: %v", err)
	}
	ids, err := m.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		t.Fatalf("reading retained key: %v", err)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Errorf("retained result = %v, want [1 2]", ids)
	}
}
