package redsift

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestIntegration_RealRedis runs the full save/query lifecycle against a real
// Redis server instead of miniredis, exercising the server-side Lua paths on
// the actual implementation.
//
// Run with: go test -run TestIntegration_RealRedis -v
//
// Three test modes (in order of preference):
// 1. Manual Redis: Uses an existing server (set TEST_REDIS_ADDR=host:port)
// 2. Testcontainers: Auto-starts Redis via Docker (zero setup)
// 3. Skip: No Redis/Docker available
func TestIntegration_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()

	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		testAgainstRedis(t, ctx, addr)
		return
	}

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("Docker not available for Redis testcontainer: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}
	testAgainstRedis(t, ctx, endpoint)
}

func testAgainstRedis(t *testing.T, ctx context.Context, addr string) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis at %s not reachable: %v", addr, err)
	}

	// isolate this run from anything else on the server
	namespace := "redsift_it_" + NewID()[:8]
	schema := MustSchema(namespace,
		Column{Name: "email", Type: String, Indexed: true, Prefix: true, Suffix: true},
		Column{Name: "bio", Type: Text, Indexed: true},
		Column{Name: "age", Type: Numeric, Indexed: true},
	)
	m := NewModel(rdb, schema)

	seed := map[string]map[string]string{
		"1": {"email": "a@gmail.com", "bio": "distributed systems", "age": "25"},
		"2": {"email": "b@gmail.com", "bio": "systems music", "age": "40"},
		"3": {"email": "c@yahoo.com", "bio": "urban gardening", "age": "20"},
	}
	for id, fields := range seed {
		if err := m.Save(ctx, id, fields); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	defer func() {
		for id := range seed {
			if err := m.Delete(ctx, id); err != nil {
				t.Errorf("cleanup delete %s: %v", id, err)
			}
		}
		rdb.Del(ctx, schema.idCounterKey())
	}()

	ids, err := m.Query().EndsWith("email", "gmail.com").Execute(ctx)
	if err != nil {
		t.Fatalf("suffix search: %v", err)
	}
	assertSameIDs(t, ids, "1", "2")

	ids, err = m.Query().Filter("bio", "systems").Between("age", 18, 30).Execute(ctx)
	if err != nil {
		t.Fatalf("combined search: %v", err)
	}
	assertSameIDs(t, ids, "1")

	ids, err = m.Query().Like("email", "*@gmail.com").OrderBy("-age").Execute(ctx)
	if err != nil {
		t.Fatalf("pattern search: %v", err)
	}
	if len(ids) != 2 || ids[0] != "2" || ids[1] != "1" {
		t.Errorf("ordered pattern result = %v, want [2 1]", ids)
	}

	n, err := m.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	key, err := m.Query().Filter("bio", "systems").OrderBy("age").CachedResult(ctx, 30*time.Second)
	if err != nil {
		t.Fatalf("cached result: %v", err)
	}
	defer rdb.Del(ctx, key)

	cached, err := rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		t.Fatalf("reading retained key: %v", err)
	}
	if len(cached) != 2 || cached[0] != "1" || cached[1] != "2" {
		t.Errorf("retained result = %v, want [1 2]", cached)
	}
}
