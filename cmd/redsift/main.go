// Redsift demo - secondary indexes and queries on plain Redis
//
// Seeds a small user namespace and runs a few representative queries so you
// can watch the index structures with redis-cli MONITOR or KEYS 'demo:*'.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adrianmcphee/redsift"
)

func main() {
	var (
		addr      = flag.String("addr", "", "Redis address (defaults to REDIS_ADDR or localhost:6379)")
		namespace = flag.String("namespace", "demo", "Namespace to seed and query")
		keep      = flag.Bool("keep", false, "Keep the seeded data instead of deleting it")
	)
	flag.Parse()

	log.SetFlags(log.Ltime)

	opts := redsift.RedisOptions()
	if *addr != "" {
		opts.Addr = *addr
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("cannot reach redis at %s: %v", opts.Addr, err)
	}

	schema := redsift.MustSchema(*namespace,
		redsift.Column{Name: "email", Type: redsift.String, Indexed: true, Prefix: true, Suffix: true},
		redsift.Column{Name: "bio", Type: redsift.Text, Indexed: true},
		redsift.Column{Name: "age", Type: redsift.Numeric, Indexed: true},
	)

	logger := redsift.NewStdLogger("redsift")
	users := redsift.NewModelWithObservability(rdb, schema, logger, redsift.NewInMemoryMetrics())

	seed := []map[string]string{
		{"email": "alice@gmail.com", "bio": "Distributed systems and sourdough", "age": "34"},
		{"email": "bob@gmail.com", "bio": "Bass guitar, systems programming", "age": "41"},
		{"email": "carol@yahoo.com", "bio": "Urban gardening", "age": "27"},
		{"email": "dave@example.org", "bio": "Systems thinking for gardens", "age": "55"},
	}
	var ids []string
	for _, fields := range seed {
		id, err := users.NextID(ctx)
		if err != nil {
			log.Fatalf("allocating id: %v", err)
		}
		if err := users.Save(ctx, id, fields); err != nil {
			log.Fatalf("saving %s: %v", fields["email"], err)
		}
		ids = append(ids, id)
	}
	fmt.Printf("seeded %d users into namespace %q\n\n", len(ids), *namespace)

	show := func(label string, q *redsift.Query) {
		matched, err := q.Execute(ctx)
		if err != nil {
			log.Fatalf("%s: %v", label, err)
		}
		fmt.Printf("%-48s -> %v\n", label, matched)
	}

	show(`bio contains "systems"`, users.Query().Filter("bio", "systems"))
	show(`email ends with "gmail.com"`, users.Query().EndsWith("email", "gmail.com"))
	show(`email like "*@gmail.com"`, users.Query().Like("email", "*@gmail.com"))
	show(`age in [30, 45]`, users.Query().Between("age", 30, 45))
	show(`systems folks aged 30-45, oldest first`, users.Query().
		Filter("bio", "systems").
		Between("age", 30, 45).
		OrderBy("-age"))

	total, err := users.Count(ctx)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	fmt.Printf("\nnamespace holds %d entities\n", total)

	if !*keep {
		for _, id := range ids {
			if err := users.Delete(ctx, id); err != nil {
				log.Fatalf("deleting %s: %v", id, err)
			}
		}
		rdb.Del(ctx, *namespace+"::id")
		fmt.Println("cleaned up seeded data (use -keep to retain it)")
	}
}
