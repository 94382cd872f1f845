// Package redsift provides secondary indexing and querying for entities
// stored in Redis, without any external search infrastructure.
//
// # Overview
//
// Redsift maintains inverted indexes as plain Redis structures and plans
// multi-predicate queries over them server-side. It provides:
//
//   - Word membership indexes with tokenized full-text columns
//   - Numeric range filters and ordering backed by sorted sets
//   - Prefix, suffix, and glob-pattern matching via scripted affix scans
//   - A cost-based planner that executes the cheapest predicate first
//   - Atomic per-entity index updates (readers never see a partial save)
//   - Full observability (Prometheus metrics + structured logging)
//
// # Quick Start
//
//	schema := redsift.MustSchema("user",
//		redsift.Column{Name: "email", Type: redsift.String, Indexed: true, Suffix: true},
//		redsift.Column{Name: "bio", Type: redsift.Text, Indexed: true},
//		redsift.Column{Name: "age", Type: redsift.Numeric, Indexed: true},
//	)
//
//	rdb := redis.NewClient(redsift.RedisOptions())
//	users := redsift.NewModel(rdb, schema)
//	ctx := context.Background()
//
//	id, _ := users.NextID(ctx)
//	users.Save(ctx, id, map[string]string{
//		"email": "alice@example.com",
//		"bio":   "gophers and distributed systems",
//		"age":   "34",
//	})
//
//	ids, _ := users.Query().
//		Filter("bio", "gophers").
//		Between("age", 30, 40).
//		OrderBy("age").
//		Execute(ctx)
//
// # Core Concepts
//
// Schema: declares a namespace and its indexed columns. The schema fixes the
// Redis key layout, which is stable and documented for external tooling.
//
// Model: stores entities as hashes and keeps all index structures in sync
// through a single atomic save script.
//
// GeneralIndex: the query planner/executor. Estimates every filter's cost in
// one pipelined round-trip, then folds filters cheapest-first into a
// temporary accumulator that is always cleaned up.
//
// IndexWriter: the low-level write path for callers whose entity data lives
// outside Redis but whose indexes live here.
//
// Production setup with observability:
//
//	logger, _ := redsift.NewProductionZapLogger()
//	metrics := redsift.NewPrometheusMetrics(nil) // default registry
//	users := redsift.NewModelWithObservability(rdb, schema, logger, metrics)
package redsift
