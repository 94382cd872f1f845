package redsift

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// GeneralIndex plans and executes multi-predicate searches over a schema's
// index structures.
//
// Text filters resolve to membership sets, numeric ranges to the column's
// score zset, and affix filters to the :pre/:suf structures. A search
// estimates the cost of every filter in one pipelined round-trip, orders the
// filters from cheapest to most expensive, and folds them into a single
// temporary accumulator zset: the first filter populates it (a union), every
// later filter intersects with it. Numeric ranges additionally trim the
// accumulator by score after intersecting, because the intersection keeps
// membership but the window must be enforced against the intersected scores.
//
// Every search allocates its own uniquely named accumulator and deletes it
// before returning; a safety TTL covers the case where the connection dies
// mid-flight. Concurrent searches are fully independent.
type GeneralIndex struct {
	rdb      *redis.Client
	schema   *Schema
	logger   Logger
	metrics  Metrics
	config   EngineConfig
	profiler *SearchProfiler
}

// NewGeneralIndex creates a query engine for the schema with no-op logger
// and metrics.
func NewGeneralIndex(rdb *redis.Client, schema *Schema) *GeneralIndex {
	return &GeneralIndex{
		rdb:     rdb,
		schema:  schema,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
		config:  DefaultEngineConfig(),
	}
}

// NewGeneralIndexWithConfig creates a query engine with custom tunables.
func NewGeneralIndexWithConfig(rdb *redis.Client, schema *Schema, config EngineConfig) (*GeneralIndex, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	g := NewGeneralIndex(rdb, schema)
	g.config = config
	return g, nil
}

// NewGeneralIndexWithObservability creates a query engine with logging and metrics
func NewGeneralIndexWithObservability(rdb *redis.Client, schema *Schema, logger Logger, metrics Metrics) *GeneralIndex {
	g := NewGeneralIndex(rdb, schema)
	g.logger = logger
	g.metrics = metrics
	return g
}

// Schema returns the schema this engine plans against.
func (g *GeneralIndex) Schema() *Schema {
	return g.schema
}

// SetProfiler attaches a search profiler. Pass nil to detach.
func (g *GeneralIndex) SetProfiler(p *SearchProfiler) {
	g.profiler = p
}

func (g *GeneralIndex) startProfile() *SearchProfile {
	if g.profiler == nil {
		return nil
	}
	return g.profiler.start(g.schema.Namespace)
}

func (g *GeneralIndex) recordProfile(prof *SearchProfile) {
	if g.profiler == nil {
		return
	}
	g.profiler.record(prof)
}

// searchState carries one search's accumulator through filter execution.
//
// ZUNIONSTORE and ZINTERSTORE replace their destination key and discard any
// TTL on it, so every accumulator mutation runs in a MULTI/EXEC batch
// together with a TTL refresh. The safety net holds across the whole search,
// never just at creation; explicit deletion remains the primary cleanup path.
type searchState struct {
	rdb    *redis.Client
	schema *Schema
	config EngineConfig
	temp   string
}

// step runs one accumulator mutation and re-arms the safety TTL in a single
// MULTI/EXEC batch.
func (e *searchState) step(ctx context.Context, queue func(pipe redis.Pipeliner)) error {
	pipe := e.rdb.TxPipeline()
	queue(pipe)
	pipe.Expire(ctx, e.temp, e.config.TempKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// mergeKeys merges word membership sets into the accumulator: a union when
// the accumulator is empty, otherwise a union of the group intersected with
// the accumulator.
func (e *searchState) mergeKeys(ctx context.Context, first bool, keys []string) error {
	zeros := make([]float64, len(keys))

	if first {
		return e.step(ctx, func(pipe redis.Pipeliner) {
			pipe.ZUnionStore(ctx, e.temp, &redis.ZStore{Keys: keys, Weights: zeros})
		})
	}

	if len(keys) == 1 {
		return e.step(ctx, func(pipe redis.Pipeliner) {
			pipe.ZInterStore(ctx, e.temp, &redis.ZStore{
				Keys:    []string{e.temp, keys[0]},
				Weights: []float64{0, 0},
			})
		})
	}

	// OR group against an existing accumulator: union the group into a
	// scratch zset, intersect, drop the scratch. The scratch gets its TTL in
	// the same batch that creates it.
	scratch := tempKey(e.schema.Namespace)
	pipe := e.rdb.TxPipeline()
	pipe.ZUnionStore(ctx, scratch, &redis.ZStore{Keys: keys, Weights: zeros})
	pipe.Expire(ctx, scratch, e.config.TempKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	err := e.step(ctx, func(pipe redis.Pipeliner) {
		pipe.ZInterStore(ctx, e.temp, &redis.ZStore{
			Keys:    []string{e.temp, scratch},
			Weights: []float64{0, 0},
		})
	})
	if delErr := e.rdb.Del(ctx, scratch).Err(); err == nil {
		err = delErr
	}
	return err
}

// intersectScored intersects the accumulator with a score zset, keeping the
// zset's scores so a range filter can trim by them afterwards.
func (e *searchState) intersectScored(ctx context.Context, first bool, key string) error {
	if first {
		return e.step(ctx, func(pipe redis.Pipeliner) {
			pipe.ZUnionStore(ctx, e.temp, &redis.ZStore{
				Keys:    []string{key},
				Weights: []float64{1},
			})
		})
	}
	return e.step(ctx, func(pipe redis.Pipeliner) {
		pipe.ZInterStore(ctx, e.temp, &redis.ZStore{
			Keys:    []string{e.temp, key},
			Weights: []float64{0, 1},
		})
	})
}

// subrange populates the accumulator directly from a score window. The
// script arms the TTL itself, in the same atomic call.
func (e *searchState) subrange(ctx context.Context, key, lo, hi string) error {
	return subrangeScript.Run(ctx, e.rdb, []string{e.temp, key},
		lo, hi, e.config.ScanBatch, e.config.TempKeyTTL.Milliseconds()).Err()
}

// affixMatch runs the scripted affix scan against the accumulator. As with
// subrange, the script arms the TTL atomically.
func (e *searchState) affixMatch(ctx context.Context, indexKey, search, luaPattern string, first bool) error {
	scratch := tempKey(e.schema.Namespace)
	isFirst := 0
	if first {
		isFirst = 1
	}
	return affixMatchScript.Run(ctx, e.rdb,
		[]string{e.temp, scratch, indexKey},
		search, luaPattern, isFirst, e.config.ScanBatch, e.config.TempKeyTTL.Milliseconds(),
	).Err()
}

// prepare validates the filters, estimates their cost in one pipelined
// round-trip, and executes them cheapest-first into a fresh accumulator.
// The caller owns the returned key and must delete or expire it.
func (g *GeneralIndex) prepare(ctx context.Context, filters []Filter, prof *SearchProfile) (string, error) {
	if len(filters) == 0 {
		return "", ErrEmptyQuery
	}
	for _, f := range filters {
		if err := f.validate(g.schema); err != nil {
			return "", err
		}
	}

	// One round-trip for all cost estimates. The estimator goes out as
	// EVALSHA; on the first search (or after a flushed script cache) the
	// whole pipeline fails with NOSCRIPT, so load the script and estimate
	// again.
	start := time.Now()
	runEstimates := func() ([]*redis.Cmd, error) {
		pipe := g.rdb.Pipeline()
		cmds := make([]*redis.Cmd, len(filters))
		for i, f := range filters {
			cmds[i] = f.queueEstimate(ctx, pipe, g.schema)
		}
		_, err := pipe.Exec(ctx)
		return cmds, err
	}
	cmds, err := runEstimates()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		if loadErr := estimateWorkScript.Load(ctx, g.rdb).Err(); loadErr != nil {
			return "", loadErr
		}
		cmds, err = runEstimates()
	}
	if err != nil {
		return "", err
	}
	g.metrics.Timing(MetricEstimateDuration, time.Since(start), "namespace", g.schema.Namespace)

	type ranked struct {
		filter   Filter
		estimate int64
	}
	order := make([]ranked, len(filters))
	for i, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil {
			return "", err
		}
		order[i] = ranked{filter: filters[i], estimate: n}
	}

	// Smallest first, so each successive intersection operates on the
	// smallest possible accumulator. Negative estimates are subrange
	// signals; their magnitude is the cost.
	sort.SliceStable(order, func(i, j int) bool {
		return abs64(order[i].estimate) < abs64(order[j].estimate)
	})

	if prof != nil {
		for _, r := range order {
			prof.Columns = append(prof.Columns, r.filter.Column())
			prof.Estimates = append(prof.Estimates, r.estimate)
		}
	}

	e := &searchState{
		rdb:    g.rdb,
		schema: g.schema,
		config: g.config,
		temp:   tempKey(g.schema.Namespace),
	}

	for i, r := range order {
		if err := r.filter.apply(ctx, e, i == 0, r.estimate); err != nil {
			// Best-effort cleanup; the safety TTL covers a dead connection.
			g.rdb.Del(context.WithoutCancel(ctx), e.temp)
			return "", err
		}
	}

	return e.temp, nil
}

// applyOrder intersects the accumulator with the ordering column's score
// zset so the final read comes back in score order.
func (g *GeneralIndex) applyOrder(ctx context.Context, temp, orderBy string) error {
	desc := strings.HasPrefix(orderBy, "-")
	name := strings.TrimPrefix(orderBy, "-")

	col, ok := g.schema.Column(name)
	if !ok {
		return unknownColumn(name, "order_by")
	}
	if col.Type != Numeric || !col.Indexed {
		return invalidFilter(name, "order_by requires an indexed Numeric column")
	}

	weight := 1.0
	if desc {
		weight = -1.0
	}
	// the interstore replaces temp, which drops its TTL; re-arm it
	pipe := g.rdb.TxPipeline()
	pipe.ZInterStore(ctx, temp, &redis.ZStore{
		Keys:    []string{temp, g.schema.numericKey(name)},
		Weights: []float64{0, weight},
	})
	pipe.Expire(ctx, temp, g.config.TempKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Search returns the identifiers of entities matching every filter,
// windowed by offset and count (count <= 0 means no limit).
//
// orderBy names a Numeric indexed column; prefix it with "-" for descending
// order. When orderBy is empty, results come back in the accumulator's
// native member order after the last filter: for numeric filters that is
// score order, for text filters it is the store's lexical-by-id order.
// Treat the unordered case as an implementation detail, not a guarantee.
//
// The temporary result structure is always deleted before returning; use
// CachedSearch to retain it for pagination instead.
func (g *GeneralIndex) Search(ctx context.Context, filters []Filter, orderBy string, offset, count int) ([]string, error) {
	start := time.Now()
	prof := g.startProfile()
	ids, err := g.search(ctx, filters, orderBy, offset, count, prof)
	g.metrics.Timing(MetricSearchDuration, time.Since(start), "namespace", g.schema.Namespace)
	if prof != nil {
		prof.ResultCount = len(ids)
		prof.Error = err
		g.recordProfile(prof)
	}
	if err != nil {
		g.metrics.Increment(MetricSearchError, "namespace", g.schema.Namespace)
		return nil, err
	}
	g.metrics.Histogram(MetricSearchResults, float64(len(ids)), "namespace", g.schema.Namespace)
	g.logger.Debug("search executed",
		"namespace", g.schema.Namespace,
		"filters", len(filters),
		"results", len(ids),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ids, nil
}

func (g *GeneralIndex) search(ctx context.Context, filters []Filter, orderBy string, offset, count int, prof *SearchProfile) ([]string, error) {
	temp, err := g.prepare(ctx, filters, prof)
	if err != nil {
		return nil, err
	}

	if orderBy != "" {
		if err := g.applyOrder(ctx, temp, orderBy); err != nil {
			g.rdb.Del(context.WithoutCancel(ctx), temp)
			return nil, err
		}
	}

	if offset < 0 {
		offset = 0
	}
	end := int64(-1)
	if count > 0 {
		end = int64(offset + count - 1)
	}

	// Fetch the window and drop the accumulator in one round-trip.
	pipe := g.rdb.TxPipeline()
	rangeCmd := pipe.ZRange(ctx, temp, int64(offset), end)
	pipe.Del(ctx, temp)
	if _, err := pipe.Exec(ctx); err != nil {
		g.rdb.Del(context.WithoutCancel(ctx), temp)
		return nil, err
	}
	return rangeCmd.Val(), nil
}

// CachedSearch executes a search but retains the full result structure under
// an expiring key instead of reading and deleting it. The returned key holds
// the complete ordered result as a zset for timeout seconds, enabling
// pagination with ZRANGE without recomputation. Any caller that knows the
// key may read it; the data is a snapshot and goes stale if entities change.
func (g *GeneralIndex) CachedSearch(ctx context.Context, filters []Filter, orderBy string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return "", WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "timeout",
			"reason": "must be positive",
		})
	}

	prof := g.startProfile()
	if prof != nil {
		prof.Cached = true
		defer func() { g.recordProfile(prof) }()
	}

	temp, err := g.prepare(ctx, filters, prof)
	if err != nil {
		if prof != nil {
			prof.Error = err
		}
		return "", err
	}

	if orderBy != "" {
		if err := g.applyOrder(ctx, temp, orderBy); err != nil {
			g.rdb.Del(context.WithoutCancel(ctx), temp)
			if prof != nil {
				prof.Error = err
			}
			return "", err
		}
	}

	if err := g.rdb.Expire(ctx, temp, timeout).Err(); err != nil {
		g.rdb.Del(context.WithoutCancel(ctx), temp)
		if prof != nil {
			prof.Error = err
		}
		return "", err
	}
	g.metrics.Increment(MetricCachedResults, "namespace", g.schema.Namespace)
	return temp, nil
}

// Count returns how many entities match every filter.
//
// With no filters at all, Count falls back to the cardinality of the
// namespace registry, which reflects entities written through Model.Save.
// That fast path never scans the namespace but is only as accurate as the
// registry: entities indexed through the low-level IndexWriter alone are
// not counted.
func (g *GeneralIndex) Count(ctx context.Context, filters []Filter) (int64, error) {
	start := time.Now()
	defer func() {
		g.metrics.Timing(MetricCountDuration, time.Since(start), "namespace", g.schema.Namespace)
	}()

	if len(filters) == 0 {
		return g.rdb.HLen(ctx, g.schema.registryKey()).Result()
	}

	temp, err := g.prepare(ctx, filters, nil)
	if err != nil {
		return 0, err
	}

	pipe := g.rdb.TxPipeline()
	cardCmd := pipe.ZCard(ctx, temp)
	pipe.Del(ctx, temp)
	if _, err := pipe.Exec(ctx); err != nil {
		g.rdb.Del(context.WithoutCancel(ctx), temp)
		return 0, err
	}
	return cardCmd.Val(), nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
