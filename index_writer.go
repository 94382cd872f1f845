package redsift

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// IndexWriter maintains a schema's index structures directly, one column at a
// time. It is the low-level write path: callers supply the previous and new
// value for a column and the writer issues exactly the membership changes the
// diff implies, in one atomic batch. Model builds on the registry-backed save
// script instead and should be preferred when entities are stored here too;
// use IndexWriter when entity data lives elsewhere and only the index does
// not.
type IndexWriter struct {
	rdb     *redis.Client
	schema  *Schema
	logger  Logger
	metrics Metrics
}

// NewIndexWriter creates a writer for the schema's index structures.
func NewIndexWriter(rdb *redis.Client, schema *Schema) *IndexWriter {
	return &IndexWriter{
		rdb:     rdb,
		schema:  schema,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// NewIndexWriterWithObservability creates a writer with logging and metrics
func NewIndexWriterWithObservability(rdb *redis.Client, schema *Schema, logger Logger, metrics Metrics) *IndexWriter {
	w := NewIndexWriter(rdb, schema)
	w.logger = logger
	w.metrics = metrics
	return w
}

// Index reconciles one column of one entity from oldValue to newValue.
//
// For Text and String columns the values are tokenized and only the
// difference is written: words present in both tokenizations are untouched,
// so re-indexing an unchanged value is a no-op. For Numeric columns newValue
// replaces any prior score; an empty newValue removes the entity from the
// column's zset. All updates go out as a single atomic batch, so a reader
// never sees the entity in some of the column's structures but not others.
func (w *IndexWriter) Index(ctx context.Context, id, column, oldValue, newValue string) error {
	c, ok := w.schema.Column(column)
	if !ok {
		return unknownColumn(column, "index")
	}

	var err error
	if c.Type == Numeric {
		err = w.indexNumeric(ctx, id, c, newValue)
	} else {
		err = w.indexWords(ctx, id, c, oldValue, newValue)
	}
	if err != nil {
		w.metrics.Increment(MetricIndexErrors, "namespace", w.schema.Namespace, "column", column)
		return err
	}
	w.metrics.Increment(MetricIndexUpdate, "namespace", w.schema.Namespace, "column", column)
	return nil
}

// Remove drops the entity from every structure implied by the column's
// current value. Equivalent to Index with an empty new value.
func (w *IndexWriter) Remove(ctx context.Context, id, column, oldValue string) error {
	if err := w.Index(ctx, id, column, oldValue, ""); err != nil {
		return err
	}
	w.metrics.Increment(MetricIndexRemove, "namespace", w.schema.Namespace, "column", column)
	return nil
}

func (w *IndexWriter) indexNumeric(ctx context.Context, id string, c Column, newValue string) error {
	key := w.schema.numericKey(c.Name)
	if newValue == "" {
		return w.rdb.ZRem(ctx, key, id).Err()
	}
	score, err := strconv.ParseFloat(newValue, 64)
	if err != nil {
		return WithContext(ErrInvalidData, map[string]interface{}{
			"column": c.Name,
			"value":  newValue,
			"reason": "not a number",
		})
	}
	return w.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: id}).Err()
}

func (w *IndexWriter) indexWords(ctx context.Context, id string, c Column, oldValue, newValue string) error {
	removed, added := diffTokens(w.schema.tokensFor(c, oldValue), w.schema.tokensFor(c, newValue))
	if len(removed) == 0 && len(added) == 0 {
		return nil
	}

	pipe := w.rdb.TxPipeline()
	for _, word := range removed {
		if c.Indexed {
			pipe.SRem(ctx, w.schema.wordKey(c.Name, word), id)
		}
		if c.Prefix {
			pipe.ZRem(ctx, w.schema.prefixKey(c.Name), word+affixSep+id)
		}
		if c.Suffix {
			pipe.ZRem(ctx, w.schema.suffixKey(c.Name), reverseString(word)+affixSep+id)
		}
	}
	for _, word := range added {
		if c.Indexed {
			pipe.SAdd(ctx, w.schema.wordKey(c.Name, word), id)
		}
		if c.Prefix {
			pipe.ZAdd(ctx, w.schema.prefixKey(c.Name), redis.Z{Member: word + affixSep + id})
		}
		if c.Suffix {
			pipe.ZAdd(ctx, w.schema.suffixKey(c.Name), redis.Z{Member: reverseString(word) + affixSep + id})
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}

	w.logger.Debug("index updated",
		"namespace", w.schema.Namespace,
		"column", c.Name,
		"entity", id,
		"removed", len(removed),
		"added", len(added),
	)
	return nil
}

// diffTokens splits two sorted token lists into the words only in old
// (removed) and only in new (added).
func diffTokens(old, new []string) (removed, added []string) {
	i, j := 0, 0
	for i < len(old) && j < len(new) {
		switch {
		case old[i] == new[j]:
			i++
			j++
		case old[i] < new[j]:
			removed = append(removed, old[i])
			i++
		default:
			added = append(added, new[j])
			j++
		}
	}
	removed = append(removed, old[i:]...)
	added = append(added, new[j:]...)
	return removed, added
}
