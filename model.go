package redsift

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Model stores entities as hashes and keeps every index structure of the
// schema in lockstep with the stored data. Each save runs as one server-side
// script: it consults the namespace registry for the entity's previous index
// entries, removes them, writes the new field values and index entries, and
// records the new entries back into the registry. Because the whole exchange
// is a single scripted call, readers never observe a half-indexed entity and
// no state about previous values needs to live in the process.
type Model struct {
	rdb     *redis.Client
	schema  *Schema
	engine  *GeneralIndex
	logger  Logger
	metrics Metrics
}

// NewModel creates a model over the schema with no-op logger and metrics.
func NewModel(rdb *redis.Client, schema *Schema) *Model {
	return &Model{
		rdb:     rdb,
		schema:  schema,
		engine:  NewGeneralIndex(rdb, schema),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// NewModelWithObservability creates a model with logging and metrics
func NewModelWithObservability(rdb *redis.Client, schema *Schema, logger Logger, metrics Metrics) *Model {
	m := NewModel(rdb, schema)
	m.engine = NewGeneralIndexWithObservability(rdb, schema, logger, metrics)
	m.logger = logger
	m.metrics = metrics
	return m
}

// Schema returns the model's schema.
func (m *Model) Schema() *Schema {
	return m.schema
}

// Engine returns the query engine bound to this model's schema, for callers
// that want to assemble filter slices directly instead of using Query.
func (m *Model) Engine() *GeneralIndex {
	return m.engine
}

// NextID allocates the next identifier from the namespace counter. Generated
// ids are decimal integers starting at 1. Callers may also bring their own
// ids; the two conventions can coexist as long as external ids are not
// purely numeric.
func (m *Model) NextID(ctx context.Context) (string, error) {
	n, err := m.rdb.Incr(ctx, m.schema.idCounterKey()).Result()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// affixPair is one [column, word] entry in the save script's payload.
type affixPair [2]string

// Save writes the entity's field values and brings every index structure in
// line with them, atomically. Fields must be declared schema columns; a
// declared column absent from data (or present with an empty value) is
// cleared from the stored hash and from the indexes. Numeric columns must
// hold a parseable number.
func (m *Model) Save(ctx context.Context, id string, data map[string]string) error {
	if id == "" {
		return WithContext(ErrInvalidData, map[string]interface{}{"reason": "empty id"})
	}
	for field := range data {
		if _, ok := m.schema.Column(field); !ok {
			return unknownColumn(field, "save")
		}
	}

	var (
		fields  []string
		deleted []string
		words   []affixPair
		prefix  []affixPair
		suffix  []affixPair
		scores  = map[string]float64{}
	)

	for _, c := range m.schema.Columns() {
		value, present := data[c.Name]
		if !present || value == "" {
			deleted = append(deleted, c.Name)
			continue
		}
		fields = append(fields, c.Name, value)

		if c.Type == Numeric {
			score, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return WithContext(ErrInvalidData, map[string]interface{}{
					"column": c.Name,
					"value":  value,
					"reason": "not a number",
				})
			}
			scores[c.Name] = score
			continue
		}

		for _, word := range m.schema.tokensFor(c, value) {
			if c.Indexed {
				words = append(words, affixPair{c.Name, word})
			}
			if c.Prefix {
				prefix = append(prefix, affixPair{c.Name, word})
			}
			if c.Suffix {
				suffix = append(suffix, affixPair{c.Name, reverseString(word)})
			}
		}
	}

	start := time.Now()
	err := m.runApply(ctx, id, false, fields, deleted, words, scores, prefix, suffix)
	m.metrics.Timing(MetricSaveDuration, time.Since(start), "namespace", m.schema.Namespace)
	if err != nil {
		return err
	}

	m.logger.Debug("entity saved",
		"namespace", m.schema.Namespace,
		"entity", id,
		"fields", len(fields)/2,
		"words", len(words),
	)
	return nil
}

// Delete removes the entity's hash and every index entry recorded for it.
// Deleting an unknown id is a no-op, not an error.
func (m *Model) Delete(ctx context.Context, id string) error {
	if id == "" {
		return WithContext(ErrInvalidData, map[string]interface{}{"reason": "empty id"})
	}
	start := time.Now()
	err := m.runApply(ctx, id, true, nil, nil, nil, nil, nil, nil)
	m.metrics.Timing(MetricDeleteDuration, time.Since(start), "namespace", m.schema.Namespace)
	return err
}

func (m *Model) runApply(ctx context.Context, id string, isDelete bool,
	fields, deleted []string, words []affixPair, scores map[string]float64, prefix, suffix []affixPair) error {

	isDeleteArg := 0
	if isDelete {
		isDeleteArg = 1
	}

	args := make([]interface{}, 0, 9)
	args = append(args, m.schema.Namespace, id, isDeleteArg)
	for _, v := range []interface{}{fields, deleted, words, scores, prefix, suffix} {
		encoded, err := encodeScriptArg(v)
		if err != nil {
			return err
		}
		args = append(args, encoded)
	}

	keys := []string{m.schema.registryKey(), m.schema.entityKey(id)}
	return applyEntityScript.Run(ctx, m.rdb, keys, args...).Err()
}

// encodeScriptArg renders a payload for cjson.decode, normalizing nil slices
// and maps to their empty JSON forms.
func encodeScriptArg(v interface{}) (string, error) {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return "[]", nil
		}
	case []affixPair:
		if t == nil {
			return "[]", nil
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", WithContext(ErrInvalidData, map[string]interface{}{"reason": err.Error()})
	}
	return string(out), nil
}

// Get returns the entity's stored fields.
func (m *Model) Get(ctx context.Context, id string) (map[string]string, error) {
	fields, err := m.rdb.HGetAll(ctx, m.schema.entityKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"namespace": m.schema.Namespace,
			"entity":    id,
		})
	}
	return fields, nil
}

// GetMulti returns the stored fields for several ids in one round-trip.
// Missing ids map to nil entries rather than an error.
func (m *Model) GetMulti(ctx context.Context, ids []string) ([]map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := m.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, m.schema.entityKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(ids))
	for i, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out[i] = fields
		}
	}
	return out, nil
}

// Exists reports whether the entity has stored fields.
func (m *Model) Exists(ctx context.Context, id string) (bool, error) {
	n, err := m.rdb.Exists(ctx, m.schema.entityKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of entities recorded in the namespace registry.
func (m *Model) Count(ctx context.Context) (int64, error) {
	return m.rdb.HLen(ctx, m.schema.registryKey()).Result()
}

// Query starts a fluent query over this model's indexes.
func (m *Model) Query() *Query {
	return &Query{engine: m.engine, model: m}
}
