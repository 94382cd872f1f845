package redsift

import (
	"context"
	"time"
)

// Query is an immutable fluent builder over a GeneralIndex. Every method
// returns a new Query, so partially built queries can be shared and branched
// safely:
//
//	base := model.Query().Filter("status", "active")
//	young := base.AtMost("age", 30)
//	old := base.AtLeast("age", 65)
//
// Queries execute nothing until Execute, First, Count, or CachedResult is
// called.
type Query struct {
	engine  *GeneralIndex
	model   *Model
	filters []Filter
	orderBy string
	offset  int
	count   int
}

// NewQuery starts a query against an engine directly, without a Model.
func NewQuery(engine *GeneralIndex) *Query {
	return &Query{engine: engine}
}

func (q *Query) clone() *Query {
	dup := *q
	dup.filters = make([]Filter, len(q.filters), len(q.filters)+1)
	copy(dup.filters, q.filters)
	return &dup
}

func (q *Query) with(f Filter) *Query {
	dup := q.clone()
	dup.filters = append(dup.filters, f)
	return dup
}

// Filter matches entities whose column contains the word; with several words
// it matches entities containing any of them (an OR group).
func (q *Query) Filter(column string, words ...string) *Query {
	if len(words) == 1 {
		return q.with(Word(column, words[0]))
	}
	return q.with(AnyWord(column, words...))
}

// Between restricts a numeric column to [min, max], bounds inclusive.
func (q *Query) Between(column string, min, max float64) *Query {
	return q.with(Between(column, min, max))
}

// BetweenExclusive restricts a numeric column to (min, max), bounds exclusive.
func (q *Query) BetweenExclusive(column string, min, max float64) *Query {
	return q.with(BetweenExclusive(column, min, max))
}

// AtLeast restricts a numeric column to values >= min.
func (q *Query) AtLeast(column string, min float64) *Query {
	return q.with(AtLeast(column, min))
}

// AtMost restricts a numeric column to values <= max.
func (q *Query) AtMost(column string, max float64) *Query {
	return q.with(AtMost(column, max))
}

// StartsWith matches entities whose column contains a word with the prefix.
func (q *Query) StartsWith(column, prefix string) *Query {
	return q.with(Prefix(column, prefix))
}

// EndsWith matches entities whose column contains a word with the suffix.
func (q *Query) EndsWith(column, suffix string) *Query {
	return q.with(Suffix(column, suffix))
}

// Like matches entities whose column contains a word matching the glob-style
// pattern; see Like for the wildcard set.
func (q *Query) Like(column, pattern string) *Query {
	return q.with(Like(column, pattern))
}

// Where appends an already constructed filter.
func (q *Query) Where(f Filter) *Query {
	return q.with(f)
}

// OrderBy sorts results by a numeric column's value, ascending; prefix the
// name with "-" for descending.
func (q *Query) OrderBy(column string) *Query {
	dup := q.clone()
	dup.orderBy = column
	return dup
}

// Limit windows the result to count entries starting at offset. Applied
// after ordering.
func (q *Query) Limit(offset, count int) *Query {
	dup := q.clone()
	dup.offset = offset
	dup.count = count
	return dup
}

// Execute runs the query and returns matching entity identifiers.
func (q *Query) Execute(ctx context.Context) ([]string, error) {
	return q.engine.Search(ctx, q.filters, q.orderBy, q.offset, q.count)
}

// First returns the identifier of the first match, or ErrNotFound.
func (q *Query) First(ctx context.Context) (string, error) {
	ids, err := q.engine.Search(ctx, q.filters, q.orderBy, q.offset, 1)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", WithContext(ErrNotFound, map[string]interface{}{
			"namespace": q.engine.Schema().Namespace,
		})
	}
	return ids[0], nil
}

// Count returns the number of matches, ignoring any Limit window.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.engine.Count(ctx, q.filters)
}

// CachedResult materializes the full ordered result under an expiring key
// and returns the key, for pagination via ZRANGE without recomputation.
func (q *Query) CachedResult(ctx context.Context, timeout time.Duration) (string, error) {
	return q.engine.CachedSearch(ctx, q.filters, q.orderBy, timeout)
}

// Fetch runs the query and loads the matching entities' stored fields.
// Requires a Model-backed query; entries are ordered like Execute's ids.
func (q *Query) Fetch(ctx context.Context) ([]map[string]string, error) {
	if q.model == nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": "Fetch requires a query created from a Model",
		})
	}
	ids, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return q.model.GetMulti(ctx, ids)
}
