package redsift

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Filter is one search predicate over an indexed column. The set of
// implementations is closed: Word, AnyWord, Range (and its helpers), Prefix,
// Suffix, Like. The planner resolves each filter to its index structures,
// asks it for a cost estimate, and executes the cheapest first.
type Filter interface {
	// Column returns the column the filter applies to.
	Column() string

	// validate checks the filter against the schema before any execution.
	validate(s *Schema) error

	// queueEstimate pipelines the filter's cost-estimate command.
	queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd

	// apply merges the filter's matches into the accumulator. first is true
	// when the accumulator has not been populated yet; estimate is the value
	// produced by queueEstimate.
	apply(ctx context.Context, e *searchState, first bool, estimate int64) error
}

func unknownColumn(column, clause string) error {
	return WithContext(ErrUnknownColumn, map[string]interface{}{
		"column": column,
		"clause": clause,
	})
}

func invalidFilter(column, reason string) error {
	return WithContext(ErrInvalidFilter, map[string]interface{}{
		"column": column,
		"reason": reason,
	})
}

// checkSingleToken rejects Text-column search words that tokenization would
// split or rewrite: such words can never appear in the index, so a filter
// carrying one would silently match nothing. String columns index the whole
// value as one word and accept any non-empty string.
func checkSingleToken(c Column, word string) error {
	if c.Type != Text {
		return nil
	}
	if toks := Tokenize(word); len(toks) != 1 || toks[0] != word {
		return invalidFilter(c.Name, "word must be a single token")
	}
	return nil
}

// --- word ---

type wordFilter struct {
	col  string
	word string
}

// Word matches entities whose column value contains the given word. The word
// is lowercased; for Text columns it must be a single token.
func Word(column, word string) Filter {
	return &wordFilter{col: column, word: strings.ToLower(word)}
}

func (f *wordFilter) Column() string { return f.col }

func (f *wordFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if c.Type == Numeric || !c.Indexed {
		return invalidFilter(f.col, "word filter requires an indexed Text or String column")
	}
	if f.word == "" {
		return invalidFilter(f.col, "empty word")
	}
	if err := checkSingleToken(c, f.word); err != nil {
		return err
	}
	return nil
}

func (f *wordFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	return estimateWorkScript.EvalSha(ctx, pipe, []string{s.wordKey(f.col, f.word)}, estimateModeSet)
}

func (f *wordFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	return e.mergeKeys(ctx, first, []string{e.schema.wordKey(f.col, f.word)})
}

// --- any-of (OR) ---

type anyWordFilter struct {
	col   string
	words []string
}

// AnyWord matches entities whose column value contains any of the given
// words (an OR group). Words are lowercased.
func AnyWord(column string, words ...string) Filter {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return &anyWordFilter{col: column, words: lowered}
}

func (f *anyWordFilter) Column() string { return f.col }

func (f *anyWordFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if c.Type == Numeric || !c.Indexed {
		return invalidFilter(f.col, "word filter requires an indexed Text or String column")
	}
	if len(f.words) == 0 {
		return invalidFilter(f.col, "OR group has no words")
	}
	for _, w := range f.words {
		if w == "" {
			return invalidFilter(f.col, "empty word in OR group")
		}
		if err := checkSingleToken(c, w); err != nil {
			return err
		}
	}
	return nil
}

func (f *anyWordFilter) keys(s *Schema) []string {
	keys := make([]string, len(f.words))
	for i, w := range f.words {
		keys[i] = s.wordKey(f.col, w)
	}
	return keys
}

func (f *anyWordFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	// OR-group cost is the sum of the member sets' cardinalities.
	return estimateWorkScript.EvalSha(ctx, pipe, f.keys(s), estimateModeSet)
}

func (f *anyWordFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	return e.mergeKeys(ctx, first, f.keys(e.schema))
}

// --- numeric range ---

type rangeFilter struct {
	col          string
	min, max     *float64
	minExclusive bool
	maxExclusive bool
}

// Between matches entities whose numeric column value lies in [min, max],
// bounds inclusive.
func Between(column string, min, max float64) Filter {
	return &rangeFilter{col: column, min: &min, max: &max}
}

// BetweenExclusive matches entities whose numeric column value lies in
// (min, max), bounds exclusive.
func BetweenExclusive(column string, min, max float64) Filter {
	return &rangeFilter{col: column, min: &min, max: &max, minExclusive: true, maxExclusive: true}
}

// AtLeast matches entities whose numeric column value is >= min.
func AtLeast(column string, min float64) Filter {
	return &rangeFilter{col: column, min: &min}
}

// AtMost matches entities whose numeric column value is <= max.
func AtMost(column string, max float64) Filter {
	return &rangeFilter{col: column, max: &max}
}

// Range matches a numeric column against arbitrary optional bounds; nil
// endpoints are open, exclusivity is per endpoint.
func Range(column string, min, max *float64, minExclusive, maxExclusive bool) Filter {
	return &rangeFilter{col: column, min: min, max: max, minExclusive: minExclusive, maxExclusive: maxExclusive}
}

func (f *rangeFilter) Column() string { return f.col }

func (f *rangeFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if c.Type != Numeric || !c.Indexed {
		return invalidFilter(f.col, "range filter requires an indexed Numeric column")
	}
	if f.min == nil && f.max == nil {
		return WithContext(ErrInvalidRange, map[string]interface{}{"column": f.col})
	}
	if f.min != nil && f.max != nil && *f.min > *f.max {
		return WithContext(ErrInvalidRange, map[string]interface{}{
			"column": f.col,
			"min":    *f.min,
			"max":    *f.max,
		})
	}
	return nil
}

func (f *rangeFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	lo := scoreBound(f.min, f.minExclusive, "-inf")
	hi := scoreBound(f.max, f.maxExclusive, "inf")
	return estimateWorkScript.EvalSha(ctx, pipe, []string{s.numericKey(f.col)}, estimateModeRange, lo, hi)
}

func (f *rangeFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	key := e.schema.numericKey(f.col)

	// A negative estimate means copying the score subrange directly beats
	// intersecting the full zset and trimming.
	if first && estimate < 0 {
		lo := scoreBound(f.min, f.minExclusive, "-inf")
		hi := scoreBound(f.max, f.maxExclusive, "inf")
		return e.subrange(ctx, key, lo, hi)
	}

	if err := e.intersectScored(ctx, first, key); err != nil {
		return err
	}

	// The intersection preserved membership; trim members whose score falls
	// outside the requested window. The "(" marks the removal bound, so an
	// inclusive filter bound becomes an exclusive removal bound.
	if f.min != nil {
		if err := e.rdb.ZRemRangeByScore(ctx, e.temp, "-inf", formatScore(*f.min, !f.minExclusive)).Err(); err != nil {
			return err
		}
	}
	if f.max != nil {
		if err := e.rdb.ZRemRangeByScore(ctx, e.temp, formatScore(*f.max, !f.maxExclusive), "inf").Err(); err != nil {
			return err
		}
	}
	return nil
}

// --- affix matching ---

type prefixFilter struct {
	col    string
	prefix string
}

// Prefix matches entities whose column contains a word starting with the
// given prefix.
func Prefix(column, prefix string) Filter {
	return &prefixFilter{col: column, prefix: strings.ToLower(prefix)}
}

func (f *prefixFilter) Column() string { return f.col }

func (f *prefixFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if !c.Prefix {
		return invalidFilter(f.col, "column has no prefix index")
	}
	if f.prefix == "" {
		return invalidFilter(f.col, "empty prefix")
	}
	return nil
}

func (f *prefixFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	return estimateWorkScript.EvalSha(ctx, pipe, []string{s.prefixKey(f.col)},
		estimateModeAffix, f.prefix, nextPrefix(f.prefix))
}

func (f *prefixFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	return e.affixMatch(ctx, e.schema.prefixKey(f.col), f.prefix, "", first)
}

type suffixFilter struct {
	col      string
	reversed string
}

// Suffix matches entities whose column contains a word ending with the given
// suffix. Internally the suffix index stores reversed words, so this is a
// prefix scan over the reversed search string.
func Suffix(column, suffix string) Filter {
	return &suffixFilter{col: column, reversed: reverseString(strings.ToLower(suffix))}
}

func (f *suffixFilter) Column() string { return f.col }

func (f *suffixFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if !c.Suffix {
		return invalidFilter(f.col, "column has no suffix index")
	}
	if f.reversed == "" {
		return invalidFilter(f.col, "empty suffix")
	}
	return nil
}

func (f *suffixFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	return estimateWorkScript.EvalSha(ctx, pipe, []string{s.suffixKey(f.col)},
		estimateModeAffix, f.reversed, nextPrefix(f.reversed))
}

func (f *suffixFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	return e.affixMatch(ctx, e.schema.suffixKey(f.col), f.reversed, "", first)
}

type patternFilter struct {
	col     string
	pattern string
}

// Like matches entities whose column contains a word matching the glob-style
// pattern. Supported wildcards: '?' (zero or one character), '*' (any run,
// shortest match), '+' (one or more characters), '!' (exactly one character).
// When the pattern starts with literal characters, the scan is narrowed to
// that prefix; otherwise the whole affix structure is scanned.
func Like(column, pattern string) Filter {
	return &patternFilter{col: column, pattern: strings.ToLower(pattern)}
}

func (f *patternFilter) Column() string { return f.col }

func (f *patternFilter) validate(s *Schema) error {
	c, ok := s.Column(f.col)
	if !ok {
		return unknownColumn(f.col, "filter")
	}
	if !c.Prefix {
		return invalidFilter(f.col, "pattern matching requires a prefix index")
	}
	if f.pattern == "" {
		return invalidFilter(f.col, "empty pattern")
	}
	return nil
}

func (f *patternFilter) queueEstimate(ctx context.Context, pipe redis.Pipeliner, s *Schema) *redis.Cmd {
	literal := patternLiteralPrefix(f.pattern)
	return estimateWorkScript.EvalSha(ctx, pipe, []string{s.prefixKey(f.col)},
		estimateModeAffix, literal, nextPrefix(literal))
}

func (f *patternFilter) apply(ctx context.Context, e *searchState, first bool, estimate int64) error {
	return e.affixMatch(ctx, e.schema.prefixKey(f.col), patternLiteralPrefix(f.pattern), patternToLua(f.pattern), first)
}

// patternLiteralPrefix extracts the literal characters before the first
// wildcard, capped at MaxPrefixLen bytes.
func patternLiteralPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "?*+!")
	if i < 0 {
		i = len(pattern)
	}
	literal := pattern[:i]
	if len(literal) > MaxPrefixLen {
		literal = literal[:MaxPrefixLen]
	}
	return literal
}

// patternToLua converts a glob-style pattern into an anchored Lua pattern
// matched against affix members. The trailing separator anchors the match at
// the end of the word, so patterns match whole words. '*' becomes the
// shortest-match '.-', which is usually what pattern callers want.
func patternToLua(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '?':
			b.WriteString(".?")
		case '*':
			b.WriteString(".-")
		case '+':
			b.WriteString(".+")
		case '!':
			b.WriteString(".")
		case '(', ')', '.', '%', '[', ']', '^', '$', '-':
			b.WriteByte('%')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(affixSep)
	return b.String()
}
