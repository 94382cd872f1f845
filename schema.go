package redsift

import (
	"strings"
	"unicode"
)

// ColumnType determines how a column's values are turned into index entries.
type ColumnType int

const (
	// Text columns are tokenized into a bag of lowercase words; each word
	// gets its own membership set (and affix entries when enabled).
	Text ColumnType = iota

	// String columns index the whole value, lowercased, as a single word.
	// Use this for identifiers, emails, slugs.
	String

	// Numeric columns store the value as the entity's score in a single
	// sorted set, enabling range filters and ordering.
	Numeric
)

// Column declares one indexed column of a model.
type Column struct {
	Name    string
	Type    ColumnType
	Indexed bool // membership set (Text/String) or score zset (Numeric)
	Prefix  bool // maintain the prefix affix structure (Text/String only)
	Suffix  bool // maintain the suffix affix structure (Text/String only)
}

// Schema describes a namespace and its indexed columns. All index structures
// for one model are keyed under the namespace:
//
//	{ns}:{col}:{word}  text membership set
//	{ns}:{col}         numeric score zset
//	{ns}:{col}:pre     prefix affix zset, members "word\x01id" at score 0
//	{ns}:{col}:suf     suffix affix zset, members "reverse(word)\x01id"
//	{ns}::             registry hash, id -> encoded index entries
//	{ns}:{id}          entity hash (Model storage)
//
// This layout is stable; external tooling may inspect the raw keys.
type Schema struct {
	Namespace string
	columns   map[string]Column
	ordered   []string
}

// NewSchema creates a schema for the given namespace and columns.
func NewSchema(namespace string, cols ...Column) (*Schema, error) {
	if namespace == "" {
		return nil, WithContext(ErrInvalidSchema, map[string]interface{}{
			"reason": "namespace must not be empty",
		})
	}

	s := &Schema{
		Namespace: namespace,
		columns:   make(map[string]Column, len(cols)),
	}
	for _, c := range cols {
		if err := validateColumn(c); err != nil {
			return nil, err
		}
		if _, dup := s.columns[c.Name]; dup {
			return nil, WithContext(ErrInvalidSchema, map[string]interface{}{
				"column": c.Name,
				"reason": "duplicate column",
			})
		}
		s.columns[c.Name] = c
		s.ordered = append(s.ordered, c.Name)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error, for package-level declarations.
func MustSchema(namespace string, cols ...Column) *Schema {
	s, err := NewSchema(namespace, cols...)
	if err != nil {
		panic(err)
	}
	return s
}

func validateColumn(c Column) error {
	fail := func(reason string) error {
		return WithContext(ErrInvalidSchema, map[string]interface{}{
			"column": c.Name,
			"reason": reason,
		})
	}

	if c.Name == "" {
		return fail("column name must not be empty")
	}
	if strings.ContainsAny(c.Name, ": \x01") {
		return fail("column name must not contain ':', spaces, or control bytes")
	}
	// Entity hashes live at {ns}:{id} and numeric zsets at {ns}:{col}; an
	// all-digit column name could collide with a counter-assigned entity id.
	if allDigits(c.Name) {
		return fail("column name must not be purely numeric")
	}
	if c.Type == Numeric && (c.Prefix || c.Suffix) {
		return fail("affix indexes require a Text or String column")
	}
	if !c.Indexed && !c.Prefix && !c.Suffix {
		return fail("column declares no index")
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// Column returns the declaration for name.
func (s *Schema) Column(name string) (Column, bool) {
	c, ok := s.columns[name]
	return c, ok
}

// Columns returns the declared columns in declaration order.
func (s *Schema) Columns() []Column {
	out := make([]Column, 0, len(s.ordered))
	for _, name := range s.ordered {
		out = append(out, s.columns[name])
	}
	return out
}

// tokensFor converts a raw column value into index words per the column type.
func (s *Schema) tokensFor(c Column, value string) []string {
	if value == "" {
		return nil
	}
	switch c.Type {
	case Text:
		return Tokenize(value)
	case String:
		return []string{strings.ToLower(value)}
	default:
		return nil
	}
}

// Key builders. These define the interop contract described on Schema.

func (s *Schema) wordKey(column, word string) string {
	return s.Namespace + ":" + column + ":" + word
}

func (s *Schema) numericKey(column string) string {
	return s.Namespace + ":" + column
}

func (s *Schema) prefixKey(column string) string {
	return s.Namespace + ":" + column + ":pre"
}

func (s *Schema) suffixKey(column string) string {
	return s.Namespace + ":" + column + ":suf"
}

func (s *Schema) registryKey() string {
	return s.Namespace + "::"
}

func (s *Schema) entityKey(id string) string {
	return s.Namespace + ":" + id
}

func (s *Schema) idCounterKey() string {
	return s.Namespace + "::id"
}
