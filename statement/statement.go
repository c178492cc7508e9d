// Package statement models the CQL statements that make up a batch and
// classifies each one to the canonical text used when labelling the batch.
package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
)

// Kind identifies a statement variant.
type Kind int

const (
	KindRegular Kind = iota
	KindBound
	KindBatch
	KindUnknown
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindBound:
		return "bound"
	case KindBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Statement is a single entry of a batch. The variant set is closed:
// Regular, Bound, Batch and Unknown are the only implementations.
type Statement interface {
	Kind() Kind
	sealed()
}

// Text is an optional query string. The zero value is absent.
type Text struct {
	value string
	valid bool
}

// None is the absent Text.
var None = Text{}

// Some returns a present Text holding s. An empty string is still present.
func Some(s string) Text {
	return Text{value: s, valid: true}
}

// Get returns the text and whether it is present.
func (t Text) Get() (string, bool) {
	return t.value, t.valid
}

// Valid reports whether the text is present.
func (t Text) Valid() bool {
	return t.valid
}

// OrEmpty returns the text, or "" when absent.
func (t Text) OrEmpty() string {
	if !t.valid {
		return ""
	}
	return t.value
}

// Regular is a plain query string sent inline.
type Regular struct {
	Query Text
}

func (Regular) Kind() Kind { return KindRegular }
func (Regular) sealed()    {}

// Prepared is a precompiled statement registered with the server and
// referenced by ID from Bound statements.
type Prepared struct {
	ID    string
	Query Text
}

// NewPrepared returns a Prepared for query with an ID derived from its text.
func NewPrepared(query string) *Prepared {
	return &Prepared{ID: PreparedID(query), Query: Some(query)}
}

// PreparedID returns the identifier a query is registered under: the hex
// xxhash64 of the query text.
func PreparedID(query string) string {
	return strconv.FormatUint(xxhash.Sum64([]byte(query)), 16)
}

// Bound is an execution of a prepared statement. Prepared is nil when the
// referenced template could not be resolved.
type Bound struct {
	Prepared *Prepared
	Values   []any
}

func (Bound) Kind() Kind { return KindBound }
func (Bound) sealed()    {}

// BatchType is the CQL batch kind.
type BatchType int

const (
	Logged BatchType = iota
	Unlogged
	Counter
)

// String returns the CQL keyword for the batch type.
func (t BatchType) String() string {
	switch t {
	case Unlogged:
		return "UNLOGGED"
	case Counter:
		return "COUNTER"
	default:
		return "LOGGED"
	}
}

// ParseBatchType converts a string to a BatchType. Empty means Logged.
func ParseBatchType(s string) (BatchType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LOGGED":
		return Logged, nil
	case "UNLOGGED":
		return Unlogged, nil
	case "COUNTER":
		return Counter, nil
	default:
		return Logged, fmt.Errorf("unknown batch type %q", s)
	}
}

// Batch is a group of statements executed as one unit. When it appears
// inside another batch it is not expanded.
type Batch struct {
	Type       BatchType
	Statements []Statement
}

func (*Batch) Kind() Kind { return KindBatch }
func (*Batch) sealed()    {}

// Len returns the number of direct children.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Statements)
}

// Queries returns the canonical text of each child, in order.
func (b *Batch) Queries() []string {
	if b == nil {
		return nil
	}
	queries := make([]string, len(b.Statements))
	for i, stmt := range b.Statements {
		queries[i] = Canonical(stmt)
	}
	return queries
}

// Unknown stands in for a statement the classifier does not recognise.
type Unknown struct {
	TypeName string
}

func (Unknown) Kind() Kind { return KindUnknown }
func (Unknown) sealed()    {}
