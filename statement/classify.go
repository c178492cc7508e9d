package statement

import "fmt"

// NestedBatchMarker is the canonical text of a batch nested in another batch.
const NestedBatchMarker = "[nested batch statement]"

// UnexpectedType returns the canonical text of an unrecognised statement.
func UnexpectedType(typeName string) string {
	return "[unexpected statement type: " + typeName + "]"
}

// Canonical returns the text used to compare and display a statement.
// It never fails: missing text maps to "".
func Canonical(stmt Statement) string {
	switch s := stmt.(type) {
	case Regular:
		return s.Query.OrEmpty()
	case *Regular:
		if s == nil {
			return UnexpectedType("<nil>")
		}
		return s.Query.OrEmpty()
	case Bound:
		return boundText(s)
	case *Bound:
		if s == nil {
			return UnexpectedType("<nil>")
		}
		return boundText(*s)
	case *Batch:
		return NestedBatchMarker
	case Unknown:
		return UnexpectedType(s.TypeName)
	case *Unknown:
		if s == nil {
			return UnexpectedType("<nil>")
		}
		return UnexpectedType(s.TypeName)
	default:
		return UnexpectedType("<nil>")
	}
}

func boundText(b Bound) string {
	if b.Prepared == nil {
		return ""
	}
	return b.Prepared.Query.OrEmpty()
}

// Describe converts a value observed by an instrumentation hook into a
// Statement. Values outside the known set become Unknown with their Go type.
func Describe(v any) Statement {
	switch s := v.(type) {
	case nil:
		return Unknown{TypeName: "<nil>"}
	case Statement:
		return s
	case string:
		return Regular{Query: Some(s)}
	case *Prepared:
		return Bound{Prepared: s}
	default:
		return Unknown{TypeName: fmt.Sprintf("%T", v)}
	}
}

// DescribeAll applies Describe to every value, preserving order.
func DescribeAll(values []any) []Statement {
	stmts := make([]Statement, len(values))
	for i, v := range values {
		stmts[i] = Describe(v)
	}
	return stmts
}
