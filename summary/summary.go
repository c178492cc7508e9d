// Package summary folds the statements of a batch into a short label in
// which consecutive repeats of the same query are counted instead of listed.
//
//	summary.Format(summary.Summarize([]string{"a", "a", "b"}))
//	// cql execution: 2 x a, b
package summary

import (
	"strconv"
	"strings"
)

// Prefix is the label placed in front of every batch summary.
const Prefix = "cql execution: "

// Separator joins the tokens of a summary.
const Separator = ", "

// Run is a sequence of consecutive equal texts.
type Run struct {
	Text  string
	Count int
}

// String renders the run as a display token. A run of one is the bare text.
func (r Run) String() string {
	if r.Count <= 1 {
		return r.Text
	}
	return strconv.Itoa(r.Count) + " x " + r.Text
}

// Fold merges consecutive equal texts into runs, preserving order.
// Texts are compared by value.
func Fold(texts []string) []Run {
	runs := make([]Run, 0, len(texts))
	var (
		current string
		count   int
	)
	for _, text := range texts {
		switch {
		case count == 0:
			current, count = text, 1
		case text == current:
			count++
		default:
			runs = append(runs, Run{Text: current, Count: count})
			current, count = text, 1
		}
	}
	if count > 0 {
		runs = append(runs, Run{Text: current, Count: count})
	}
	return runs
}

// Expand is the inverse of Fold.
func Expand(runs []Run) []string {
	n := 0
	for _, r := range runs {
		n += r.Count
	}
	texts := make([]string, 0, n)
	for _, r := range runs {
		for i := 0; i < r.Count; i++ {
			texts = append(texts, r.Text)
		}
	}
	return texts
}

// Summarize returns the display tokens for texts.
func Summarize(texts []string) []string {
	return Tokens(Fold(texts))
}

// Tokens renders each run as a display token.
func Tokens(runs []Run) []string {
	tokens := make([]string, len(runs))
	for i, r := range runs {
		tokens[i] = r.String()
	}
	return tokens
}

// Format joins tokens behind the default prefix.
func Format(tokens []string) string {
	return FormatWith(Prefix, tokens)
}

// FormatWith joins tokens behind prefix. Token content is not escaped or
// shortened.
func FormatWith(prefix string, tokens []string) string {
	n := len(prefix)
	for i, t := range tokens {
		if i > 0 {
			n += len(Separator)
		}
		n += len(t)
	}

	var sb strings.Builder
	sb.Grow(n)
	sb.WriteString(prefix)
	for i, t := range tokens {
		if i > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(t)
	}
	return sb.String()
}
