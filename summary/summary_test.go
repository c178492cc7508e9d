package summary

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/cqltrace/statement"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty", nil, []string{}},
		{"single", []string{"a"}, []string{"a"}},
		{"all identical", []string{"a", "a", "a"}, []string{"3 x a"}},
		{"non-consecutive repeats", []string{"a", "b", "a"}, []string{"a", "b", "a"}},
		{"mixed runs", []string{"a", "a", "b", "b", "b", "c"}, []string{"2 x a", "3 x b", "c"}},
		{"alternating", []string{"a", "b", "a", "b"}, []string{"a", "b", "a", "b"}},
		{"empty strings merge", []string{"", strings.Repeat("x", 0), ""}, []string{"3 x "}},
		{"trailing run", []string{"a", "b", "b"}, []string{"a", "2 x b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.input))
		})
	}
}

func TestRunString(t *testing.T) {
	assert.Equal(t, "q", Run{Text: "q", Count: 1}.String())
	assert.Equal(t, "2 x q", Run{Text: "q", Count: 2}.String())
	assert.Equal(t, "12 x INSERT INTO t (a) VALUES (?)", Run{Text: "INSERT INTO t (a) VALUES (?)", Count: 12}.String())
}

func TestFoldProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"", "a", "b", "SELECT * FROM t"}

	for i := 0; i < 500; i++ {
		input := make([]string, rng.Intn(20))
		for j := range input {
			input[j] = alphabet[rng.Intn(len(alphabet))]
		}

		runs := Fold(input)
		require.Equal(t, input, append([]string{}, Expand(runs)...), "round trip of %q", input)

		adjacentEqual := false
		for j := 1; j < len(input); j++ {
			if input[j] == input[j-1] {
				adjacentEqual = true
				break
			}
		}
		tokens := Summarize(input)
		assert.LessOrEqual(t, len(tokens), len(input))
		assert.Equal(t, !adjacentEqual, len(tokens) == len(input), "input %q", input)

		for j, r := range runs {
			assert.GreaterOrEqual(t, r.Count, 1)
			if j > 0 {
				assert.NotEqual(t, runs[j-1].Text, r.Text)
			}
		}
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "cql execution: ", Format(nil))
	assert.Equal(t, "cql execution: ", Format(Summarize(nil)))
	assert.Equal(t, "cql execution: x, y", Format([]string{"x", "y"}))
	assert.Equal(t, "cql execution: 2 x a, b", Format(Summarize([]string{"a", "a", "b"})))
	assert.Equal(t, "batch: a, b, c", FormatWith("batch: ", []string{"a", "b", "c"}))
	assert.Equal(t, "x, y", FormatWith("", []string{"x", "y"}))

	// token content is emitted as-is
	assert.Equal(t, "cql execution: a, b, c", Format([]string{"a, b", "c"}))
}

func TestMessage(t *testing.T) {
	insert := statement.NewPrepared("INSERT INTO t (a) VALUES (?)")
	stmts := []statement.Statement{
		statement.Bound{Prepared: insert, Values: []any{1}},
		statement.Bound{Prepared: insert, Values: []any{2}},
		statement.Bound{Prepared: insert, Values: []any{3}},
		statement.Regular{Query: statement.Some("UPDATE c SET n = n + 1")},
		&statement.Batch{},
		statement.Bound{},
		statement.Regular{},
		statement.Unknown{TypeName: "custom.Stmt"},
	}

	msg := NewMessage(stmts)
	assert.Equal(t,
		"cql execution: 3 x INSERT INTO t (a) VALUES (?), UPDATE c SET n = n + 1, "+
			"[nested batch statement], 2 x , [unexpected statement type: custom.Stmt]",
		msg.String())
	assert.Equal(t, Prefix, msg.Prefix())
	assert.Len(t, msg.Tokens(), 5)

	runs := msg.Runs()
	runs[0].Count = 99
	assert.Equal(t, 3, msg.Runs()[0].Count)
}

func TestMessageEmptyAndNil(t *testing.T) {
	assert.Equal(t, "cql execution: ", NewMessage(nil).String())
	assert.Equal(t, "cql execution: ", FromBatch(nil).String())

	var msg *Message
	assert.Equal(t, "cql execution: ", msg.String())
}

func TestMessageWithPrefix(t *testing.T) {
	b := &statement.Batch{Statements: []statement.Statement{
		statement.Regular{Query: statement.Some("a")},
		statement.Regular{Query: statement.Some("a")},
	}}
	assert.Equal(t, "2 x a", FromBatch(b).Tokens()[0])

	msg := NewMessageWithPrefix("cassandra batch: ", b.Statements)
	assert.Equal(t, "cassandra batch: 2 x a", msg.String())
}
