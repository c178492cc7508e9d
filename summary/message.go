package summary

import "github.com/dan-strohschein/cqltrace/statement"

// Message is the summary of one batch execution. The tokens are computed
// when the message is built; the final string is only rendered on String.
type Message struct {
	prefix string
	runs   []Run
}

// NewMessage summarizes stmts under the default prefix.
func NewMessage(stmts []statement.Statement) *Message {
	return NewMessageWithPrefix(Prefix, stmts)
}

// NewMessageWithPrefix summarizes stmts under prefix.
func NewMessageWithPrefix(prefix string, stmts []statement.Statement) *Message {
	texts := make([]string, len(stmts))
	for i, stmt := range stmts {
		texts[i] = statement.Canonical(stmt)
	}
	return &Message{prefix: prefix, runs: Fold(texts)}
}

// FromBatch summarizes the direct children of b.
func FromBatch(b *statement.Batch) *Message {
	if b == nil {
		return NewMessage(nil)
	}
	return NewMessage(b.Statements)
}

// Runs returns a copy of the folded runs.
func (m *Message) Runs() []Run {
	runs := make([]Run, len(m.runs))
	copy(runs, m.runs)
	return runs
}

// Tokens returns the display tokens.
func (m *Message) Tokens() []string {
	return Tokens(m.runs)
}

// Prefix returns the label the message is rendered behind.
func (m *Message) Prefix() string {
	return m.prefix
}

// String renders the message.
func (m *Message) String() string {
	if m == nil {
		return Prefix
	}
	return FormatWith(m.prefix, Tokens(m.runs))
}
