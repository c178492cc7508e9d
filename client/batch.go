package client

import "github.com/dan-strohschein/cqltrace/statement"

// BatchBuilder accumulates statements for a single ExecuteBatch call.
//
//	batch := client.NewBatch(statement.Unlogged)
//	for _, u := range users {
//		batch.AddBound(insertUser, u.ID, u.Name)
//	}
//	_, err := session.ExecuteBatch(ctx, batch.Build())
type BatchBuilder struct {
	batchType  statement.BatchType
	statements []statement.Statement
}

// NewBatch creates an empty builder for the given batch type.
func NewBatch(batchType statement.BatchType) *BatchBuilder {
	return &BatchBuilder{batchType: batchType}
}

// Add queues an inline query.
func (b *BatchBuilder) Add(query string) *BatchBuilder {
	b.statements = append(b.statements, statement.Regular{Query: statement.Some(query)})
	return b
}

// AddBound queues an execution of a prepared statement. A nil p is kept
// and labelled with empty text.
func (b *BatchBuilder) AddBound(p *statement.Prepared, values ...any) *BatchBuilder {
	b.statements = append(b.statements, statement.Bound{Prepared: p, Values: values})
	return b
}

// AddBatch queues a nested batch.
func (b *BatchBuilder) AddBatch(nested *statement.Batch) *BatchBuilder {
	b.statements = append(b.statements, nested)
	return b
}

// AddStatement queues any statement.
func (b *BatchBuilder) AddStatement(stmt statement.Statement) *BatchBuilder {
	b.statements = append(b.statements, stmt)
	return b
}

// Len returns the number of queued statements.
func (b *BatchBuilder) Len() int {
	return len(b.statements)
}

// Build returns the batch. The builder may keep being used; later additions
// do not affect batches already built.
func (b *BatchBuilder) Build() *statement.Batch {
	stmts := make([]statement.Statement, len(b.statements))
	copy(stmts, b.statements)
	return &statement.Batch{Type: b.batchType, Statements: stmts}
}
