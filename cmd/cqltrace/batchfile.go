package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dan-strohschein/cqltrace/statement"
)

// BatchFile is the YAML document read by summarize and encode.
type BatchFile struct {
	Prepared []PreparedEntry `yaml:"prepared"`
	Batches  []BatchEntry    `yaml:"batches"`
}

// PreparedEntry declares a prepared statement that bound entries can refer to.
// ID defaults to the hashed statement ID.
type PreparedEntry struct {
	ID    string `yaml:"id"`
	Query string `yaml:"query"`
}

// BatchEntry is one batch. Type is LOGGED, UNLOGGED or COUNTER and defaults to LOGGED.
type BatchEntry struct {
	Type       string           `yaml:"type"`
	Statements []StatementEntry `yaml:"statements"`
}

// StatementEntry sets exactly one of Query, Bound, Batch or Unknown.
// An entry with none of them is a regular statement without text.
type StatementEntry struct {
	Query   *string     `yaml:"query"`
	Bound   string      `yaml:"bound"`
	Values  []any       `yaml:"values"`
	Batch   *BatchEntry `yaml:"batch"`
	Unknown string      `yaml:"unknown"`
}

// LoadBatchFile reads and parses path.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return ParseBatchFile(data)
}

// ParseBatchFile parses a YAML batch document.
func ParseBatchFile(data []byte) (*BatchFile, error) {
	var f BatchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Batches) == 0 {
		return nil, fmt.Errorf("batch file declares no batches")
	}
	return &f, nil
}

// Build resolves prepared references and returns the batches in file order.
// A bound entry naming an undeclared statement keeps a nil template.
func (f *BatchFile) Build() ([]*statement.Batch, error) {
	prepared := make(map[string]*statement.Prepared, len(f.Prepared))
	named := make(map[string]bool, len(f.Prepared))
	for i, p := range f.Prepared {
		if p.Query == "" {
			return nil, fmt.Errorf("prepared[%d]: query is required", i)
		}
		ps := statement.NewPrepared(p.Query)
		prepared[ps.ID] = ps
		if p.ID != "" {
			if named[p.ID] {
				return nil, fmt.Errorf("prepared[%d]: duplicate id %q", i, p.ID)
			}
			named[p.ID] = true
			prepared[p.ID] = ps
		}
	}

	batches := make([]*statement.Batch, 0, len(f.Batches))
	for i := range f.Batches {
		b, err := f.Batches[i].build(prepared, fmt.Sprintf("batches[%d]", i))
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (e *BatchEntry) build(prepared map[string]*statement.Prepared, path string) (*statement.Batch, error) {
	typ, err := statement.ParseBatchType(e.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	b := &statement.Batch{Type: typ, Statements: make([]statement.Statement, 0, len(e.Statements))}
	for i, s := range e.Statements {
		stmt, err := s.build(prepared, fmt.Sprintf("%s.statements[%d]", path, i))
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, stmt)
	}
	return b, nil
}

func (s StatementEntry) build(prepared map[string]*statement.Prepared, path string) (statement.Statement, error) {
	set := 0
	if s.Query != nil {
		set++
	}
	if s.Bound != "" {
		set++
	}
	if s.Batch != nil {
		set++
	}
	if s.Unknown != "" {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("%s: only one of query, bound, batch or unknown may be set", path)
	}
	if len(s.Values) > 0 && s.Bound == "" {
		return nil, fmt.Errorf("%s: values require bound", path)
	}

	switch {
	case s.Batch != nil:
		return s.Batch.build(prepared, path+".batch")
	case s.Bound != "":
		// nil Prepared when the reference is unknown
		return statement.Bound{Prepared: prepared[s.Bound], Values: s.Values}, nil
	case s.Unknown != "":
		return statement.Unknown{TypeName: s.Unknown}, nil
	case s.Query != nil:
		return statement.Regular{Query: statement.Some(*s.Query)}, nil
	default:
		return statement.Regular{Query: statement.None}, nil
	}
}
