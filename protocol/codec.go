// Package protocol provides the frame encoding used to ship statements and
// batches over a transport.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dan-strohschein/cqltrace/statement"
)

const (
	// EOT terminates a frame
	EOT byte = 0x04

	// ENQ delimits parameters within a frame
	ENQ byte = 0x05
)

// Codec handles encoding and decoding of protocol frames
type Codec interface {
	// Encode encodes a command with optional parameters into wire format
	Encode(command string, params []string) []byte

	// EncodeStatement encodes a single statement as a STATEMENT frame
	EncodeStatement(stmt statement.Statement) []byte

	// EncodeBatch encodes a batch as a BATCH frame with one parameter per child
	EncodeBatch(batch *statement.Batch) []byte

	// EncodePrepare encodes a PREPARE frame for query
	EncodePrepare(query string) []byte

	// Decode parses a raw frame into a Response
	Decode(data []byte) (*Response, error)
}

// Response represents a decoded protocol response
type Response struct {
	Data    interface{}            `json:"data,omitempty"`
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FrameCodec implements Codec with EOT/ENQ framing
type FrameCodec struct {
	bufferPool sync.Pool
}

// NewCodec creates a new frame codec
func NewCodec() Codec {
	return &FrameCodec{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Encode encodes a command with optional parameters
func (c *FrameCodec) Encode(command string, params []string) []byte {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	buf.WriteString(command)
	for _, param := range params {
		buf.WriteByte(ENQ)
		buf.WriteString(escapeParameter(param))
	}
	buf.WriteByte(EOT)

	// buffer is reused, hand out a copy
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result
}

// EncodeStatement encodes stmt as "STATEMENT" with the entry as its parameter.
func (c *FrameCodec) EncodeStatement(stmt statement.Statement) []byte {
	return c.Encode("STATEMENT", []string{EncodeEntry(stmt)})
}

// EncodePrepare encodes a request to register query as a prepared statement.
func (c *FrameCodec) EncodePrepare(query string) []byte {
	return c.Encode("PREPARE", []string{query})
}

// EncodeBatch encodes batch as "BATCH <TYPE>" followed by one entry per child.
// Nested batches are not expanded.
func (c *FrameCodec) EncodeBatch(batch *statement.Batch) []byte {
	if batch == nil {
		return c.Encode("BATCH LOGGED", nil)
	}
	entries := make([]string, len(batch.Statements))
	for i, stmt := range batch.Statements {
		entries[i] = EncodeEntry(stmt)
	}
	return c.Encode("BATCH "+batch.Type.String(), entries)
}

// EncodeEntry renders a single batch child.
func EncodeEntry(stmt statement.Statement) string {
	switch s := stmt.(type) {
	case statement.Regular:
		return "QUERY " + s.Query.OrEmpty()
	case *statement.Regular:
		if s != nil {
			return "QUERY " + s.Query.OrEmpty()
		}
	case statement.Bound:
		return encodeBound(s)
	case *statement.Bound:
		if s != nil {
			return encodeBound(*s)
		}
	case *statement.Batch:
		return "BATCH"
	case statement.Unknown:
		return "UNKNOWN " + s.TypeName
	case *statement.Unknown:
		if s != nil {
			return "UNKNOWN " + s.TypeName
		}
	}
	return "UNKNOWN <nil>"
}

func encodeBound(b statement.Bound) string {
	id := ""
	if b.Prepared != nil {
		id = b.Prepared.ID
	}
	if len(b.Values) == 0 {
		return "EXECUTE " + id
	}
	values := make([]string, len(b.Values))
	for i, v := range b.Values {
		values[i] = fmt.Sprint(v)
	}
	return "EXECUTE " + id + " (" + strings.Join(values, ", ") + ")"
}

// escapeParameter doubles EOT and ENQ bytes in parameter values
func escapeParameter(param string) string {
	if strings.IndexByte(param, EOT) < 0 && strings.IndexByte(param, ENQ) < 0 {
		return param
	}

	var buf bytes.Buffer
	buf.Grow(len(param) + 10)
	for i := 0; i < len(param); i++ {
		b := param[i]
		if b == EOT || b == ENQ {
			buf.WriteByte(b)
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

// Decode parses a raw frame into a Response
func (c *FrameCodec) Decode(data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response data")
	}

	if data[len(data)-1] == EOT {
		data = data[:len(data)-1]
	}

	// Success shadows the embedded field so an absent key can be told apart
	// from false.
	var wire struct {
		Response
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		// not JSON, plain text acknowledgement
		return &Response{
			Success: true,
			Message: string(data),
		}, nil
	}

	response := wire.Response
	response.Success = wire.Success == nil || *wire.Success
	return &response, nil
}
