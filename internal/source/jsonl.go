package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/example/txnfold/internal/record"
)

// recordSchema is the shape every JSONL line must satisfy before field
// semantics are checked. Amounts arrive as JSON numbers or as strings
// so producers can keep exact decimal text.
const recordSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "client", "tx"],
	"properties": {
		"type": {"type": "string"},
		"client": {"type": "integer", "minimum": 0, "maximum": 65535},
		"tx": {"type": "integer", "minimum": 0, "maximum": 4294967295},
		"amount": {"type": ["string", "number"]}
	}
}`

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 1 << 20

// JSONLSource reads one JSON object per line. Each line is validated
// against recordSchema; lines that fail decoding, validation or field
// parsing are skipped like any other malformed row.
type JSONLSource struct {
	scanner   *bufio.Scanner
	schema    *jsonschema.Schema
	logger    *slog.Logger
	row       int
	malformed int
}

var _ Source = (*JSONLSource)(nil)

// NewJSONLSource wraps r. It fails only when the embedded schema does
// not compile.
func NewJSONLSource(r io.Reader, logger *slog.Logger) (*JSONLSource, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("failed to add record schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLSource{scanner: scanner, schema: schema, logger: logger}, nil
}

func (s *JSONLSource) Next() (record.Record, error) {
	for s.scanner.Scan() {
		s.row++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var payload interface{}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			s.skip(err)
			continue
		}

		if err := s.schema.Validate(payload); err != nil {
			s.skip(err)
			continue
		}

		rec, err := recordFromPayload(payload.(map[string]interface{}))
		if err != nil {
			s.skip(err)
			continue
		}
		return rec, nil
	}

	if err := s.scanner.Err(); err != nil {
		return record.Record{}, fmt.Errorf("failed to read input: %w", err)
	}
	return record.Record{}, io.EOF
}

func (s *JSONLSource) Malformed() int {
	return s.malformed
}

func (s *JSONLSource) skip(err error) {
	s.malformed++
	s.logger.Debug("skipping malformed row", "row", s.row, "error", err)
}

// recordFromPayload extracts a record from a schema-valid payload.
// Schema validation has already pinned the field types and ranges, so
// the parse helpers only re-check textual form.
func recordFromPayload(payload map[string]interface{}) (record.Record, error) {
	kind, err := record.ParseKind(payload["type"].(string))
	if err != nil {
		return record.Record{}, err
	}
	client, err := record.ParseClientID(payload["client"].(json.Number).String())
	if err != nil {
		return record.Record{}, err
	}
	tx, err := record.ParseTxID(payload["tx"].(json.Number).String())
	if err != nil {
		return record.Record{}, err
	}

	rec := record.Record{Kind: kind, Client: client, TxID: tx}
	if kind.MovesFunds() {
		raw, ok := payload["amount"]
		if !ok {
			return record.Record{}, fmt.Errorf("missing amount for %s", kind)
		}
		var text string
		switch v := raw.(type) {
		case json.Number:
			text = v.String()
		case string:
			text = v
		}
		amt, err := record.ParseAmount(text)
		if err != nil {
			return record.Record{}, err
		}
		rec.Amount = amt
	}
	return rec, nil
}
