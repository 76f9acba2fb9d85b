package logparse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Encoder writes records as line-delimited JSON with keys in the order
// timestamp, level, message, id. The id key is omitted when empty.
type Encoder struct {
	enc   *json.Encoder
	count int
}

func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

func (e *Encoder) Encode(record Record) error {
	if err := e.enc.Encode(record); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	e.count++
	return nil
}

func (e *Encoder) Count() int {
	return e.count
}

type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns io.EOF once the input is exhausted. Blank lines are skipped.
func (d *Decoder) Next() (Record, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return Record{}, fmt.Errorf("decode record on line %d: %w", d.line, err)
		}
		return record, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read records: %w", err)
	}
	return Record{}, io.EOF
}
