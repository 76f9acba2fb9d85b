package logparse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEncoderWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	records := []Record{
		{Timestamp: "2024-01-01 10:00:00", Level: LevelError, Message: "Disk failure", ID: "E2001"},
		{Timestamp: "2024-01-01 10:00:01", Level: LevelInfo, Message: "a <b> & c"},
	}
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}

	want := `{"timestamp":"2024-01-01 10:00:00","level":"ERROR","message":"Disk failure","id":"E2001"}` + "\n" +
		`{"timestamp":"2024-01-01 10:00:01","level":"INFO","message":"a <b> & c"}` + "\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
	if enc.Count() != 2 {
		t.Fatalf("Count() = %d", enc.Count())
	}
}

func TestDecoderReadsEncodedRecords(t *testing.T) {
	input := `{"timestamp":"2024-01-01 10:00:00","level":"WARNING","message":"Network latency observed","id":"W1009"}` + "\n\n" +
		`{"timestamp":"2024-01-01 10:00:01","level":"INFO","message":"Session started"}` + "\n"
	dec := NewDecoder(strings.NewReader(input))

	first, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if first.ID != "W1009" || first.Level != LevelWarning {
		t.Fatalf("first = %+v", first)
	}
	second, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if second.ID != "" {
		t.Fatalf("second.ID = %q", second.ID)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() error = %v, want io.EOF", err)
	}
}

func TestDecoderReportsLineOfBadJSON(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{\"timestamp\":\"x\"}\nnot json\n"))
	if _, err := dec.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	_, err := dec.Next()
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("Next() error = %v, want line 2 decode error", err)
	}
}
