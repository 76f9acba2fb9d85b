package logparse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/loglens/loglens/internal/observability"
)

// maxLineBytes bounds a single line. Longer lines are dropped whole.
const maxLineBytes = 1 << 20

type Stats struct {
	Accepted int64
	Dropped  int64
}

// Parser applies Parse to a stream of lines and keeps accepted/dropped
// counters. It is safe for concurrent use.
type Parser struct {
	// OnDrop, when set, is called for every unparseable line.
	OnDrop func(index int, line string)

	accepted atomic.Int64
	dropped  atomic.Int64
}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Stats() Stats {
	return Stats{Accepted: p.accepted.Load(), Dropped: p.dropped.Load()}
}

func (p *Parser) ParseLine(index int, line string) (Record, bool) {
	record, ok := Parse(strings.TrimSuffix(line, "\r"))
	if !ok {
		p.drop(index, line)
		return Record{}, false
	}
	p.accepted.Add(1)
	observability.ObserveParsedLine(true)
	return record, true
}

func (p *Parser) drop(index int, line string) {
	p.dropped.Add(1)
	observability.ObserveParsedLine(false)
	if p.OnDrop != nil {
		p.OnDrop(index, line)
	}
}

func (p *Parser) ParseLines(lines []string) []Indexed {
	out := make([]Indexed, 0, len(lines))
	for index, line := range lines {
		record, ok := p.ParseLine(index, line)
		if !ok {
			continue
		}
		out = append(out, Indexed{Index: index, Record: record})
	}
	return out
}

// Scan reads r line by line and calls fn for each accepted record in input
// order. Lines longer than maxLineBytes are dropped like any other
// unparseable line; OnDrop receives their first maxLineBytes bytes.
// A non-nil error from fn stops the scan and is returned as is.
func (p *Parser) Scan(r io.Reader, fn func(Indexed) error) error {
	reader := bufio.NewReaderSize(r, 64*1024)

	for index := 0; ; index++ {
		line, truncated, err := readLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("scan log lines: %w", err)
		}
		if errors.Is(err, io.EOF) && len(line) == 0 && !truncated {
			return nil
		}

		if truncated {
			p.drop(index, string(line))
		} else if record, ok := p.ParseLine(index, string(line)); ok {
			if err := fn(Indexed{Index: index, Record: record}); err != nil {
				return err
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// readLine returns the next line without its trailing newline. When the line
// exceeds maxLineBytes the remainder is discarded and truncated is true.
// io.EOF is returned together with the final unterminated line, if any.
func readLine(reader *bufio.Reader) (line []byte, truncated bool, err error) {
	for {
		chunk, readErr := reader.ReadSlice('\n')
		if readErr == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if !truncated {
			if room := maxLineBytes - len(line); len(chunk) > room {
				line = append(line, chunk[:room]...)
				truncated = true
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return line, truncated, readErr
	}
}
