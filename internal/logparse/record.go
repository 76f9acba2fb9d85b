package logparse

import "regexp"

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// TimestampLayout is the time.Parse layout of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one structured log entry. ID is empty when the line carried no
// trailing "(ID)" group.
type Record struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	ID        string `json:"id,omitempty"`
}

// Indexed pairs an accepted record with the zero-based index of its source line.
type Indexed struct {
	Index  int
	Record Record
}

var linePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}), (\w+): (.*?)(?:, \((\w+)\))?$`)

// Parse extracts a Record from a raw line. The boolean is false for lines that
// do not match the entry format (stack traces, continuations, garbage); those
// lines are expected to be dropped by the caller.
func Parse(line string) (Record, bool) {
	matches := linePattern.FindStringSubmatch(line)
	if matches == nil {
		return Record{}, false
	}
	return Record{
		Timestamp: matches[1],
		Level:     Level(matches[2]),
		Message:   matches[3],
		ID:        matches[4],
	}, true
}
