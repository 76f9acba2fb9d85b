package loggen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/loglens/loglens/internal/logparse"
)

// Severity describes how lines of one level look: the message pool and, for
// levels that carry one, the range of trailing ids.
type Severity struct {
	Level    logparse.Level
	Messages []string
	IDPrefix string
	IDMin    int
	IDMax    int
}

var (
	Info = Severity{
		Level: logparse.LevelInfo,
		Messages: []string{
			"User logged in successfully",
			"User performed an action",
			"User logged out",
			"Data processed successfully",
			"Configuration updated",
			"User requested data export",
			"New user account created",
			"Session started",
			"Password changed successfully",
			"File uploaded successfully",
		},
	}
	Warning = Severity{
		Level: logparse.LevelWarning,
		Messages: []string{
			"Disk space is running low",
			"High memory usage detected",
			"Unexpected behavior observed",
			"Deprecation warning for API usage",
			"Configuration file not found - using defaults",
			"Slow response time from server",
			"User attempted to access restricted area",
			"Possible data inconsistency detected",
			"Network latency observed",
			"User account nearing limit",
		},
		IDPrefix: "W",
		IDMin:    1001,
		IDMax:    1010,
	}
	Error = Severity{
		Level: logparse.LevelError,
		Messages: []string{
			"Failed to connect to the database",
			"Invalid user credentials",
			"File not found",
			"API request timed out",
			"Insufficient permissions for operation",
			"Data import failed due to format error",
			"Service unavailable",
			"Unexpected exception occurred",
			"Failed to save data",
			"Email sending failed",
		},
		IDPrefix: "E",
		IDMin:    2001,
		IDMax:    2010,
	}
)

// Line renders one entry, e.g. "2024-03-01 10:00:00, ERROR: File not found, (E2003)".
func (s Severity) Line(at time.Time, rnd *rand.Rand) string {
	message := s.Messages[rnd.Intn(len(s.Messages))]
	line := fmt.Sprintf("%s, %s: %s", at.Format(logparse.TimestampLayout), s.Level, message)
	if s.IDPrefix == "" {
		return line
	}
	id := s.IDMin + rnd.Intn(s.IDMax-s.IDMin+1)
	return fmt.Sprintf("%s, (%s%d)", line, s.IDPrefix, id)
}
