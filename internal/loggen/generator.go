package loggen

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Generator struct {
	rnd            *rand.Rand
	errorPercent   int
	warningPercent int
	now            func() time.Time
}

func NewGenerator(seed int64, errorPercent, warningPercent int) (*Generator, error) {
	if errorPercent < 0 || warningPercent < 0 || errorPercent+warningPercent > 100 {
		return nil, fmt.Errorf("error and warning percentages must be >= 0 and sum to at most 100")
	}
	return &Generator{
		rnd:            rand.New(rand.NewSource(seed)),
		errorPercent:   errorPercent,
		warningPercent: warningPercent,
		now:            time.Now,
	}, nil
}

// pick draws 1..100: the first errorPercent values are errors, the next
// warningPercent values warnings, the rest informational.
func (g *Generator) pick() Severity {
	p := g.rnd.Intn(100) + 1
	switch {
	case p <= g.errorPercent:
		return Error
	case p <= g.errorPercent+g.warningPercent:
		return Warning
	default:
		return Info
	}
}

func (g *Generator) NextLine() string {
	return g.pick().Line(g.now(), g.rnd)
}

func (g *Generator) Lines(n int) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, g.NextLine())
	}
	return lines
}

// GenerateDir writes files log_file_1.log..log_file_<files>.log into dir,
// each holding lines entries joined by newlines, and returns their paths.
func (g *Generator) GenerateDir(dir string, files, lines int) ([]string, error) {
	if files <= 0 || lines <= 0 {
		return nil, fmt.Errorf("files and lines must be > 0")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, files)
	for i := 1; i <= files; i++ {
		path := filepath.Join(dir, fmt.Sprintf("log_file_%d.log", i))
		body := strings.Join(g.Lines(lines), "\n")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
