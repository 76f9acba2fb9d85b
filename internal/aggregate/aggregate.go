package aggregate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loglens/loglens/internal/query"
)

// CountColumn is the column name that marks a result as already grouped.
const CountColumn = "count"

var (
	ErrColumnNotFound = errors.New("aggregate: column not found")
	ErrMalformedCount = errors.New("aggregate: malformed count")

	errNegativeCount = errors.New("count is negative")
)

type ColumnError struct {
	Column  string
	Headers []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found in result (columns: %s)", e.Column, strings.Join(e.Headers, ", "))
}

func (e *ColumnError) Is(target error) bool {
	return target == ErrColumnNotFound
}

type CountError struct {
	Row   int
	Value string
	Err   error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("row %d: malformed count %q: %v", e.Row, e.Value, e.Err)
}

func (e *CountError) Is(target error) bool {
	return target == ErrMalformedCount
}

func (e *CountError) Unwrap() error {
	return e.Err
}

type Bucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Aggregate groups rs by groupColumn. Buckets are returned in order of first
// occurrence. When rs already carries a count column the values are taken as
// pre-computed group sizes and summed per label; otherwise rows are counted.
func Aggregate(rs query.ResultSet, groupColumn string) ([]Bucket, error) {
	groupIdx := rs.ColumnIndex(groupColumn)
	if groupIdx < 0 {
		return nil, &ColumnError{Column: groupColumn, Headers: rs.Headers}
	}
	countIdx := -1
	if groupColumn != CountColumn {
		countIdx = rs.ColumnIndex(CountColumn)
	}

	buckets := make([]Bucket, 0)
	positions := make(map[string]int)
	for rowIdx, row := range rs.Rows {
		label := cell(row, groupIdx)
		increment := int64(1)
		if countIdx >= 0 {
			raw := strings.TrimSpace(cell(row, countIdx))
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, &CountError{Row: rowIdx, Value: raw, Err: err}
			}
			if value < 0 {
				return nil, &CountError{Row: rowIdx, Value: raw, Err: errNegativeCount}
			}
			increment = value
		}

		pos, ok := positions[label]
		if !ok {
			pos = len(buckets)
			positions[label] = pos
			buckets = append(buckets, Bucket{Label: label})
		}
		buckets[pos].Count += increment
	}
	return buckets, nil
}

// ToResultSet renders buckets as a [groupColumn, count] result so that
// aggregating it again yields the same buckets.
func ToResultSet(buckets []Bucket, groupColumn string) query.ResultSet {
	rows := make([][]string, 0, len(buckets))
	for _, bucket := range buckets {
		rows = append(rows, []string{bucket.Label, strconv.FormatInt(bucket.Count, 10)})
	}
	return query.ResultSet{Headers: []string{groupColumn, CountColumn}, Rows: rows}
}

type Series struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

func NewSeries(buckets []Bucket) Series {
	series := Series{Labels: make([]string, 0, len(buckets)), Values: make([]int64, 0, len(buckets))}
	for _, bucket := range buckets {
		series.Labels = append(series.Labels, bucket.Label)
		series.Values = append(series.Values, bucket.Count)
	}
	return series
}

func (s Series) Total() int64 {
	var total int64
	for _, value := range s.Values {
		total += value
	}
	return total
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
