package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	ContentTypeNDJSON  = "application/x-ndjson"
	ContentTypeParquet = "application/vnd.apache.parquet"
	ContentTypeCSV     = "text/csv"
	ContentTypeText    = "text/plain"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// URI is an s3://bucket/key location as stored in the catalog and used for
// query output locations.
type URI struct {
	Bucket string
	Key    string
}

func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if parsed.Scheme != "s3" {
		return URI{}, fmt.Errorf("location %q must use the s3:// scheme", raw)
	}
	if parsed.Host == "" {
		return URI{}, fmt.Errorf("location %q has no bucket", raw)
	}
	return URI{Bucket: parsed.Host, Key: strings.TrimPrefix(parsed.Path, "/")}, nil
}

func (u URI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// Join appends elem to the key, keeping a trailing slash when the result is
// used as a prefix.
func (u URI) Join(elem ...string) URI {
	parts := append([]string{u.Key}, elem...)
	return URI{Bucket: u.Bucket, Key: strings.TrimPrefix(path.Join(parts...), "/")}
}

// DirPrefix normalizes a key prefix so it matches whole path segments only.
func DirPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}

// PartKey returns the key of the sequence-th output file under prefix, e.g.
// parsed_logs_json/part-00003.json.
func PartKey(prefix string, sequence int, ext string) (string, error) {
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	if err := ValidateName(strings.TrimPrefix(ext, "."), "extension"); err != nil {
		return "", err
	}
	return path.Join(DirPrefix(prefix), fmt.Sprintf("part-%05d.%s", sequence, strings.TrimPrefix(ext, "."))), nil
}

// ResultKey returns the key where the result of jobID is materialized.
func ResultKey(outputPrefix, jobID string) (string, error) {
	if err := ValidateName(jobID, "job id"); err != nil {
		return "", err
	}
	return path.Join(DirPrefix(outputPrefix), jobID+".csv"), nil
}

// ValidateName checks identifiers that end up in object keys or SQL.
func ValidateName(value, field string) error {
	if !namePattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

// Namespace maps store keys to s3:// locations for one bucket and key prefix.
type Namespace struct {
	Bucket string
	Prefix string
}

func (n Namespace) URI(key string) URI {
	joined := path.Join(strings.Trim(n.Prefix, "/"), key)
	if strings.HasSuffix(key, "/") {
		joined += "/"
	}
	return URI{Bucket: n.Bucket, Key: strings.TrimPrefix(joined, "/")}
}

// Key returns the store key addressed by u, which must point into n.
func (n Namespace) Key(u URI) (string, error) {
	if u.Bucket != n.Bucket {
		return "", fmt.Errorf("location %s is outside bucket %q", u, n.Bucket)
	}
	prefix := DirPrefix(n.Prefix)
	if prefix == "" {
		return u.Key, nil
	}
	if !strings.HasPrefix(u.Key, prefix) {
		return "", fmt.Errorf("location %s is outside prefix %q", u, prefix)
	}
	return strings.TrimPrefix(u.Key, prefix), nil
}
