package upload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/storage"
)

type FileResult struct {
	Path string `json:"path"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Err  error  `json:"-"`
}

type Summary struct {
	Uploaded []FileResult
	Failed   []FileResult
	Bytes    int64
}

type Uploader struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func New(store storage.ObjectStore, logger *slog.Logger) (*Uploader, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Uploader{store: store, logger: logger}, nil
}

// Dir uploads every regular file below dir to prefix, keeping the relative
// path with "/" separators. A file that cannot be read or stored is logged and
// reported in Summary.Failed; only a walk failure or a cancelled context
// aborts the run.
func (u *Uploader) Dir(ctx context.Context, dir, prefix string) (Summary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("stat upload dir: %w", err)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%s is not a directory", dir)
	}

	var summary Summary
	err = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		result := FileResult{Path: p, Key: ObjectKey(prefix, rel)}
		result.Size, result.Err = u.putFile(ctx, p, result.Key)
		observability.ObserveUploadFile(result.Err == nil)
		if result.Err != nil {
			u.logger.WarnContext(ctx, "upload file failed",
				slog.String("path", p),
				slog.String("key", result.Key),
				slog.Any("error", result.Err),
			)
			summary.Failed = append(summary.Failed, result)
			return nil
		}
		u.logger.DebugContext(ctx, "uploaded file", slog.String("path", p), slog.String("key", result.Key))
		summary.Uploaded = append(summary.Uploaded, result)
		summary.Bytes += result.Size
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("walk %s: %w", dir, err)
	}

	u.logger.InfoContext(ctx, "upload finished",
		slog.String("dir", dir),
		slog.String("prefix", prefix),
		slog.Int("uploaded", len(summary.Uploaded)),
		slog.Int("failed", len(summary.Failed)),
		slog.Int64("bytes", summary.Bytes),
	)
	return summary, nil
}

func (u *Uploader) putFile(ctx context.Context, p, key string) (int64, error) {
	file, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if _, err := u.store.Put(ctx, key, file, stat.Size(), storage.PutOptions{ContentType: contentType(p)}); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// ObjectKey joins prefix and a path relative to the upload root.
func ObjectKey(prefix, rel string) string {
	return path.Join(storage.DirPrefix(prefix), filepath.ToSlash(rel))
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json", ".ndjson":
		return storage.ContentTypeNDJSON
	case ".parquet":
		return storage.ContentTypeParquet
	case ".csv":
		return storage.ContentTypeCSV
	default:
		return storage.ContentTypeText
	}
}
