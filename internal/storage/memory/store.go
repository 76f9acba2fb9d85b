// Package memory is an in-process ObjectStore used by tests and local runs
// without an S3 endpoint.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loglens/loglens/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data     []byte
	modified time.Time
}

func New() *Store {
	return &Store{objects: map[string]object{}}
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, modified: time.Now().UTC()}
	return info(key, s.objects[key]), nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return info(key, obj), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ObjectInfo, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, info(key, obj))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Bytes returns a copy of the object stored at key.
func (s *Store) Bytes(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

func info(key string, obj object) storage.ObjectInfo {
	sum := md5.Sum(obj.data)
	return storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ETag: hex.EncodeToString(sum[:]), LastModified: obj.modified}
}
