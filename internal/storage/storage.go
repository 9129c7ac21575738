// Package storage persists uploaded voice recordings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("file too large")

// Object describes a stored blob.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// BlobStore is the collaborator the annotation lifecycle hands audio bytes to.
type BlobStore interface {
	Put(ctx context.Context, ext string, r io.Reader, maxBytes int64) (*Object, error)
	Delete(ctx context.Context, url string) error
}

// LocalStore writes blobs under dir and serves them below urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, ext string, r io.Reader, maxBytes int64) (*Object, error) {
	key := newKey(ext)
	dst := filepath.Join(s.dir, key)

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create blob: %w", err)
	}

	n, err := copyLimited(ctx, f, r, maxBytes)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return nil, err
	}

	return &Object{Key: key, URL: s.urlPrefix + "/" + key, Size: n}, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key := path.Base(url)
	if key == "." || key == "/" || !strings.HasPrefix(url, s.urlPrefix+"/") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// MemoryStore keeps blobs in memory.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, ext string, r io.Reader, maxBytes int64) (*Object, error) {
	var buf strings.Builder
	n, err := copyLimited(ctx, &buf, r, maxBytes)
	if err != nil {
		return nil, err
	}
	key := newKey(ext)
	url := "/uploads/audio/" + key

	s.mu.Lock()
	s.objects[url] = []byte(buf.String())
	s.mu.Unlock()
	return &Object{Key: key, URL: url, Size: n}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	delete(s.objects, url)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[url]
	return ok
}

func newKey(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = "webm"
	}
	return uuid.NewString() + "." + ext
}

func copyLimited(ctx context.Context, dst io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, io.LimitReader(src, maxBytes+1))
	if err != nil {
		return n, fmt.Errorf("write blob: %w", err)
	}
	if n > maxBytes {
		return n, ErrTooLarge
	}
	return n, nil
}
