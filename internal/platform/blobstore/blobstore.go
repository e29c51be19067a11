// Package blobstore archives raw hospital export files uploaded to the
// aggregation service. Uploads are parsed and normalized before any records
// reach the database; the original file is kept here so a flagged record can
// always be traced back to the exact bytes a hospital sent. It defines the
// Store interface, an in-memory implementation for testing and development,
// and a disk-backed implementation used by the server.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound    = errors.New("uploaded file not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed archive size in bytes (10 MB), matching
// the default request body limit on the upload endpoint.
const MaxFileSize = 10 * 1024 * 1024

// keyTimeFormat prefixes archive keys so a directory listing sorts
// chronologically.
const keyTimeFormat = "20060102_150405"

// SavedFile describes an archived upload.
type SavedFile struct {
	Key      string    `json:"key"`
	FileName string    `json:"file_name"`
	Size     int64     `json:"size"`
	Hash     string    `json:"hash"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store defines the contract for upload archive backends.
type Store interface {
	Save(ctx context.Context, fileName string, content io.Reader) (*SavedFile, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *SavedFile, error)
	List(ctx context.Context) ([]*SavedFile, error)
	Delete(ctx context.Context, key string) error
}

// sanitizeFileName reduces a client-supplied file name to a bare base name.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// readLimited reads content up to MaxFileSize and returns the bytes and
// their SHA-256 hash.
func readLimited(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	h := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", h), nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedFile struct {
	meta    SavedFile
	content []byte
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*storedFile
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*storedFile),
	}
}

func (s *MemoryStore) Save(_ context.Context, fileName string, content io.Reader) (*SavedFile, error) {
	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, ErrMissingFileName
	}

	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := time.Now().UTC().Format(keyTimeFormat) + "_" + name
	if _, exists := s.files[key]; exists {
		key = key + "_" + uuid.New().String()[:8]
	}

	meta := SavedFile{
		Key:      key,
		FileName: name,
		Size:     int64(len(data)),
		Hash:     hash,
		SavedAt:  time.Now().UTC(),
	}
	s.files[key] = &storedFile{meta: meta, content: data}

	out := meta
	return &out, nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, *SavedFile, error) {
	s.mu.RLock()
	f, ok := s.files[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrFileNotFound
	}

	meta := f.meta
	return io.NopCloser(bytes.NewReader(f.content)), &meta, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*SavedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*SavedFile, 0, len(s.files))
	for _, f := range s.files {
		meta := f.meta
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return ErrFileNotFound
	}
	delete(s.files, key)
	return nil
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore persists archived uploads as flat files under a directory. Keys
// double as file names.
type DiskStore struct {
	dir string
	mu  sync.Mutex
}

// NewDiskStore creates the directory if needed and returns a DiskStore.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(_ context.Context, fileName string, content io.Reader) (*SavedFile, error) {
	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, ErrMissingFileName
	}

	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := time.Now().UTC().Format(keyTimeFormat) + "_" + name
	path := filepath.Join(s.dir, key)
	if _, err := os.Stat(path); err == nil {
		key = key + "_" + uuid.New().String()[:8]
		path = filepath.Join(s.dir, key)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", key, err)
	}

	return &SavedFile{
		Key:      key,
		FileName: name,
		Size:     int64(len(data)),
		Hash:     hash,
		SavedAt:  time.Now().UTC(),
	}, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, *SavedFile, error) {
	if sanitizeFileName(key) != key {
		return nil, nil, ErrFileNotFound
	}

	path := filepath.Join(s.dir, key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("opening %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", key, err)
	}

	return f, &SavedFile{
		Key:      key,
		FileName: originalFileName(key),
		Size:     info.Size(),
		SavedAt:  info.ModTime().UTC(),
	}, nil
}

func (s *DiskStore) List(_ context.Context) ([]*SavedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading uploads directory: %w", err)
	}

	out := make([]*SavedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, &SavedFile{
			Key:      e.Name(),
			FileName: originalFileName(e.Name()),
			Size:     info.Size(),
			SavedAt:  info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	if sanitizeFileName(key) != key {
		return ErrFileNotFound
	}

	path := filepath.Join(s.dir, key)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return ErrFileNotFound
	}
	return err
}

// originalFileName strips the timestamp prefix from an archive key, falling
// back to the key itself for names that predate the key scheme.
func originalFileName(key string) string {
	if len(key) > len(keyTimeFormat)+1 && key[len(keyTimeFormat)] == '_' {
		if _, err := time.Parse(keyTimeFormat, key[:len(keyTimeFormat)]); err == nil {
			return key[len(keyTimeFormat)+1:]
		}
	}
	return key
}
