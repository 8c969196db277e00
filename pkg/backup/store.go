package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store persists encoded artifacts. Artifacts are never overwritten or
// deleted by the tool.
type Store interface {
	// Save persists data under name and returns a reference Load accepts.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Load retrieves an artifact by reference.
	Load(ctx context.Context, ref string) ([]byte, error)
	// List returns the references of every stored artifact, oldest name first.
	List(ctx context.Context) ([]string, error)
}

const (
	StoreFile = "file"
	StoreS3   = "s3"
	StoreGCS  = "gcs"
)

// StoreConfig selects and configures the artifact backend.
type StoreConfig struct {
	Type     string `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=file s3 gcs"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Region   string `mapstructure:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// DefaultDir is where file artifacts go when no directory is configured.
const DefaultDir = "backups"

// NewStore creates the store described by cfg. An empty type means file.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", StoreFile:
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultDir
		}
		fs, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case StoreS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backup storage")
		}
		s3Store, err := NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	case StoreGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for gcs backup storage")
		}
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backup storage type %q", cfg.Type)
	}
}

// FileStore keeps artifacts as JSON files in one directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure backup dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes data atomically. If name is taken a numeric suffix is added.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.freePath(name)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to commit backup: %w", err)
	}
	return path, nil
}

func (s *FileStore) freePath(name string) string {
	path := filepath.Join(s.baseDir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(s.baseDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Load accepts a path or a bare file name inside the store directory.
func (s *FileStore) Load(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := ref
	if _, err := os.Stat(path); err != nil && !filepath.IsAbs(ref) {
		path = filepath.Join(s.baseDir, ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", ref, err)
	}
	return data, nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var refs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		refs = append(refs, filepath.Join(s.baseDir, e.Name()))
	}
	sort.Strings(refs)
	return refs, nil
}
