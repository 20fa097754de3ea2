// Package cachestore implements out.CacheStore on the local filesystem and on Redis.
package cachestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/fsutil"
)

const featureFileExt = ".feat"

// escapeName percent-encodes every byte outside [A-Za-z0-9.-]. The mapping is
// injective and never yields a path or key separator ('/', '_', ':').
func escapeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// FileStore keeps one file per feature key under a directory.
type FileStore struct {
	dir string
}

var _ out.CacheStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file that holds key, e.g. distilbert-base-uncased_510_train.feat.
func (s *FileStore) Path(key domain.FeatureKey) string {
	name := fmt.Sprintf("%s_%d_%s%s",
		escapeName(key.Tokenizer),
		key.BlockSize,
		escapeName(key.Split),
		featureFileExt)
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Get(_ context.Context, key domain.FeatureKey) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, true, nil
}

func (s *FileStore) Put(_ context.Context, key domain.FeatureKey, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.Path(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key domain.FeatureKey) error {
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}
