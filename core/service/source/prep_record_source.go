// Package source loads raw labeled records per split and produces the split files.
package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"
	"prep_server/pkg/fsutil"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// SplitFileExt is appended to the split name for both the local file and the blob object.
const SplitFileExt = ".json"

// Config configures a RecordSource.
type Config struct {
	CacheDir string
	// Fetch allows downloading a missing split file from the blob store.
	Fetch bool
	// Publish uploads split files written by WriteSplits to the blob store.
	Publish bool
}

// RecordSource resolves split files from the local cache, optionally backed by a blob store.
type RecordSource struct {
	cfg   Config
	blob  out.BlobStore
	posts out.PostStore
	log   zerolog.Logger
}

// NewRecordSource creates a record source. blob and posts may be nil when unused.
func NewRecordSource(cfg Config, blob out.BlobStore, posts out.PostStore, log zerolog.Logger) *RecordSource {
	return &RecordSource{
		cfg:   cfg,
		blob:  blob,
		posts: posts,
		log:   log.With().Str("component", "record_source").Logger(),
	}
}

// ObjectName returns the file and blob object name for a split.
func ObjectName(split string) string {
	return split + SplitFileExt
}

// Path returns the local cache path for a split.
func (s *RecordSource) Path(split string) string {
	return filepath.Join(s.cfg.CacheDir, ObjectName(split))
}

// Load returns the raw records of split. A missing file is fetched from the
// blob store only when fetching is enabled; otherwise Load fails with NotFound.
func (s *RecordSource) Load(ctx context.Context, split string) (domain.RecordTable, error) {
	if err := validateSplit(split); err != nil {
		return domain.RecordTable{}, err
	}
	path := s.Path(split)

	exists, err := fsutil.Exists(path)
	if err != nil {
		return domain.RecordTable{}, fmt.Errorf("failed to stat split file: %w", err)
	}

	var data []byte
	switch {
	case exists:
		data, err = os.ReadFile(path)
		if err != nil {
			return domain.RecordTable{}, fmt.Errorf("failed to read split file: %w", err)
		}
	case s.cfg.Fetch && s.blob != nil:
		data, err = s.fetch(ctx, split, path)
		if err != nil {
			return domain.RecordTable{}, err
		}
	default:
		return domain.RecordTable{}, apperr.NotFound(path).WithDetail("split", split)
	}

	var rows []domain.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.RecordTable{}, fmt.Errorf("failed to decode split file %s: %w", path, err)
	}

	s.log.Info().Str("split", split).Int("rows", len(rows)).Bool("local", exists).Msg("loaded split")
	return domain.NewRecordTable(rows), nil
}

// fetch downloads a split and caches it locally before returning its bytes.
func (s *RecordSource) fetch(ctx context.Context, split, path string) ([]byte, error) {
	data, err := s.blob.Fetch(ctx, ObjectName(split))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, apperr.UpstreamFailure("blob", fmt.Errorf("object %s is not valid json", ObjectName(split)))
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to cache split file: %w", err)
	}
	s.log.Info().Str("split", split).Str("path", path).Int("bytes", len(data)).Msg("fetched split from blob store")
	return data, nil
}

// Snapshot reads every post from the post store.
func (s *RecordSource) Snapshot(ctx context.Context) (domain.RecordTable, error) {
	if s.posts == nil {
		return domain.RecordTable{}, apperr.ConfigError("post store not configured")
	}
	rows, err := s.posts.ListPosts(ctx)
	if err != nil {
		return domain.RecordTable{}, err
	}
	s.log.Info().Int("rows", len(rows)).Msg("snapshot of posts taken")
	return domain.NewRecordTable(rows), nil
}

// WriteSplits shuffles table with seed, partitions it by ratios and writes one
// file per split. Rows inside a split keep their table order. It returns the
// row count per split.
func (s *RecordSource) WriteSplits(ctx context.Context, table domain.RecordTable, splits []string, ratios []float64, seed *int64) (map[string]int, error) {
	parts, err := Partition(table, splits, ratios, seed)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(splits))
	for i, split := range splits {
		data, err := json.Marshal(parts[i].Rows())
		if err != nil {
			return nil, fmt.Errorf("failed to encode split %s: %w", split, err)
		}
		if err := fsutil.WriteFileAtomic(s.Path(split), data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write split %s: %w", split, err)
		}
		if s.cfg.Publish && s.blob != nil {
			if err := s.blob.Put(ctx, ObjectName(split), data); err != nil {
				return nil, err
			}
		}
		counts[split] = parts[i].Len()
	}

	s.log.Info().Interface("counts", counts).Msg("wrote split files")
	return counts, nil
}

// Partition splits table into len(splits) disjoint tables sized by ratios.
// The last split takes the rounding remainder.
func Partition(table domain.RecordTable, splits []string, ratios []float64, seed *int64) ([]domain.RecordTable, error) {
	if len(splits) == 0 || len(splits) != len(ratios) {
		return nil, apperr.InvalidArgument("splits", "need one ratio per split")
	}
	var total float64
	for i, r := range ratios {
		if err := validateSplit(splits[i]); err != nil {
			return nil, err
		}
		if r < 0 || math.IsNaN(r) {
			return nil, apperr.InvalidArgument("ratios", fmt.Sprintf("ratio for %s must be >= 0", splits[i]))
		}
		total += r
	}
	if math.Abs(total-1) > 1e-6 {
		return nil, apperr.InvalidArgument("ratios", fmt.Sprintf("ratios sum to %v, want 1", total))
	}

	sd := time.Now().UnixNano()
	if seed != nil {
		sd = *seed
	}
	perm := rand.New(rand.NewSource(sd)).Perm(table.Len())

	assign := make([]int, table.Len())
	start := 0
	for i, r := range ratios {
		end := start + int(math.Floor(r*float64(table.Len())))
		if i == len(ratios)-1 {
			end = table.Len()
		}
		for _, p := range perm[start:end] {
			assign[p] = i
		}
		start = end
	}

	parts := make([]domain.RecordTable, len(splits))
	for i := range splits {
		idx := i
		parts[i] = table.Filter(func(row int, _ domain.Record) bool { return assign[row] == idx })
	}
	return parts, nil
}

// Splits lists the split files present in the cache directory.
func (s *RecordSource) Splits() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.CacheDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), SplitFileExt) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, strings.TrimSuffix(e.Name(), SplitFileExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

func validateSplit(split string) error {
	if split == "" || strings.ContainsAny(split, `/\`) || split == "." || split == ".." {
		return apperr.InvalidArgument("split", fmt.Sprintf("invalid split name %q", split))
	}
	return nil
}
