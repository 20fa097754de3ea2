package dataset

import (
	"context"
	"sync"

	"prep_server/core/domain"
	"prep_server/core/port/in"
)

// SplitLister lists splits available to build.
type SplitLister interface {
	Splits() ([]string, error)
}

// Service builds datasets on first use and keeps them in memory.
type Service struct {
	builder *Builder
	lister  SplitLister
	base    BuildOptions

	mu      sync.Mutex
	built   map[string]*Dataset
	reports map[string]*domain.PreparationReport
}

var _ in.DatasetService = (*Service)(nil)

// NewService creates a service. base carries every option except Split.
func NewService(builder *Builder, lister SplitLister, base BuildOptions) *Service {
	return &Service{
		builder: builder,
		lister:  lister,
		base:    base,
		built:   make(map[string]*Dataset),
		reports: make(map[string]*domain.PreparationReport),
	}
}

// Prepare always rebuilds; the feature cache decides whether encoding runs.
func (s *Service) Prepare(ctx context.Context, split string) (*domain.PreparationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, report, err := s.build(ctx, split)
	return report, err
}

func (s *Service) Describe(ctx context.Context, split string) (*in.DatasetInfo, error) {
	ds, report, err := s.dataset(ctx, split)
	if err != nil {
		return nil, err
	}
	return &in.DatasetInfo{
		Split:        split,
		Len:          ds.Len(),
		Distribution: ds.Distribution(),
		Report:       report,
	}, nil
}

func (s *Service) Item(ctx context.Context, split string, index int) (domain.DatasetItem, error) {
	ds, _, err := s.dataset(ctx, split)
	if err != nil {
		return domain.DatasetItem{}, err
	}
	return ds.Get(index)
}

func (s *Service) Splits(context.Context) ([]string, error) {
	return s.lister.Splits()
}

func (s *Service) Invalidate(ctx context.Context, split string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := s.base
	opts.Split = split
	if err := s.builder.Invalidate(ctx, opts); err != nil {
		return err
	}
	delete(s.built, split)
	delete(s.reports, split)
	return nil
}

// Dataset returns the built dataset for split, building it if needed.
func (s *Service) Dataset(ctx context.Context, split string) (*Dataset, error) {
	ds, _, err := s.dataset(ctx, split)
	return ds, err
}

func (s *Service) dataset(ctx context.Context, split string) (*Dataset, *domain.PreparationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.built[split]; ok {
		return ds, s.reports[split], nil
	}
	return s.build(ctx, split)
}

// build must be called with mu held.
func (s *Service) build(ctx context.Context, split string) (*Dataset, *domain.PreparationReport, error) {
	opts := s.base
	opts.Split = split
	ds, report, err := s.builder.Build(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	s.built[split] = ds
	s.reports[split] = report
	return ds, report, nil
}
