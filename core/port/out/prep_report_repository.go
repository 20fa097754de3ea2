package out

import (
	"context"

	"prep_server/core/domain"
)

// =============================================================================
// ReportRepository (MongoDB - preparation reports)
// =============================================================================

// ReportRepository stores preparation reports.
type ReportRepository interface {
	Save(ctx context.Context, report *domain.PreparationReport) error
	// Latest returns the most recent report for a split, or nil when none exists.
	Latest(ctx context.Context, split string) (*domain.PreparationReport, error)
	List(ctx context.Context, limit int64) ([]*domain.PreparationReport, error)
}
