// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"

	"prep_server/core/domain"
)

// DatasetInfo describes a built dataset.
type DatasetInfo struct {
	Split        string                    `json:"split"`
	Len          int                       `json:"len"`
	Distribution map[domain.ClassLabel]int `json:"distribution"`
	Report       *domain.PreparationReport `json:"report,omitempty"`
}

// DatasetService prepares datasets and serves their items.
type DatasetService interface {
	// Prepare builds (or rebuilds) the dataset for split.
	Prepare(ctx context.Context, split string) (*domain.PreparationReport, error)
	Describe(ctx context.Context, split string) (*DatasetInfo, error)
	Item(ctx context.Context, split string, index int) (domain.DatasetItem, error)
	Splits(ctx context.Context) ([]string, error)
	// Invalidate drops the cached features and the in-memory dataset of split.
	Invalidate(ctx context.Context, split string) error
}
