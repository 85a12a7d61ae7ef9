package contract

import (
	"context"

	"eis-ingest-be/internal/entity"
)

type TransferSummaryRepository interface {
	Create(ctx context.Context, summary *entity.TransferSummary) error
	// FindRecent returns up to limit summaries, newest first. limit <= 0 means all.
	FindRecent(ctx context.Context, limit int) ([]*entity.TransferSummary, error)
	FindByBattery(ctx context.Context, batteryId string) ([]*entity.TransferSummary, error)
	Count(ctx context.Context) (int64, error)
}
