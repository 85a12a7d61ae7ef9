package memory

import (
	"context"
	"sort"
	"time"

	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// TransferSummaryRepository keeps summaries in process memory. It is used
// when no database is configured.
type TransferSummaryRepository struct {
	cache *cache.Cache
}

func NewTransferSummaryRepository(retention time.Duration) contract.TransferSummaryRepository {
	if retention <= 0 {
		retention = cache.NoExpiration
	}
	// Purge expired summaries every 10 minutes
	c := cache.New(retention, 10*time.Minute)
	return &TransferSummaryRepository{
		cache: c,
	}
}

func (r *TransferSummaryRepository) Create(ctx context.Context, summary *entity.TransferSummary) error {
	if summary.Id == uuid.Nil {
		summary.Id = uuid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now()
	}
	stored := *summary
	r.cache.Set(summary.Id.String(), &stored, cache.DefaultExpiration)
	return nil
}

func (r *TransferSummaryRepository) FindRecent(ctx context.Context, limit int) ([]*entity.TransferSummary, error) {
	all := r.all(func(*entity.TransferSummary) bool { return true })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *TransferSummaryRepository) FindByBattery(ctx context.Context, batteryId string) ([]*entity.TransferSummary, error) {
	return r.all(func(s *entity.TransferSummary) bool { return s.BatteryId == batteryId }), nil
}

func (r *TransferSummaryRepository) Count(ctx context.Context) (int64, error) {
	return int64(r.cache.ItemCount()), nil
}

// all returns copies of the matching summaries, newest first.
func (r *TransferSummaryRepository) all(match func(*entity.TransferSummary) bool) []*entity.TransferSummary {
	var out []*entity.TransferSummary
	for _, item := range r.cache.Items() {
		s := item.Object.(*entity.TransferSummary)
		if match(s) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	return out
}
