package implementation

import (
	"context"

	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/mapper"
	"eis-ingest-be/internal/model"
	"eis-ingest-be/internal/repository/contract"
	"eis-ingest-be/internal/repository/specification"

	"gorm.io/gorm"
)

type TransferSummaryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TransferSummaryMapper
}

func NewTransferSummaryRepository(db *gorm.DB) contract.TransferSummaryRepository {
	return &TransferSummaryRepositoryImpl{
		db:     db,
		mapper: mapper.NewTransferSummaryMapper(),
	}
}

func (r *TransferSummaryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TransferSummaryRepositoryImpl) Create(ctx context.Context, summary *entity.TransferSummary) error {
	m := r.mapper.ToModel(summary)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*summary = *r.mapper.ToEntity(m)
	return nil
}

func (r *TransferSummaryRepositoryImpl) FindRecent(ctx context.Context, limit int) ([]*entity.TransferSummary, error) {
	return r.findAll(ctx,
		specification.NewestFirst,
		specification.Limit{N: limit},
	)
}

func (r *TransferSummaryRepositoryImpl) FindByBattery(ctx context.Context, batteryId string) ([]*entity.TransferSummary, error) {
	return r.findAll(ctx,
		specification.ByBatteryID{BatteryID: batteryId},
		specification.NewestFirst,
	)
}

func (r *TransferSummaryRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TransferSummary{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TransferSummaryRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TransferSummary, error) {
	var models []*model.TransferSummary
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
