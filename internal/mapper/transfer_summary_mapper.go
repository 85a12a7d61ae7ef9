package mapper

import (
	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/model"
)

type TransferSummaryMapper struct{}

func NewTransferSummaryMapper() *TransferSummaryMapper {
	return &TransferSummaryMapper{}
}

func (m *TransferSummaryMapper) ToEntity(s *model.TransferSummary) *entity.TransferSummary {
	if s == nil {
		return nil
	}
	return &entity.TransferSummary{
		Id:              s.Id,
		BatteryId:       s.BatteryId,
		TestId:          s.TestId,
		StateOfCharge:   s.StateOfCharge,
		SourceFileName:  s.SourceFileName,
		ExpectedSamples: s.ExpectedSamples,
		TotalSamples:    s.TotalSamples,
		ValidSamples:    s.ValidSamples,
		RejectedSamples: s.RejectedSamples,
		IsSuccessful:    s.IsSuccessful,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationMs:      s.DurationMs,
		CreatedAt:       s.CreatedAt,
	}
}

func (m *TransferSummaryMapper) ToModel(s *entity.TransferSummary) *model.TransferSummary {
	if s == nil {
		return nil
	}
	return &model.TransferSummary{
		Id:              s.Id,
		BatteryId:       s.BatteryId,
		TestId:          s.TestId,
		StateOfCharge:   s.StateOfCharge,
		SourceFileName:  s.SourceFileName,
		ExpectedSamples: s.ExpectedSamples,
		TotalSamples:    s.TotalSamples,
		ValidSamples:    s.ValidSamples,
		RejectedSamples: s.RejectedSamples,
		IsSuccessful:    s.IsSuccessful,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationMs:      s.DurationMs,
		CreatedAt:       s.CreatedAt,
	}
}

func (m *TransferSummaryMapper) ToEntities(summaries []*model.TransferSummary) []*entity.TransferSummary {
	entities := make([]*entity.TransferSummary, len(summaries))
	for i, s := range summaries {
		entities[i] = m.ToEntity(s)
	}
	return entities
}
