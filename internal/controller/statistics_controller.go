package controller

import (
	"eis-ingest-be/internal/dto"
	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/pkg/serverutils"
	"eis-ingest-be/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
)

// CounterSource is satisfied by *subscriber.Statistics.
type CounterSource interface {
	Snapshot() map[string]int64
}

type IStatisticsController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
}

type statisticsController struct {
	counters  CounterSource
	summaries contract.TransferSummaryRepository
}

// NewStatisticsController accepts a nil counters source when statistics are disabled.
func NewStatisticsController(counters CounterSource, summaries contract.TransferSummaryRepository) IStatisticsController {
	return &statisticsController{counters: counters, summaries: summaries}
}

func (c *statisticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/eis/v1")
	h.Get("/statistics", c.Show)
}

func (c *statisticsController) Show(ctx *fiber.Ctx) error {
	query := dto.TransferQuery{Limit: 50}
	if err := ctx.QueryParser(&query); err != nil {
		return serverutils.BadRequest(err)
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	var (
		list []*entity.TransferSummary
		err  error
	)
	if query.BatteryId != "" {
		list, err = c.summaries.FindByBattery(ctx.UserContext(), query.BatteryId)
	} else {
		list, err = c.summaries.FindRecent(ctx.UserContext(), query.Limit)
	}
	if err != nil {
		return err
	}
	stored, err := c.summaries.Count(ctx.UserContext())
	if err != nil {
		return err
	}

	res := dto.StatisticsResponse{
		Counters:  map[string]int64{},
		Transfers: make([]dto.TransferSummaryResponse, 0, len(list)),
		Stored:    stored,
	}
	if c.counters != nil {
		res.Counters = c.counters.Snapshot()
	}
	for _, s := range list {
		res.Transfers = append(res.Transfers, dto.TransferSummaryResponse{
			Id:              s.Id,
			BatteryId:       s.BatteryId,
			TestId:          s.TestId,
			StateOfCharge:   s.StateOfCharge,
			SourceFileName:  s.SourceFileName,
			TotalSamples:    s.TotalSamples,
			ValidSamples:    s.ValidSamples,
			RejectedSamples: s.RejectedSamples,
			IsSuccessful:    s.IsSuccessful,
			StartedAt:       s.StartedAt,
			EndedAt:         s.EndedAt,
			DurationMs:      s.DurationMs,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Statistics", res))
}
