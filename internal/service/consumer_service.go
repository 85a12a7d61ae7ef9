package service

import (
	"context"
	"encoding/json"

	"eis-ingest-be/internal/dto"
	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService stores the transfer summaries published when sessions end.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	repo       contract.TransferSummaryRepository
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	repo contract.TransferSummaryRepository,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		repo:       repo,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TransferSummaryMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal transfer summary", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	summary := &entity.TransferSummary{
		Id:              payload.Id,
		BatteryId:       payload.BatteryId,
		TestId:          payload.TestId,
		StateOfCharge:   payload.StateOfCharge,
		SourceFileName:  payload.SourceFileName,
		ExpectedSamples: payload.ExpectedSamples,
		TotalSamples:    payload.TotalSamples,
		ValidSamples:    payload.ValidSamples,
		RejectedSamples: payload.RejectedSamples,
		IsSuccessful:    payload.IsSuccessful,
		StartedAt:       payload.StartedAt,
		EndedAt:         payload.EndedAt,
		DurationMs:      payload.DurationMs,
	}
	if summary.Id == uuid.Nil {
		summary.Id = uuid.New()
	}

	if err := cs.repo.Create(ctx, summary); err != nil {
		cs.logger.Error("ConsumerService", "Failed to store transfer summary", map[string]interface{}{
			"battery_id": payload.BatteryId,
			"error":      err.Error(),
		})
		msg.Nack() // Nack for retriable errors
		return
	}

	cs.logger.Info("ConsumerService", "Transfer summary stored", map[string]interface{}{
		"id":         summary.Id.String(),
		"battery_id": summary.BatteryId,
		"test_id":    summary.TestId,
	})
	msg.Ack()
}
