package subscriber

import (
	"context"
	"encoding/json"

	"eis-ingest-be/internal/dto"
	"eis-ingest-be/internal/service"
	"eis-ingest-be/pkg/events"

	"github.com/google/uuid"
)

// SummaryPublisher forwards TransferCompleted events to the summary topic.
type SummaryPublisher struct {
	publisher service.IPublisherService
}

func NewSummaryPublisher(publisher service.IPublisherService) *SummaryPublisher {
	return &SummaryPublisher{publisher: publisher}
}

func (p *SummaryPublisher) Notify(e events.Event) error {
	done, ok := e.(events.TransferCompleted)
	if !ok {
		return nil
	}

	msg := dto.TransferSummaryMessage{
		Id:              uuid.New(),
		BatteryId:       done.Session.BatteryID,
		TestId:          done.Session.TestID,
		StateOfCharge:   done.Session.StateOfCharge,
		SourceFileName:  done.Session.SourceFileName,
		ExpectedSamples: done.Session.ExpectedSampleCount,
		TotalSamples:    done.TotalSamples,
		ValidSamples:    done.ValidSamples,
		RejectedSamples: done.RejectedSamples,
		IsSuccessful:    done.IsSuccessful,
		StartedAt:       done.StartTime,
		EndedAt:         done.EndTime,
		DurationMs:      done.Duration.Milliseconds(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.publisher.Publish(context.Background(), payload)
}
