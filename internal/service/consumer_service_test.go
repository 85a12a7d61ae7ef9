package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"eis-ingest-be/internal/dto"
	"eis-ingest-be/internal/entity"
	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/internal/repository/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryTopic = "TRANSFER_COMPLETED"

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestSummaryPipelineStoresPublishedSummaries(t *testing.T) {
	ps := newPubSub(t)
	repo := memory.NewTransferSummaryRepository(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, NewConsumerService(ps, summaryTopic, repo, logger.NewNopLogger()).Consume(ctx))

	id := uuid.New()
	payload, err := json.Marshal(dto.TransferSummaryMessage{
		Id:           id,
		BatteryId:    "B1",
		TestId:       "T1",
		TotalSamples: 28,
		ValidSamples: 27,
		IsSuccessful: true,
		EndedAt:      time.Now(),
	})
	require.NoError(t, err)

	// A payload that does not decode is acknowledged and dropped.
	require.NoError(t, NewPublisherService(summaryTopic, ps).Publish(ctx, []byte("not json")))
	require.NoError(t, NewPublisherService(summaryTopic, ps).Publish(ctx, payload))

	require.Eventually(t, func() bool {
		n, _ := repo.Count(ctx)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	found, err := repo.FindByBattery(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].Id)
	assert.Equal(t, 27, found[0].ValidSamples)
	assert.True(t, found[0].IsSuccessful)
}

type flakyRepo struct {
	*memory.TransferSummaryRepository
	failures int
}

func (f *flakyRepo) Create(ctx context.Context, s *entity.TransferSummary) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("db unavailable")
	}
	return f.TransferSummaryRepository.Create(ctx, s)
}

func TestSummaryConsumerRedeliversAfterStoreFailure(t *testing.T) {
	ps := newPubSub(t)
	repo := &flakyRepo{
		TransferSummaryRepository: memory.NewTransferSummaryRepository(0).(*memory.TransferSummaryRepository),
		failures:                  1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, NewConsumerService(ps, summaryTopic, repo, nil).Consume(ctx))

	payload, _ := json.Marshal(dto.TransferSummaryMessage{BatteryId: "B2"})
	require.NoError(t, NewPublisherService(summaryTopic, ps).Publish(ctx, payload))

	require.Eventually(t, func() bool {
		n, _ := repo.Count(ctx)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
