package entity

import (
	"time"

	"github.com/google/uuid"
)

// TransferSummary is the stored outcome of one finished session.
type TransferSummary struct {
	Id              uuid.UUID
	BatteryId       string
	TestId          string
	StateOfCharge   string
	SourceFileName  string
	ExpectedSamples int
	TotalSamples    int
	ValidSamples    int
	RejectedSamples int
	IsSuccessful    bool
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMs      int64
	CreatedAt       time.Time
}
