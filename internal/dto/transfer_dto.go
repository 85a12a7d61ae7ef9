package dto

import (
	"time"

	"github.com/google/uuid"
)

// TransferSummaryMessage is published on the summary topic when a session ends.
type TransferSummaryMessage struct {
	Id              uuid.UUID `json:"id"`
	BatteryId       string    `json:"battery_id"`
	TestId          string    `json:"test_id"`
	StateOfCharge   string    `json:"state_of_charge"`
	SourceFileName  string    `json:"source_file_name"`
	ExpectedSamples int       `json:"expected_samples"`
	TotalSamples    int       `json:"total_samples"`
	ValidSamples    int       `json:"valid_samples"`
	RejectedSamples int       `json:"rejected_samples"`
	IsSuccessful    bool      `json:"is_successful"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMs      int64     `json:"duration_ms"`
}

type TransferSummaryResponse struct {
	Id              uuid.UUID `json:"id"`
	BatteryId       string    `json:"battery_id"`
	TestId          string    `json:"test_id"`
	StateOfCharge   string    `json:"state_of_charge"`
	SourceFileName  string    `json:"source_file_name"`
	TotalSamples    int       `json:"total_samples"`
	ValidSamples    int       `json:"valid_samples"`
	RejectedSamples int       `json:"rejected_samples"`
	IsSuccessful    bool      `json:"is_successful"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMs      int64     `json:"duration_ms"`
}

type StatisticsResponse struct {
	Counters  map[string]int64          `json:"counters"`
	Transfers []TransferSummaryResponse `json:"transfers"`
	Stored    int64                     `json:"stored"`
}

type TransferQuery struct {
	BatteryId string `query:"battery_id"`
	Limit     int    `query:"limit" validate:"gte=0,lte=1000"`
}
