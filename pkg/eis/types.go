package eis

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionMetadata identifies one ingestion session (battery / test / state of charge).
type SessionMetadata struct {
	BatteryID           string `json:"battery_id" validate:"required,notblank"`
	TestID              string `json:"test_id" validate:"required,notblank"`
	StateOfCharge       string `json:"state_of_charge" validate:"required,notblank"`
	SourceFileName      string `json:"source_file_name"`
	ExpectedSampleCount int    `json:"expected_sample_count" validate:"gt=0"`
}

func (m SessionMetadata) String() string {
	return fmt.Sprintf("BatteryId: %s, TestId: %s, SoC: %s, File: %s, Rows: %d",
		m.BatteryID, m.TestID, m.StateOfCharge, m.SourceFileName, m.ExpectedSampleCount)
}

// Sample is a single impedance measurement row.
type Sample struct {
	RowIndex       int
	FrequencyHz    float64
	ResistanceOhm  float64
	ReactanceOhm   float64
	VoltageV       float64
	TemperatureC   float64
	RangeOhm       float64
	TimestampLocal time.Time
}

func (s Sample) String() string {
	return fmt.Sprintf("RowIndex: %d, FrequencyHz: %g, R_ohm: %g, X_ohm: %g, Voltage_V: %g, T_degC: %g, Range_ohm: %g, TimestampLocal: %s",
		s.RowIndex, s.FrequencyHz, s.ResistanceOhm, s.ReactanceOhm, s.VoltageV, s.TemperatureC, s.RangeOhm,
		s.TimestampLocal.Format(TimestampLayout))
}

// TimestampLayout is the wall-clock layout used in persisted rows and logs.
const TimestampLayout = "2006-01-02 15:04:05"

// SessionState is the server-side view of the single open session.
// A zero SessionState (nil Metadata) means no session is open.
type SessionState struct {
	ID                   uuid.UUID        `json:"id"`
	Metadata             *SessionMetadata `json:"metadata"`
	LastAcceptedRowIndex int              `json:"last_accepted_row_index"`
	TotalReceived        int              `json:"total_received"`
	ExpectedTotal        int              `json:"expected_total"`
	StartedAt            time.Time        `json:"started_at"`
}

// Active reports whether a session is open.
func (s *SessionState) Active() bool {
	return s != nil && s.Metadata != nil
}

// Reset clears the state back to idle.
func (s *SessionState) Reset() {
	*s = SessionState{}
}

// Begin opens a new session, discarding whatever was open before.
func (s *SessionState) Begin(meta SessionMetadata) {
	m := meta
	*s = SessionState{
		ID:            uuid.New(),
		Metadata:      &m,
		ExpectedTotal: meta.ExpectedSampleCount,
		StartedAt:     time.Now(),
	}
}
