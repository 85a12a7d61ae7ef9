package events

import (
	"time"

	"eis-ingest-be/pkg/eis"
)

// Event defines the contract for all hub notifications.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TRANSFER_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeTransferStarted   = "TRANSFER_STARTED"
	TypeSampleReceived    = "SAMPLE_RECEIVED"
	TypeTransferCompleted = "TRANSFER_COMPLETED"
	TypeWarning           = "WARNING"
	TypeTemperatureSpike  = "TEMPERATURE_SPIKE"
	TypeDeviation         = "AVERAGE_DEVIATION"
)

// Severity of a warning.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Warning codes.
const (
	WarnVoltageLow         = "VOLTAGE_LOW"
	WarnImpedanceLow       = "IMPEDANCE_LOW"
	WarnRangeDeviation     = "RANGE_DEVIATION"
	WarnTemperatureRange   = "TEMPERATURE_OUT_OF_RANGE"
	WarnFrequencyHigh      = "FREQUENCY_HIGH"
	WarnBoundsViolation    = "BOUNDS_VIOLATION"
	WarnSampleValidation   = "SAMPLE_VALIDATION_ERROR"
	WarnNoActiveSession    = "NO_ACTIVE_SESSION"
	WarnSessionStart       = "SESSION_START_ERROR"
	WarnSessionEnd         = "SESSION_END_ERROR"
	WarnSessionReset       = "SESSION_RESET"
	WarnPersistenceFailure = "PERSISTENCE_FAILURE"
)

type TransferStarted struct {
	Session         eis.SessionMetadata
	ExpectedSamples int
	StartTime       time.Time
}

func (e TransferStarted) EventType() string    { return TypeTransferStarted }
func (e TransferStarted) Timestamp() time.Time { return e.StartTime }
func (e TransferStarted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session":          sessionPayload(&e.Session),
		"expected_samples": e.ExpectedSamples,
		"start_time":       e.StartTime,
	}
}

type SampleReceived struct {
	Sample       eis.Sample
	Session      eis.SessionMetadata
	SampleCount  int
	TotalSamples int
	IsValid      bool
	ReceivedTime time.Time
}

func (e SampleReceived) EventType() string    { return TypeSampleReceived }
func (e SampleReceived) Timestamp() time.Time { return e.ReceivedTime }
func (e SampleReceived) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sample":        samplePayload(&e.Sample),
		"session":       sessionPayload(&e.Session),
		"sample_count":  e.SampleCount,
		"total_samples": e.TotalSamples,
		"is_valid":      e.IsValid,
	}
}

type TransferCompleted struct {
	Session         eis.SessionMetadata
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	TotalSamples    int
	ValidSamples    int
	RejectedSamples int
	IsSuccessful    bool
}

func (e TransferCompleted) EventType() string    { return TypeTransferCompleted }
func (e TransferCompleted) Timestamp() time.Time { return e.EndTime }
func (e TransferCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session":          sessionPayload(&e.Session),
		"start_time":       e.StartTime,
		"end_time":         e.EndTime,
		"duration_ms":      e.Duration.Milliseconds(),
		"total_samples":    e.TotalSamples,
		"valid_samples":    e.ValidSamples,
		"rejected_samples": e.RejectedSamples,
		"is_successful":    e.IsSuccessful,
	}
}

// Warning is a generic threshold or processing notification.
type Warning struct {
	WarningType string
	Message     string
	Severity    Severity
	Sample      *eis.Sample
	Session     *eis.SessionMetadata
	Details     map[string]interface{}
	WarningTime time.Time
}

func (e Warning) EventType() string    { return TypeWarning }
func (e Warning) Timestamp() time.Time { return e.WarningTime }
func (e Warning) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"warning_type": e.WarningType,
		"message":      e.Message,
		"severity":     e.Severity,
	}
	if e.Sample != nil {
		p["sample"] = samplePayload(e.Sample)
	}
	if e.Session != nil {
		p["session"] = sessionPayload(e.Session)
	}
	for k, v := range e.Details {
		p[k] = v
	}
	return p
}

// Direction of a temperature spike.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
)

type TemperatureSpike struct {
	Sample     eis.Sample
	Session    eis.SessionMetadata
	Direction  Direction
	Previous   float64
	Current    float64
	Delta      float64
	Threshold  float64
	DetectedAt time.Time
}

func (e TemperatureSpike) EventType() string    { return TypeTemperatureSpike }
func (e TemperatureSpike) Timestamp() time.Time { return e.DetectedAt }
func (e TemperatureSpike) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sample":    samplePayload(&e.Sample),
		"session":   sessionPayload(&e.Session),
		"direction": e.Direction,
		"previous":  e.Previous,
		"current":   e.Current,
		"delta":     e.Delta,
		"threshold": e.Threshold,
	}
}

// Metric names used by Deviation.
const (
	MetricVoltage    = "voltage"
	MetricResistance = "resistance"
	MetricImpedance  = "impedance"
)

// Deviation reports a sample metric that drifted from the session running mean.
type Deviation struct {
	Sample     eis.Sample
	Session    eis.SessionMetadata
	Metric     string
	Current    float64
	Mean       float64
	Percent    float64
	Threshold  float64
	DetectedAt time.Time
}

func (e Deviation) EventType() string    { return TypeDeviation }
func (e Deviation) Timestamp() time.Time { return e.DetectedAt }
func (e Deviation) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sample":            samplePayload(&e.Sample),
		"session":           sessionPayload(&e.Session),
		"metric":            e.Metric,
		"current":           e.Current,
		"mean":              e.Mean,
		"deviation_percent": e.Percent,
		"threshold":         e.Threshold,
	}
}

// BaseEvent is an event rebuilt from a decoded payload, e.g. one received
// from the message bus.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string               { return e.Type }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }

func sessionPayload(m *eis.SessionMetadata) map[string]interface{} {
	return map[string]interface{}{
		"battery_id":            m.BatteryID,
		"test_id":               m.TestID,
		"state_of_charge":       m.StateOfCharge,
		"source_file_name":      m.SourceFileName,
		"expected_sample_count": m.ExpectedSampleCount,
	}
}

// samplePayload keeps non-finite values as strings so the payload stays JSON-encodable.
func samplePayload(s *eis.Sample) map[string]interface{} {
	return map[string]interface{}{
		"row_index":       s.RowIndex,
		"frequency_hz":    eis.Float(s.FrequencyHz),
		"resistance_ohm":  eis.Float(s.ResistanceOhm),
		"reactance_ohm":   eis.Float(s.ReactanceOhm),
		"voltage_v":       eis.Float(s.VoltageV),
		"temperature_c":   eis.Float(s.TemperatureC),
		"range_ohm":       eis.Float(s.RangeOhm),
		"timestamp_local": s.TimestampLocal,
	}
}
