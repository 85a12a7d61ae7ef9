package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/eis"
	"eis-ingest-be/pkg/events"
	"eis-ingest-be/pkg/validation"
)

// SessionStore is the persistence the session service needs.
// *store.SessionStore satisfies it.
type SessionStore interface {
	InitializeSession(meta *eis.SessionMetadata) error
	AppendAccepted(sample *eis.Sample) error
	Reject(meta *eis.SessionMetadata, sample *eis.Sample, reason string) error
	Cleanup()
}

type ISessionService interface {
	StartSession(ctx context.Context, meta *eis.SessionMetadata) *eis.CommandResult
	PushSample(ctx context.Context, sample *eis.Sample) *eis.CommandResult
	EndSession(ctx context.Context) *eis.CommandResult
	Snapshot() SessionSnapshot
}

// SessionSnapshot is the read-only view served by GET /session.
type SessionSnapshot struct {
	Active bool             `json:"active"`
	State  eis.SessionState `json:"state"`
	Stats  *events.Stats    `json:"stats,omitempty"`
}

type sessionService struct {
	mu     sync.Mutex
	state  eis.SessionState
	store  SessionStore
	hub    *events.Hub
	bounds validation.Bounds
	logger logger.ILogger
}

func NewSessionService(store SessionStore, hub *events.Hub, bounds validation.Bounds, log logger.ILogger) ISessionService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &sessionService{
		store:  store,
		hub:    hub,
		bounds: bounds,
		logger: log,
	}
}

func (s *sessionService) StartSession(ctx context.Context, meta *eis.SessionMetadata) *eis.CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validation.ValidateMetadata(meta); err != nil {
		fault := asFault(err)
		s.logger.Warn("SessionService", "Session start rejected", map[string]interface{}{"error": err.Error()})
		s.hub.Warn(events.WarnSessionStart, fmt.Sprintf("Failed to start session: %s", fault.Message), events.SeverityCritical, nil, meta, nil)
		return eis.Nack(eis.StatusCompleted, fault.Info())
	}

	if s.state.Active() {
		prev := *s.state.Metadata
		s.logger.Warn("SessionService", "Replacing open session", map[string]interface{}{
			"previous": prev.String(),
			"received": s.state.TotalReceived,
		})
		s.hub.Warn(events.WarnSessionReset,
			fmt.Sprintf("Session %s/%s/%s was still open and has been reset", prev.BatteryID, prev.TestID, prev.StateOfCharge),
			events.SeverityWarning, nil, &prev, map[string]interface{}{"received": s.state.TotalReceived, "expected": s.state.ExpectedTotal})
		s.store.Cleanup()
		s.state.Reset()
	}

	if err := s.store.InitializeSession(meta); err != nil {
		s.store.Cleanup()
		s.logger.Error("SessionService", "Failed to initialize session storage", map[string]interface{}{"error": err.Error()})
		s.hub.Warn(events.WarnSessionStart, fmt.Sprintf("Failed to start session: %v", err), events.SeverityCritical, nil, meta, nil)
		return eis.Nack(eis.StatusCompleted, &eis.FaultInfo{Kind: eis.FaultPersistence, Message: err.Error()})
	}

	s.state.Begin(*meta)
	s.hub.TransferStarted(*s.state.Metadata, s.state.ExpectedTotal)
	s.logger.Info("SessionService", "Session started", map[string]interface{}{
		"session_id":      s.state.ID.String(),
		"battery_id":      meta.BatteryID,
		"test_id":         meta.TestID,
		"state_of_charge": meta.StateOfCharge,
		"expected":        meta.ExpectedSampleCount,
	})
	return eis.Ack(eis.StatusInProgress)
}

func (s *sessionService) PushSample(ctx context.Context, sample *eis.Sample) *eis.CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		s.logger.Warn("SessionService", "Sample received without active session", nil)
		s.hub.Warn(events.WarnNoActiveSession, "Sample received without active session", events.SeverityCritical, sample, nil, nil)
		return eis.Nack(eis.StatusCompleted, nil)
	}
	meta := *s.state.Metadata

	if err := validation.ValidateStructure(sample, &s.state); err != nil {
		fault := asFault(err)
		s.reject(&meta, sample, fault.Message)
		s.hub.Warn(events.WarnSampleValidation, fault.Message, events.SeverityWarning, sample, &meta,
			map[string]interface{}{"fault_kind": string(fault.Kind)})
		return eis.Nack(eis.StatusCompleted, fault.Info())
	}

	if err := validation.ValidateBounds(sample, &meta, s.bounds); err != nil {
		fault := asFault(err)
		s.reject(&meta, sample, fault.Message)
		s.hub.Warn(events.WarnBoundsViolation, fault.Message, events.SeverityWarning, sample, &meta, map[string]interface{}{
			"field":     fault.Field,
			"value":     eis.Float(fault.Value),
			"bound":     fault.Bound,
			"direction": string(fault.Direction),
		})
		return eis.Nack(eis.StatusInProgress, fault.Info())
	}

	if err := s.store.AppendAccepted(sample); err != nil {
		reason := fmt.Sprintf("Persistence failure: %v", err)
		s.logger.Error("SessionService", "Failed to persist accepted sample", map[string]interface{}{
			"row_index": sample.RowIndex,
			"error":     err.Error(),
		})
		s.reject(&meta, sample, reason)
		s.hub.Warn(events.WarnPersistenceFailure, reason, events.SeverityCritical, sample, &meta, nil)
		return eis.Nack(eis.StatusInProgress, &eis.FaultInfo{Kind: eis.FaultPersistence, Message: reason})
	}

	s.state.TotalReceived++
	s.hub.SampleReceived(*sample, meta, s.state.TotalReceived, s.state.ExpectedTotal, true)
	s.logger.Debug("SessionService", "Sample accepted", map[string]interface{}{"row_index": sample.RowIndex})

	if s.state.TotalReceived%10 == 0 || s.state.ExpectedTotal <= 10 {
		s.logger.Info("SessionService", "Transfer progress", map[string]interface{}{
			"received": s.state.TotalReceived,
			"expected": s.state.ExpectedTotal,
		})
	}

	if s.state.TotalReceived >= s.state.ExpectedTotal {
		return eis.Ack(eis.StatusCompleted)
	}
	return eis.Ack(eis.StatusInProgress)
}

func (s *sessionService) EndSession(ctx context.Context) *eis.CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		s.logger.Warn("SessionService", "End requested without active session", nil)
		s.hub.Warn(events.WarnSessionEnd, "Failed to end session: no active session", events.SeverityCritical, nil, nil, nil)
		return eis.Nack(eis.StatusCompleted, &eis.FaultInfo{Kind: string(validation.KindValidation), Message: "No active session."})
	}

	s.store.Cleanup()
	meta := *s.state.Metadata
	successful := s.state.TotalReceived > 0
	summary := s.hub.TransferCompleted(meta, s.state.TotalReceived, successful)

	s.logger.Info("SessionService", "Session ended", map[string]interface{}{
		"session_id": s.state.ID.String(),
		"received":   s.state.TotalReceived,
		"expected":   s.state.ExpectedTotal,
		"rejected":   summary.RejectedSamples,
		"successful": successful,
	})

	s.state.Reset()
	return eis.Ack(eis.StatusCompleted)
}

func (s *sessionService) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{Active: s.state.Active(), State: s.state}
	if s.state.Metadata != nil {
		m := *s.state.Metadata
		snap.State.Metadata = &m
	}
	if stats, ok := s.hub.Snapshot(); ok && snap.Active {
		snap.Stats = &stats
	}
	return snap
}

// reject records a refused sample and reports it to the hub as invalid.
func (s *sessionService) reject(meta *eis.SessionMetadata, sample *eis.Sample, reason string) {
	if err := s.store.Reject(meta, sample, reason); err != nil {
		s.logger.Error("SessionService", "Failed to log rejected sample", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
	}

	received := eis.Sample{RowIndex: -1}
	if sample != nil {
		received = *sample
	}
	s.hub.SampleReceived(received, *meta, s.state.TotalReceived, s.state.ExpectedTotal, false)
}

func asFault(err error) *validation.Fault {
	var f *validation.Fault
	if errors.As(err, &f) {
		return f
	}
	return &validation.Fault{Kind: validation.KindValidation, Message: err.Error()}
}
