package events

import (
	"fmt"
	"math"
	"sync"
	"time"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/eis"
)

// Fixed operating limits carried over from the bench setup.
const (
	minOperatingTempC = -20.0
	maxOperatingTempC = 60.0
	highFrequencyHz   = 100000.0
)

// Thresholds configures the anomaly checks run for every valid sample.
type Thresholds struct {
	VoltageThreshold     float64
	ImpedanceThreshold   float64
	DeviationPercent     float64
	TemperatureDelta     float64
	MinSamplesForAverage int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		VoltageThreshold:     3.5,
		ImpedanceThreshold:   0.05,
		DeviationPercent:     25,
		TemperatureDelta:     5,
		MinSamplesForAverage: 5,
	}
}

// Subscriber receives hub notifications. Notify runs synchronously on the
// caller's goroutine while the hub lock is held, so it must return quickly and
// must not call back into the hub.
type Subscriber interface {
	Notify(e Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(e Event) error

func (f SubscriberFunc) Notify(e Event) error { return f(e) }

type registration struct {
	name string
	sub  Subscriber
}

// sessionStats is the running state of the session currently being transferred.
type sessionStats struct {
	session   eis.SessionMetadata
	startTime time.Time
	valid     int
	rejected  int

	sumVoltage    float64
	sumResistance float64
	sumImpedance  float64

	previous *eis.Sample
}

// Stats is a read-only copy of the running statistics.
type Stats struct {
	Session        eis.SessionMetadata `json:"session"`
	StartTime      time.Time           `json:"start_time"`
	Valid          int                 `json:"valid"`
	Rejected       int                 `json:"rejected"`
	MeanVoltage    float64             `json:"mean_voltage"`
	MeanResistance float64             `json:"mean_resistance"`
	MeanImpedance  float64             `json:"mean_impedance"`
}

// Hub tracks per-session statistics and fans notifications out to subscribers
// in registration order.
type Hub struct {
	mu          sync.Mutex
	thresholds  Thresholds
	subscribers []registration
	stats       *sessionStats
	logger      logger.ILogger
	now         func() time.Time
}

func NewHub(thresholds Thresholds, log logger.ILogger) *Hub {
	if thresholds.MinSamplesForAverage <= 0 {
		thresholds.MinSamplesForAverage = DefaultThresholds().MinSamplesForAverage
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		thresholds: thresholds,
		logger:     log,
		now:        time.Now,
	}
}

// Subscribe registers s. Subscribers are notified in the order they subscribed.
func (h *Hub) Subscribe(name string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, registration{name: name, sub: s})
}

// Unsubscribe removes every subscriber registered under name.
func (h *Hub) Unsubscribe(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.subscribers[:0]
	for _, r := range h.subscribers {
		if r.name != name {
			kept = append(kept, r)
		}
	}
	h.subscribers = kept
}

func (h *Hub) Thresholds() Thresholds {
	return h.thresholds
}

// TransferStarted resets the per-session statistics and notifies subscribers.
func (h *Hub) TransferStarted(meta eis.SessionMetadata, expectedSamples int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.stats = &sessionStats{session: meta, startTime: now}
	h.dispatch(TransferStarted{Session: meta, ExpectedSamples: expectedSamples, StartTime: now})
}

// SampleReceived records a processed sample. Only valid samples feed the
// running sums, the threshold checks and the previous-sample reference.
func (h *Hub) SampleReceived(sample eis.Sample, meta eis.SessionMetadata, sampleCount, totalSamples int, valid bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.current(meta)
	now := h.now()

	if !valid {
		st.rejected++
		h.dispatch(SampleReceived{Sample: sample, Session: meta, SampleCount: sampleCount, TotalSamples: totalSamples, IsValid: false, ReceivedTime: now})
		return
	}

	z := impedance(&sample)
	st.valid++
	st.sumVoltage += sample.VoltageV
	st.sumResistance += sample.ResistanceOhm
	st.sumImpedance += z

	h.dispatch(SampleReceived{Sample: sample, Session: meta, SampleCount: sampleCount, TotalSamples: totalSamples, IsValid: true, ReceivedTime: now})

	h.checkThresholds(&sample, &meta, z)
	h.checkAverages(st, &sample, &meta, z, now)
	h.checkTemperature(st, &sample, &meta, now)

	prev := sample
	st.previous = &prev
}

// TransferCompleted emits the session summary and drops the running state.
func (h *Hub) TransferCompleted(meta eis.SessionMetadata, totalSamples int, successful bool) TransferCompleted {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.current(meta)
	end := h.now()
	evt := TransferCompleted{
		Session:         meta,
		StartTime:       st.startTime,
		EndTime:         end,
		Duration:        end.Sub(st.startTime),
		TotalSamples:    totalSamples,
		ValidSamples:    st.valid,
		RejectedSamples: st.rejected,
		IsSuccessful:    successful,
	}
	h.dispatch(evt)
	h.stats = nil
	return evt
}

// Warn emits a Warning. sample and meta may be nil.
func (h *Hub) Warn(warningType, message string, severity Severity, sample *eis.Sample, meta *eis.SessionMetadata, details map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warn(warningType, message, severity, sample, meta, details)
}

// Snapshot returns the running statistics of the current session, if any.
func (h *Hub) Snapshot() (Stats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stats == nil {
		return Stats{}, false
	}
	st := h.stats
	out := Stats{Session: st.session, StartTime: st.startTime, Valid: st.valid, Rejected: st.rejected}
	if st.valid > 0 {
		n := float64(st.valid)
		out.MeanVoltage = st.sumVoltage / n
		out.MeanResistance = st.sumResistance / n
		out.MeanImpedance = st.sumImpedance / n
	}
	return out, true
}

func (h *Hub) current(meta eis.SessionMetadata) *sessionStats {
	if h.stats == nil {
		h.stats = &sessionStats{session: meta, startTime: h.now()}
	}
	return h.stats
}

func (h *Hub) warn(warningType, message string, severity Severity, sample *eis.Sample, meta *eis.SessionMetadata, details map[string]interface{}) {
	w := Warning{
		WarningType: warningType,
		Message:     message,
		Severity:    severity,
		Details:     details,
		WarningTime: h.now(),
	}
	if sample != nil {
		s := *sample
		w.Sample = &s
	}
	if meta != nil {
		m := *meta
		w.Session = &m
	}
	h.dispatch(w)
}

func (h *Hub) checkThresholds(s *eis.Sample, meta *eis.SessionMetadata, z float64) {
	t := h.thresholds

	if s.VoltageV < t.VoltageThreshold {
		h.warn(WarnVoltageLow,
			fmt.Sprintf("Voltage (%.3fV) below threshold (%gV)", s.VoltageV, t.VoltageThreshold),
			SeverityWarning, s, meta, map[string]interface{}{"value": s.VoltageV, "threshold": t.VoltageThreshold})
	}

	if z < t.ImpedanceThreshold {
		h.warn(WarnImpedanceLow,
			fmt.Sprintf("Total impedance (%.6fΩ) below threshold (%gΩ)", z, t.ImpedanceThreshold),
			SeverityWarning, s, meta, map[string]interface{}{"value": z, "threshold": t.ImpedanceThreshold})
	}

	if s.TemperatureC < minOperatingTempC || s.TemperatureC > maxOperatingTempC {
		h.warn(WarnTemperatureRange,
			fmt.Sprintf("Temperature (%.1f°C) outside normal operating range (%g°C to %g°C)", s.TemperatureC, minOperatingTempC, maxOperatingTempC),
			SeverityCritical, s, meta, map[string]interface{}{"value": s.TemperatureC})
	}

	if s.FrequencyHz > highFrequencyHz {
		h.warn(WarnFrequencyHigh,
			fmt.Sprintf("Frequency (%.0fHz) unusually high", s.FrequencyHz),
			SeverityInfo, s, meta, map[string]interface{}{"value": s.FrequencyHz})
	}

	if s.RangeOhm > 0 && z > 0 {
		dev := math.Abs((s.RangeOhm-z)/z) * 100
		if dev > t.DeviationPercent {
			h.warn(WarnRangeDeviation,
				fmt.Sprintf("Range deviation (%.1f%%) exceeds threshold (%g%%)", dev, t.DeviationPercent),
				SeverityWarning, s, meta, map[string]interface{}{"deviation_percent": dev, "threshold": t.DeviationPercent})
		}
	}
}

// checkAverages compares the sample against the session means, which already
// include the sample itself. Nothing fires until MinSamplesForAverage valid
// samples have been seen.
func (h *Hub) checkAverages(st *sessionStats, s *eis.Sample, meta *eis.SessionMetadata, z float64, now time.Time) {
	if st.valid < h.thresholds.MinSamplesForAverage {
		return
	}
	n := float64(st.valid)
	metrics := []struct {
		name    string
		current float64
		mean    float64
	}{
		{MetricVoltage, s.VoltageV, st.sumVoltage / n},
		{MetricResistance, s.ResistanceOhm, st.sumResistance / n},
		{MetricImpedance, z, st.sumImpedance / n},
	}
	for _, m := range metrics {
		if m.mean == 0 {
			continue
		}
		pct := math.Abs(m.current-m.mean) / math.Abs(m.mean) * 100
		if pct > h.thresholds.DeviationPercent {
			h.dispatch(Deviation{
				Sample:     *s,
				Session:    *meta,
				Metric:     m.name,
				Current:    m.current,
				Mean:       m.mean,
				Percent:    pct,
				Threshold:  h.thresholds.DeviationPercent,
				DetectedAt: now,
			})
		}
	}
}

func (h *Hub) checkTemperature(st *sessionStats, s *eis.Sample, meta *eis.SessionMetadata, now time.Time) {
	if st.previous == nil {
		return
	}
	delta := s.TemperatureC - st.previous.TemperatureC
	if math.Abs(delta) <= h.thresholds.TemperatureDelta {
		return
	}
	dir := Rising
	if delta < 0 {
		dir = Falling
	}
	h.dispatch(TemperatureSpike{
		Sample:     *s,
		Session:    *meta,
		Direction:  dir,
		Previous:   st.previous.TemperatureC,
		Current:    s.TemperatureC,
		Delta:      delta,
		Threshold:  h.thresholds.TemperatureDelta,
		DetectedAt: now,
	})
}

// dispatch must be called with h.mu held.
func (h *Hub) dispatch(e Event) {
	for _, r := range h.subscribers {
		h.notify(r, e)
	}
}

func (h *Hub) notify(r registration, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Hub", "Subscriber panicked", map[string]interface{}{
				"subscriber": r.name,
				"event":      e.EventType(),
				"error":      fmt.Sprint(rec),
			})
		}
	}()
	if err := r.sub.Notify(e); err != nil {
		h.logger.Warn("Hub", "Subscriber failed", map[string]interface{}{
			"subscriber": r.name,
			"event":      e.EventType(),
			"error":      err.Error(),
		})
	}
}

func impedance(s *eis.Sample) float64 {
	return math.Sqrt(s.ResistanceOhm*s.ResistanceOhm + s.ReactanceOhm*s.ReactanceOhm)
}
