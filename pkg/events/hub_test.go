package events

import (
	"errors"
	"testing"
	"time"

	"eis-ingest-be/pkg/eis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) Notify(e Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) spikes() []TemperatureSpike {
	var out []TemperatureSpike
	for _, e := range r.events {
		if s, ok := e.(TemperatureSpike); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) deviations() []Deviation {
	var out []Deviation
	for _, e := range r.events {
		if d, ok := e.(Deviation); ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *recorder) warnings(code string) []Warning {
	var out []Warning
	for _, e := range r.events {
		if w, ok := e.(Warning); ok && w.WarningType == code {
			out = append(out, w)
		}
	}
	return out
}

var testMeta = eis.SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%", ExpectedSampleCount: 10}

func sample(row int, voltage, temp float64) eis.Sample {
	return eis.Sample{
		RowIndex:      row,
		FrequencyHz:   1000,
		ResistanceOhm: 0.12,
		ReactanceOhm:  -0.01,
		VoltageV:      voltage,
		TemperatureC:  temp,
		RangeOhm:      0.12,
	}
}

func newTestHub() (*Hub, *recorder) {
	h := NewHub(DefaultThresholds(), nil)
	rec := &recorder{}
	h.Subscribe("recorder", rec)
	return h, rec
}

func TestHubTemperatureSpikeAgainstPreviousValidSample(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 3)

	for i, temp := range []float64{25.0, 25.0, 31.5} {
		h.SampleReceived(sample(i+1, 3.7, temp), testMeta, i+1, 3, true)
	}

	spikes := rec.spikes()
	require.Len(t, spikes, 1)
	assert.Equal(t, Rising, spikes[0].Direction)
	assert.InDelta(t, 6.5, spikes[0].Delta, 1e-9)
	assert.Equal(t, 25.0, spikes[0].Previous)
	assert.Equal(t, 31.5, spikes[0].Current)
	assert.Equal(t, 3, spikes[0].Sample.RowIndex)
}

func TestHubFallingSpike(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 2)
	h.SampleReceived(sample(1, 3.7, 30), testMeta, 1, 2, true)
	h.SampleReceived(sample(2, 3.7, 20), testMeta, 2, 2, true)

	spikes := rec.spikes()
	require.Len(t, spikes, 1)
	assert.Equal(t, Falling, spikes[0].Direction)
	assert.InDelta(t, -10, spikes[0].Delta, 1e-9)
}

func TestHubSingleSampleNeverSpikes(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 1)
	h.SampleReceived(sample(1, 3.7, 55), testMeta, 1, 1, true)

	assert.Empty(t, rec.spikes())
}

func TestHubRejectedSamplesDoNotMovePreviousReference(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 3)
	h.SampleReceived(sample(1, 3.7, 25), testMeta, 1, 3, true)
	h.SampleReceived(sample(2, 3.7, 45), testMeta, 2, 3, false)
	h.SampleReceived(sample(3, 3.7, 26), testMeta, 3, 3, true)

	assert.Empty(t, rec.spikes())
}

func TestHubDeviationStartsAtMinimumSampleCount(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 6)

	// An outlier before the minimum count is ignored.
	voltages := []float64{3.7, 6.0, 3.7, 3.7}
	for i, v := range voltages {
		h.SampleReceived(sample(i+1, v, 25), testMeta, i+1, 6, true)
	}
	assert.Empty(t, rec.deviations())

	// Fifth sample: mean 4.16, 3.7 is 11% away.
	h.SampleReceived(sample(5, 3.7, 25), testMeta, 5, 6, true)
	assert.Empty(t, rec.deviations())

	// Sixth sample: mean includes itself, 7.0 vs 4.63 is above 25%.
	h.SampleReceived(sample(6, 7.0, 25), testMeta, 6, 6, true)
	devs := rec.deviations()
	require.Len(t, devs, 1)
	assert.Equal(t, MetricVoltage, devs[0].Metric)
	assert.InDelta(t, (3.7*4+6.0+7.0)/6, devs[0].Mean, 1e-9)
	assert.Greater(t, devs[0].Percent, 25.0)
}

func TestHubThresholdWarnings(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 1)

	s := sample(1, 3.2, 70)
	s.ResistanceOhm = 0.01
	s.ReactanceOhm = 0.01
	s.FrequencyHz = 200000
	s.RangeOhm = 1
	h.SampleReceived(s, testMeta, 1, 1, true)

	require.Len(t, rec.warnings(WarnVoltageLow), 1)
	require.Len(t, rec.warnings(WarnImpedanceLow), 1)
	require.Len(t, rec.warnings(WarnRangeDeviation), 1)
	require.Len(t, rec.warnings(WarnFrequencyHigh), 1)

	temp := rec.warnings(WarnTemperatureRange)
	require.Len(t, temp, 1)
	assert.Equal(t, SeverityCritical, temp[0].Severity)
	require.NotNil(t, temp[0].Session)
	assert.Equal(t, "B1", temp[0].Session.BatteryID)
}

func TestHubRangeDeviationSkippedWithoutRange(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 1)
	s := sample(1, 3.7, 25)
	s.RangeOhm = 0
	h.SampleReceived(s, testMeta, 1, 1, true)

	assert.Empty(t, rec.warnings(WarnRangeDeviation))
}

func TestHubRejectedSamplesSkipThresholdChecks(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 1)
	h.SampleReceived(sample(1, 1.0, 25), testMeta, 1, 1, false)

	assert.Empty(t, rec.warnings(WarnVoltageLow))
	require.Len(t, rec.events, 2)
	received, ok := rec.events[1].(SampleReceived)
	require.True(t, ok)
	assert.False(t, received.IsValid)
}

func TestHubTransferCompletedSummary(t *testing.T) {
	h, rec := newTestHub()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	h.now = func() time.Time { return clock }

	h.TransferStarted(testMeta, 3)
	h.SampleReceived(sample(1, 3.7, 25), testMeta, 1, 3, true)
	h.SampleReceived(sample(2, 3.7, 25), testMeta, 2, 3, false)
	h.SampleReceived(sample(3, 3.7, 25), testMeta, 3, 3, true)

	stats, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 2, stats.Valid)
	assert.InDelta(t, 3.7, stats.MeanVoltage, 1e-9)

	clock = start.Add(2 * time.Second)
	done := h.TransferCompleted(testMeta, 3, true)

	assert.Equal(t, 2, done.ValidSamples)
	assert.Equal(t, 1, done.RejectedSamples)
	assert.Equal(t, 3, done.TotalSamples)
	assert.Equal(t, 2*time.Second, done.Duration)
	assert.True(t, done.IsSuccessful)
	assert.Equal(t, done, rec.events[len(rec.events)-1])

	_, ok = h.Snapshot()
	assert.False(t, ok)
}

func TestHubTransferStartedResetsPreviousSession(t *testing.T) {
	h, rec := newTestHub()
	h.TransferStarted(testMeta, 1)
	h.SampleReceived(sample(1, 3.7, 25), testMeta, 1, 1, true)

	h.TransferStarted(testMeta, 1)
	h.SampleReceived(sample(1, 3.7, 40), testMeta, 1, 1, true)

	assert.Empty(t, rec.spikes())
}

func TestHubDispatchOrderAndIsolation(t *testing.T) {
	h := NewHub(DefaultThresholds(), nil)
	var order []string

	h.Subscribe("first", SubscriberFunc(func(e Event) error {
		order = append(order, "first")
		return nil
	}))
	h.Subscribe("boom", SubscriberFunc(func(e Event) error {
		order = append(order, "boom")
		panic("subscriber exploded")
	}))
	h.Subscribe("failing", SubscriberFunc(func(e Event) error {
		order = append(order, "failing")
		return errors.New("sink unavailable")
	}))
	h.Subscribe("last", SubscriberFunc(func(e Event) error {
		order = append(order, "last")
		return nil
	}))

	require.NotPanics(t, func() { h.TransferStarted(testMeta, 1) })
	assert.Equal(t, []string{"first", "boom", "failing", "last"}, order)

	order = nil
	h.Unsubscribe("boom")
	h.Warn(WarnSessionReset, "reset", SeverityWarning, nil, nil, nil)
	assert.Equal(t, []string{"first", "failing", "last"}, order)
}
