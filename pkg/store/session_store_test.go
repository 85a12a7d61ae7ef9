package store

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eis-ingest-be/pkg/eis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, injector FaultInjector) (*SessionStore, string) {
	t.Helper()
	root := t.TempDir()
	s := NewSessionStore(Options{
		DataDir:          filepath.Join(root, "Data"),
		FailedSamplesDir: filepath.Join(root, "FailedSamples"),
		Injector:         injector,
	})
	return s, root
}

func testMeta() *eis.SessionMetadata {
	return &eis.SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%", SourceFileName: "hk_50.csv", ExpectedSampleCount: 3}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestInitializeSessionCreatesLayoutWithHeaders(t *testing.T) {
	s, root := newTestStore(t, nil)
	require.NoError(t, s.InitializeSession(testMeta()))

	dir := filepath.Join(root, "Data", "B1", "T1", "50%")
	assert.Equal(t, dir, s.CurrentDir())
	assert.Equal(t, []string{AcceptedHeader}, readLines(t, filepath.Join(dir, AcceptedFile)))
	assert.Equal(t, []string{RejectedHeader}, readLines(t, filepath.Join(dir, RejectedFile)))

	// Re-initializing keeps existing rows.
	require.NoError(t, s.AppendAccepted(&eis.Sample{RowIndex: 1, FrequencyHz: 1}))
	require.NoError(t, s.InitializeSession(testMeta()))
	assert.Len(t, readLines(t, filepath.Join(dir, AcceptedFile)), 2)
}

func TestAcceptedRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, nil)
	meta := testMeta()
	require.NoError(t, s.InitializeSession(meta))

	ts := time.Date(2024, 3, 1, 10, 15, 30, 0, time.Local)
	in := []eis.Sample{
		{RowIndex: 1, FrequencyHz: 1000, ResistanceOhm: 0.123456789012, ReactanceOhm: -0.0042, VoltageV: 3.712, TemperatureC: 25.1, RangeOhm: 0.3, TimestampLocal: ts},
		{RowIndex: 2, FrequencyHz: 0.1, ResistanceOhm: 1e-5, ReactanceOhm: 0, VoltageV: 4.2, TemperatureC: -3, RangeOhm: 3, TimestampLocal: ts.Add(time.Second)},
	}
	for i := range in {
		require.NoError(t, s.AppendAccepted(&in[i]))
	}

	out, err := s.ReadAccepted(meta)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].RowIndex, out[i].RowIndex)
		assert.Equal(t, in[i].ResistanceOhm, out[i].ResistanceOhm)
		assert.Equal(t, in[i].ReactanceOhm, out[i].ReactanceOhm)
		assert.Equal(t, in[i].FrequencyHz, out[i].FrequencyHz)
		assert.True(t, in[i].TimestampLocal.Equal(out[i].TimestampLocal))
	}
}

func TestAppendRequiresInitializedSession(t *testing.T) {
	s, _ := newTestStore(t, nil)

	err := s.AppendAccepted(&eis.Sample{RowIndex: 1})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, ErrSessionNotInitialized)

	require.NoError(t, s.InitializeSession(testMeta()))
	s.Cleanup()
	assert.Empty(t, s.CurrentDir())
	assert.ErrorIs(t, s.AppendRejected(nil, "x"), ErrSessionNotInitialized)
}

func TestAppendKeepsOSErrorInChain(t *testing.T) {
	s, _ := newTestStore(t, nil)
	meta := testMeta()
	require.NoError(t, s.InitializeSession(meta))
	require.NoError(t, os.RemoveAll(s.SessionDir(meta)))

	err := s.AppendAccepted(&eis.Sample{RowIndex: 1})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	err = s.AppendRejected(&eis.Sample{RowIndex: 2}, "bad")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAcceptedTimestampKeepsInstantAcrossZones(t *testing.T) {
	s, _ := newTestStore(t, nil)
	meta := testMeta()
	require.NoError(t, s.InitializeSession(meta))

	zones := []*time.Location{time.UTC, time.FixedZone("UTC+5", 5*3600), time.FixedZone("UTC-7", -7*3600)}
	in := make([]eis.Sample, len(zones))
	for i, loc := range zones {
		in[i] = eis.Sample{RowIndex: i + 1, FrequencyHz: 1, TimestampLocal: time.Date(2025, 7, 3, 12, 0, i, 0, loc)}
		require.NoError(t, s.AppendAccepted(&in[i]))
	}

	out, err := s.ReadAccepted(meta)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.True(t, in[i].TimestampLocal.Equal(out[i].TimestampLocal),
			"row %d: wrote %s, read %s", i+1, in[i].TimestampLocal, out[i].TimestampLocal)
	}
}

func TestRejectedRowQuotesReasonAndHandlesNilSample(t *testing.T) {
	s, _ := newTestStore(t, nil)
	meta := testMeta()
	require.NoError(t, s.InitializeSession(meta))

	require.NoError(t, s.AppendRejected(nil, "Sample is null."))
	require.NoError(t, s.AppendRejected(&eis.Sample{RowIndex: 4, ResistanceOhm: math.NaN()}, "R_ohm must be a real number, got NaN"))

	lines := readLines(t, filepath.Join(s.SessionDir(meta), RejectedFile))
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Sample is null.,-1,NaN")
	assert.Contains(t, lines[2], `"R_ohm must be a real number, got NaN",4,0,NaN`)
}

func TestRejectFallsBackToFailureLog(t *testing.T) {
	s, root := newTestStore(t, FailOn{OpAppendRejected: true})
	meta := testMeta()
	require.NoError(t, s.InitializeSession(meta))

	require.NoError(t, s.Reject(meta, &eis.Sample{RowIndex: 7, VoltageV: 3.7}, "disk full"))

	assert.Len(t, readLines(t, filepath.Join(s.SessionDir(meta), RejectedFile)), 1)
	lines := readLines(t, filepath.Join(root, "FailedSamples", FailureLogFile))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "BatteryId: B1 | TestId: T1 | SoC: 50% | FileName: hk_50.csv")
	assert.Contains(t, lines[0], "RowIndex=7")
	assert.Contains(t, lines[0], "Voltage_V=3.7")
	assert.True(t, strings.HasSuffix(lines[0], "| Error: disk full"))
}

func TestRejectWithoutSessionUsesFailureLog(t *testing.T) {
	s, root := newTestStore(t, nil)

	require.NoError(t, s.Reject(nil, nil, "no session"))

	lines := readLines(t, filepath.Join(root, "FailedSamples", FailureLogFile))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "BatteryId: N/A")
	assert.Contains(t, lines[0], "RowIndex=-1")
}

func TestRejectReturnsErrorWhenFallbackFails(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewSessionStore(Options{
		DataDir:          filepath.Join(root, "Data"),
		FailedSamplesDir: filepath.Join(blocker, "FailedSamples"),
		Injector:         FailOn{OpAppendRejected: true},
	})
	require.NoError(t, s.InitializeSession(testMeta()))

	err := s.Reject(testMeta(), &eis.Sample{RowIndex: 1}, "boom")
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestFaultInjection(t *testing.T) {
	s, _ := newTestStore(t, FailOn{OpAppendAccepted: true})
	require.NoError(t, s.InitializeSession(testMeta()))

	err := s.AppendAccepted(&eis.Sample{RowIndex: 1})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, s.AppendRejected(&eis.Sample{RowIndex: 1}, "persistence"))

	assert.IsType(t, NoFaults{}, InjectorForRate(0))
	assert.IsType(t, &RandomFaultInjector{}, InjectorForRate(0.5))

	always := NewRandomFaultInjector(1, 1)
	assert.True(t, always.ShouldFail(OpAppendAccepted))
	assert.False(t, always.ShouldFail(OpAppendRejected))
}

func TestSessionDirSanitizesComponents(t *testing.T) {
	s := NewSessionStore(Options{DataDir: "Data"})
	dir := s.SessionDir(&eis.SessionMetadata{BatteryID: "../B1", TestID: "..", StateOfCharge: "50%"})
	assert.Equal(t, filepath.Join("Data", ".._B1", "_", "50%"), dir)
}
