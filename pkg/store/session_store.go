// Package store persists accepted and rejected samples as CSV files laid out
// per battery, test and state of charge, with a process-wide fallback log for
// samples that could not be written anywhere else.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/eis"
)

const (
	AcceptedFile   = "accepted.csv"
	RejectedFile   = "rejected.csv"
	FailureLogFile = "failed_samples_log.txt"

	AcceptedHeader = "RowIndex,FrequencyHz,R_ohm,X_ohm,Voltage_V,T_degC,Range_ohm,TimestampLocal"
	RejectedHeader = "Timestamp,Reason,RowIndex,FrequencyHz,R_ohm,X_ohm,Voltage_V,T_degC,Range_ohm"
)

var (
	ErrPersistence           = errors.New("persistence failure")
	ErrSessionNotInitialized = errors.New("session not initialized")
)

type Options struct {
	DataDir          string
	FailedSamplesDir string
	Injector         FaultInjector
	Logger           logger.ILogger
}

// SessionStore writes the files of one session at a time. All writes are
// serialized and every append opens and closes its file.
type SessionStore struct {
	mu         sync.Mutex
	dataDir    string
	failedDir  string
	injector   FaultInjector
	logger     logger.ILogger
	sessionDir string
	now        func() time.Time
}

func NewSessionStore(opts Options) *SessionStore {
	if opts.DataDir == "" {
		opts.DataDir = "Data"
	}
	if opts.FailedSamplesDir == "" {
		opts.FailedSamplesDir = "FailedSamples"
	}
	if opts.Injector == nil {
		opts.Injector = NoFaults{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &SessionStore{
		dataDir:   opts.DataDir,
		failedDir: opts.FailedSamplesDir,
		injector:  opts.Injector,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// SessionDir returns Data/<battery>/<test>/<soc> for meta.
func (s *SessionStore) SessionDir(meta *eis.SessionMetadata) string {
	return filepath.Join(s.dataDir, safeComponent(meta.BatteryID), safeComponent(meta.TestID), safeComponent(meta.StateOfCharge))
}

// CurrentDir is empty while no session is initialized.
func (s *SessionStore) CurrentDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionDir
}

// InitializeSession creates the session directory and both CSV files with
// their headers. Existing files are kept and appended to.
func (s *SessionStore) InitializeSession(meta *eis.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionDir = ""
	if meta == nil {
		return fmt.Errorf("%w: nil session metadata", ErrPersistence)
	}

	dir := s.SessionDir(meta)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create session directory: %w", ErrPersistence, err)
	}
	for name, header := range map[string]string{AcceptedFile: AcceptedHeader, RejectedFile: RejectedHeader} {
		if err := ensureHeader(filepath.Join(dir, name), header); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}

	s.sessionDir = dir
	s.logger.Info("SessionStore", "Session initialized", map[string]interface{}{
		"battery_id":      meta.BatteryID,
		"test_id":         meta.TestID,
		"state_of_charge": meta.StateOfCharge,
		"path":            dir,
	})
	return nil
}

// AppendAccepted writes one row to accepted.csv.
func (s *SessionStore) AppendAccepted(sample *eis.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionDir == "" {
		return fmt.Errorf("%w: %w", ErrPersistence, ErrSessionNotInitialized)
	}
	if sample == nil {
		return fmt.Errorf("%w: nil sample", ErrPersistence)
	}
	if s.injector.ShouldFail(OpAppendAccepted) {
		return fmt.Errorf("%w: simulated disk write failure", ErrPersistence)
	}

	row := append(sampleFields(sample), sample.TimestampLocal.Local().Format(eis.TimestampLayout))
	if err := appendRecord(filepath.Join(s.sessionDir, AcceptedFile), row); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// AppendRejected writes one row to rejected.csv. sample may be nil.
func (s *SessionStore) AppendRejected(sample *eis.Sample, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionDir == "" {
		return fmt.Errorf("%w: %w", ErrPersistence, ErrSessionNotInitialized)
	}
	if s.injector.ShouldFail(OpAppendRejected) {
		return fmt.Errorf("%w: simulated disk write failure", ErrPersistence)
	}

	row := append([]string{s.now().Format(eis.TimestampLayout), reason}, sampleFields(sample)...)
	if err := appendRecord(filepath.Join(s.sessionDir, RejectedFile), row); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// LogFailure appends a line to the global failure log.
func (s *SessionStore) LogFailure(meta *eis.SessionMetadata, sample *eis.Sample, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logFailure(meta, sample, reason)
}

// Reject records a rejected sample, falling back to the failure log when the
// session file cannot be written. An error is returned only if both fail.
func (s *SessionStore) Reject(meta *eis.SessionMetadata, sample *eis.Sample, reason string) error {
	err := s.AppendRejected(sample, reason)
	if err == nil {
		return nil
	}

	s.logger.Warn("SessionStore", "Failed to log rejected sample, using fallback", map[string]interface{}{
		"error": err.Error(),
	})
	if ferr := s.LogFailure(meta, sample, reason); ferr != nil {
		return fmt.Errorf("reject fallback: %w", ferr)
	}
	return nil
}

// Cleanup forgets the current session. Files are left on disk.
func (s *SessionStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionDir = ""
}

// ReadAccepted loads every accepted sample stored for meta.
func (s *SessionStore) ReadAccepted(meta *eis.SessionMetadata) ([]eis.Sample, error) {
	f, err := os.Open(filepath.Join(s.SessionDir(meta), AcceptedFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 8

	_, _ = reader.Read() // Skip header

	var out []eis.Sample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sample, err := parseAccepted(record)
		if err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, nil
}

func (s *SessionStore) logFailure(meta *eis.SessionMetadata, sample *eis.Sample, reason string) error {
	if err := os.MkdirAll(s.failedDir, 0o755); err != nil {
		return fmt.Errorf("%w: create failure log directory: %w", ErrPersistence, err)
	}

	na := func(v string) string {
		if v == "" {
			return "N/A"
		}
		return v
	}
	var b, t, soc, file string
	if meta != nil {
		b, t, soc, file = meta.BatteryID, meta.TestID, meta.StateOfCharge, meta.SourceFileName
	}
	v := sampleFields(sample)
	line := fmt.Sprintf("%s | BatteryId: %s | TestId: %s | SoC: %s | FileName: %s | Sample: RowIndex=%s, FrequencyHz=%s, R_ohm=%s, X_ohm=%s, Voltage_V=%s, T_degC=%s, Range_ohm=%s | Error: %s\n",
		s.now().Format(eis.TimestampLayout), na(b), na(t), na(soc), na(file),
		v[0], v[1], v[2], v[3], v[4], v[5], v[6], reason)

	f, err := os.OpenFile(filepath.Join(s.failedDir, FailureLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func ensureHeader(path, header string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(header+"\n"), 0o644)
}

func appendRecord(path string, record []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// sampleFields renders the seven measurement columns. A nil sample yields
// row -1 and NaN values.
func sampleFields(s *eis.Sample) []string {
	if s == nil {
		nan := formatFloat(math.NaN())
		return []string{"-1", nan, nan, nan, nan, nan, nan}
	}
	return []string{
		strconv.Itoa(s.RowIndex),
		formatFloat(s.FrequencyHz),
		formatFloat(s.ResistanceOhm),
		formatFloat(s.ReactanceOhm),
		formatFloat(s.VoltageV),
		formatFloat(s.TemperatureC),
		formatFloat(s.RangeOhm),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseAccepted(record []string) (eis.Sample, error) {
	var s eis.Sample
	row, err := strconv.Atoi(record[0])
	if err != nil {
		return s, fmt.Errorf("row index %q: %w", record[0], err)
	}
	s.RowIndex = row

	targets := []*float64{&s.FrequencyHz, &s.ResistanceOhm, &s.ReactanceOhm, &s.VoltageV, &s.TemperatureC, &s.RangeOhm}
	for i, dst := range targets {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return s, fmt.Errorf("column %d %q: %w", i+1, record[i+1], err)
		}
		*dst = v
	}

	ts, err := time.ParseInLocation(eis.TimestampLayout, record[7], time.Local)
	if err != nil {
		return s, fmt.Errorf("timestamp %q: %w", record[7], err)
	}
	s.TimestampLocal = ts
	return s, nil
}

// safeComponent keeps ids usable as a single path element.
func safeComponent(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, v)
	if v == "" || v == "." || v == ".." {
		return "_"
	}
	return v
}
