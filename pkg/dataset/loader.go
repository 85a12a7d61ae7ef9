// Package dataset discovers Hioki EIS exports on disk and turns each file into
// the session metadata and samples the client pushes to the server.
//
// Layout: <root>/B*/EIS measurements/Test_*/Hioki/*.csv. The battery and test
// ids come from the directory names and the state of charge from a SoC_NN
// token in the file name.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/eis"
)

// RequiredRows is the number of frequency points a complete sweep has.
const RequiredRows = 28

// UnknownSoC is used when the file name carries no SoC_NN token.
const UnknownSoC = "Unknown"

var (
	batteryPattern = regexp.MustCompile(`(?i)^B\d+$`)
	testPattern    = regexp.MustCompile(`(?i)^Test_\d+$`)
	socPattern     = regexp.MustCompile(`(?i)SoC_(\d+)`)
)

// Dataset is one source file ready to be sent as a session.
type Dataset struct {
	Meta    eis.SessionMetadata
	Samples []eis.Sample
	Path    string
}

type Loader struct {
	root   string
	logger logger.ILogger
	now    func() time.Time
}

func NewLoader(root string, log logger.ILogger) *Loader {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Loader{root: root, logger: log, now: time.Now}
}

// Load returns every usable dataset under the root, ordered by path.
// Unreadable or empty files are logged and skipped.
func (l *Loader) Load() ([]Dataset, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("data directory %s: %w", l.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", l.root)
	}

	files, err := filepath.Glob(filepath.Join(l.root, "B*", "EIS measurements", "Test_*", "Hioki", "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []Dataset
	for _, path := range files {
		ds, err := l.loadFile(path)
		if err != nil {
			l.logger.Error("Dataset", "Skipping file", map[string]interface{}{"path": path, "error": err.Error()})
			continue
		}
		out = append(out, *ds)
	}

	l.logger.Info("Dataset", "Datasets loaded", map[string]interface{}{
		"root":     l.root,
		"files":    len(files),
		"datasets": len(out),
	})
	return out, nil
}

func (l *Loader) loadFile(path string) (*Dataset, error) {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = path
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	batteryID := firstMatch(parts, batteryPattern)
	testID := firstMatch(parts, testPattern)
	if batteryID == "" || testID == "" {
		return nil, fmt.Errorf("cannot derive battery or test id from %s", rel)
	}

	fileName := filepath.Base(path)
	soc := UnknownSoC
	if m := socPattern.FindStringSubmatch(fileName); m != nil {
		soc = m[1] + "%"
	} else {
		l.logger.Warn("Dataset", "No SoC_NN token in file name", map[string]interface{}{"file": fileName})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, rows, err := l.parse(f, fileName)
	if err != nil {
		return nil, err
	}
	if rows < RequiredRows {
		l.logger.Warn("Dataset", "File has fewer rows than a full sweep", map[string]interface{}{
			"file":     fileName,
			"rows":     rows,
			"required": RequiredRows,
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no valid rows in %s", fileName)
	}

	return &Dataset{
		Meta: eis.SessionMetadata{
			BatteryID:           batteryID,
			TestID:              testID,
			StateOfCharge:       soc,
			SourceFileName:      fileName,
			ExpectedSampleCount: len(samples),
		},
		Samples: samples,
		Path:    path,
	}, nil
}

// parse reads the header plus data rows. Columns are frequency, R, X, voltage,
// temperature and range; anything after the sixth column is ignored. Row
// indices are assigned to parsed rows only, so they stay gapless.
func (l *Loader) parse(r io.Reader, fileName string) ([]eis.Sample, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var (
		samples []eis.Sample
		rows    int
		line    int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			l.logger.Warn("Dataset", "Unreadable row", map[string]interface{}{"file": fileName, "line": line, "error": err.Error()})
			continue
		}
		if blank(record) {
			continue
		}
		rows++

		if len(record) < 6 {
			l.logger.Warn("Dataset", "Row has too few columns", map[string]interface{}{"file": fileName, "line": line, "columns": len(record)})
			continue
		}
		values, err := parseFloats(record[:6])
		if err != nil {
			l.logger.Warn("Dataset", "Row has invalid numeric data", map[string]interface{}{"file": fileName, "line": line, "error": err.Error()})
			continue
		}

		samples = append(samples, eis.Sample{
			RowIndex:       len(samples) + 1,
			FrequencyHz:    values[0],
			ResistanceOhm:  values[1],
			ReactanceOhm:   values[2],
			VoltageV:       values[3],
			TemperatureC:   values[4],
			RangeOhm:       values[5],
			TimestampLocal: l.now(),
		})
	}
	return samples, rows, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func firstMatch(parts []string, re *regexp.Regexp) string {
	for _, p := range parts {
		if re.MatchString(p) {
			return p
		}
	}
	return ""
}
