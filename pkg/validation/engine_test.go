package validation

import (
	"math"
	"testing"

	"eis-ingest-be/pkg/eis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSample(row int) *eis.Sample {
	return &eis.Sample{
		RowIndex:      row,
		FrequencyHz:   1000,
		ResistanceOhm: 0.12,
		ReactanceOhm:  -0.01,
		VoltageV:      3.7,
		TemperatureC:  25,
		RangeOhm:      0.3,
	}
}

func TestValidateMetadata(t *testing.T) {
	good := eis.SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%", ExpectedSampleCount: 3}

	tests := []struct {
		name    string
		mutate  func(m *eis.SessionMetadata)
		wantErr string
	}{
		{name: "valid", mutate: func(m *eis.SessionMetadata) {}},
		{name: "empty battery", mutate: func(m *eis.SessionMetadata) { m.BatteryID = "" }, wantErr: "BatteryID cannot be null or empty."},
		{name: "blank test", mutate: func(m *eis.SessionMetadata) { m.TestID = "   " }, wantErr: "TestID cannot be null or empty."},
		{name: "empty soc", mutate: func(m *eis.SessionMetadata) { m.StateOfCharge = "" }, wantErr: "StateOfCharge cannot be null or empty."},
		{name: "zero count", mutate: func(m *eis.SessionMetadata) { m.ExpectedSampleCount = 0 }, wantErr: "ExpectedSampleCount must be greater than 0."},
		{name: "source file optional", mutate: func(m *eis.SessionMetadata) { m.SourceFileName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := good
			tt.mutate(&m)
			err := ValidateMetadata(&m)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var f *Fault
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.wantErr, f.Message)
		})
	}

	assert.True(t, IsValidation(ValidateMetadata(nil)))
}

func TestValidateStructureOrderOfChecks(t *testing.T) {
	tests := []struct {
		name     string
		sample   *eis.Sample
		wantKind Kind
	}{
		{name: "nil sample", sample: nil, wantKind: KindValidation},
		{name: "NaN resistance", sample: func() *eis.Sample { s := validSample(1); s.ResistanceOhm = math.NaN(); return s }(), wantKind: KindDataFormat},
		{name: "infinite temperature", sample: func() *eis.Sample { s := validSample(1); s.TemperatureC = math.Inf(1); return s }(), wantKind: KindDataFormat},
		{name: "NaN voltage", sample: func() *eis.Sample { s := validSample(1); s.VoltageV = math.NaN(); return s }(), wantKind: KindDataFormat},
		{name: "zero frequency", sample: func() *eis.Sample { s := validSample(1); s.FrequencyHz = 0; return s }(), wantKind: KindValidation},
		{name: "data format beats ordering", sample: func() *eis.Sample { s := validSample(7); s.ResistanceOhm = math.NaN(); return s }(), wantKind: KindDataFormat},
		{name: "frequency beats ordering", sample: func() *eis.Sample { s := validSample(7); s.FrequencyHz = -1; return s }(), wantKind: KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &eis.SessionState{}
			err := ValidateStructure(tt.sample, state)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, 0, state.LastAcceptedRowIndex)
		})
	}
}

func TestValidateStructureRejectsAnyNonConsecutiveRow(t *testing.T) {
	state := &eis.SessionState{}
	require.NoError(t, ValidateStructure(validSample(1), state))
	require.NoError(t, ValidateStructure(validSample(2), state))

	for _, row := range []int{0, 1, 2, 4, 10, -3} {
		err := ValidateStructure(validSample(row), state)
		assert.True(t, IsValidation(err), "row %d", row)
		assert.Equal(t, 2, state.LastAcceptedRowIndex, "row %d must not move the cursor", row)
	}

	require.NoError(t, ValidateStructure(validSample(3), state))
	assert.Equal(t, 3, state.LastAcceptedRowIndex)
}

func TestValidateBounds(t *testing.T) {
	bounds := Bounds{ResistanceMin: 0.05, ResistanceMax: 0.3, RangeMin: 0.1, RangeMax: 3}
	meta := &eis.SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%"}

	tests := []struct {
		name      string
		r, rng    float64
		wantField string
		wantDir   Direction
		wantBound float64
	}{
		{name: "inside", r: 0.1, rng: 1},
		{name: "resistance above max", r: 0.5, rng: 1, wantField: "ResistanceOhm", wantDir: AboveMax, wantBound: 0.3},
		{name: "resistance below min", r: 0.01, rng: 1, wantField: "ResistanceOhm", wantDir: BelowMin, wantBound: 0.05},
		{name: "range above max", r: 0.1, rng: 5, wantField: "RangeOhm", wantDir: AboveMax, wantBound: 3},
		{name: "range below min", r: 0.1, rng: 0.01, wantField: "RangeOhm", wantDir: BelowMin, wantBound: 0.1},
		{name: "resistance reported first", r: 0.5, rng: 5, wantField: "ResistanceOhm", wantDir: AboveMax, wantBound: 0.3},
		{name: "bounds are inclusive", r: 0.3, rng: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample(1)
			s.ResistanceOhm = tt.r
			s.RangeOhm = tt.rng
			err := ValidateBounds(s, meta, bounds)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var f *Fault
			require.ErrorAs(t, err, &f)
			assert.Equal(t, KindBounds, f.Kind)
			assert.Equal(t, tt.wantField, f.Field)
			assert.Equal(t, tt.wantDir, f.Direction)
			assert.Equal(t, tt.wantBound, f.Bound)
			assert.Contains(t, f.Message, string(tt.wantDir))
			assert.Contains(t, f.Message, "B1/T1/50%")
		})
	}
}
