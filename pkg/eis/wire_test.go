package eis

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleJSONCarriesNonFiniteValues(t *testing.T) {
	in := Sample{
		RowIndex:       3,
		FrequencyHz:    1000,
		ResistanceOhm:  math.NaN(),
		ReactanceOhm:   -0.0021,
		VoltageV:       3.71,
		TemperatureC:   math.Inf(1),
		RangeOhm:       math.Inf(-1),
		TimestampLocal: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"resistance_ohm":"NaN"`)
	assert.Contains(t, string(data), `"temperature_c":"Infinity"`)

	var out Sample
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 3, out.RowIndex)
	assert.True(t, math.IsNaN(out.ResistanceOhm))
	assert.True(t, math.IsInf(out.TemperatureC, 1))
	assert.True(t, math.IsInf(out.RangeOhm, -1))
	assert.Equal(t, -0.0021, out.ReactanceOhm)
	assert.True(t, in.TimestampLocal.Equal(out.TimestampLocal))
}

func TestFloatRejectsGarbageStrings(t *testing.T) {
	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
	require.NoError(t, json.Unmarshal([]byte(`"0.25"`), &f))
	assert.Equal(t, Float(0.25), f)
}

func TestStatusRejectsUnknownValue(t *testing.T) {
	var r CommandResult
	assert.Error(t, json.Unmarshal([]byte(`{"acknowledged":true,"status":"DONE"}`), &r))
	require.NoError(t, json.Unmarshal([]byte(`{"acknowledged":true,"status":"COMPLETED"}`), &r))
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestSessionStateLifecycle(t *testing.T) {
	var s SessionState
	assert.False(t, s.Active())

	s.Begin(SessionMetadata{BatteryID: "B1", TestID: "T1", StateOfCharge: "50%", ExpectedSampleCount: 3})
	assert.True(t, s.Active())
	assert.Equal(t, 3, s.ExpectedTotal)
	assert.Equal(t, 0, s.LastAcceptedRowIndex)

	s.Reset()
	assert.False(t, s.Active())
}
