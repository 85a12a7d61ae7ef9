package eis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Float is a float64 that survives JSON even when it is NaN or infinite.
// Non-finite values travel as the strings "NaN", "Infinity" and "-Infinity",
// which lets the server report them as data format faults instead of failing
// to decode the request.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = Float(math.NaN())
		case "Infinity", "+Infinity", "Inf":
			*f = Float(math.Inf(1))
		case "-Infinity", "-Inf":
			*f = Float(math.Inf(-1))
		default:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", s)
			}
			*f = Float(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type wireSample struct {
	RowIndex       int       `json:"row_index"`
	FrequencyHz    Float     `json:"frequency_hz"`
	ResistanceOhm  Float     `json:"resistance_ohm"`
	ReactanceOhm   Float     `json:"reactance_ohm"`
	VoltageV       Float     `json:"voltage_v"`
	TemperatureC   Float     `json:"temperature_c"`
	RangeOhm       Float     `json:"range_ohm"`
	TimestampLocal time.Time `json:"timestamp_local"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSample{
		RowIndex:       s.RowIndex,
		FrequencyHz:    Float(s.FrequencyHz),
		ResistanceOhm:  Float(s.ResistanceOhm),
		ReactanceOhm:   Float(s.ReactanceOhm),
		VoltageV:       Float(s.VoltageV),
		TemperatureC:   Float(s.TemperatureC),
		RangeOhm:       Float(s.RangeOhm),
		TimestampLocal: s.TimestampLocal,
	})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var w wireSample
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Sample{
		RowIndex:       w.RowIndex,
		FrequencyHz:    float64(w.FrequencyHz),
		ResistanceOhm:  float64(w.ResistanceOhm),
		ReactanceOhm:   float64(w.ReactanceOhm),
		VoltageV:       float64(w.VoltageV),
		TemperatureC:   float64(w.TemperatureC),
		RangeOhm:       float64(w.RangeOhm),
		TimestampLocal: w.TimestampLocal,
	}
	return nil
}
