// Package validation holds the pure checks applied to session metadata and
// samples before anything is persisted.
//
// Structural checks decide whether a sample can be processed at all and
// advance the session's row cursor on success. Bounds checks run afterwards and
// only reject the sample; they never end a session.
package validation

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"eis-ingest-be/pkg/eis"

	"github.com/go-playground/validator/v10"
)

// Bounds is the configured acceptable physical range for a sample.
type Bounds struct {
	ResistanceMin float64
	ResistanceMax float64
	RangeMin      float64
	RangeMax      float64
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance with the notblank rule registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// ValidateMetadata checks that a session can be opened with meta.
func ValidateMetadata(meta *eis.SessionMetadata) error {
	if meta == nil {
		return validationFault("Session data is null.")
	}
	err := Validator().Struct(meta)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return validationFault(err.Error())
	}
	fe := verrs[0]
	if fe.Field() == "ExpectedSampleCount" {
		return validationFault("ExpectedSampleCount must be greater than 0.")
	}
	return validationFault(fmt.Sprintf("%s cannot be null or empty.", fe.Field()))
}

// ValidateStructure runs the ordered structural checks; the first failure wins.
// On success state.LastAcceptedRowIndex advances to sample.RowIndex.
func ValidateStructure(sample *eis.Sample, state *eis.SessionState) error {
	if sample == nil {
		return validationFault("Sample is null.")
	}

	finite := []struct {
		name  string
		value float64
	}{
		{"ResistanceOhm", sample.ResistanceOhm},
		{"TemperatureC", sample.TemperatureC},
		{"ReactanceOhm", sample.ReactanceOhm},
		{"VoltageV", sample.VoltageV},
		{"RangeOhm", sample.RangeOhm},
		{"FrequencyHz", sample.FrequencyHz},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return dataFormatFault(fmt.Sprintf("%s must be a real number.", f.name))
		}
	}

	if sample.FrequencyHz <= 0 {
		return validationFault("FrequencyHz must be greater than 0.")
	}

	expected := state.LastAcceptedRowIndex + 1
	if sample.RowIndex != expected {
		return validationFault(fmt.Sprintf("Row index must be in ascending order: expected %d, got %d.", expected, sample.RowIndex))
	}

	state.LastAcceptedRowIndex = sample.RowIndex
	return nil
}

// ValidateBounds checks resistance, then range, against the configured bounds.
// meta is only used to give the message some context.
func ValidateBounds(sample *eis.Sample, meta *eis.SessionMetadata, bounds Bounds) error {
	if f := checkRange("ResistanceOhm", sample.ResistanceOhm, bounds.ResistanceMin, bounds.ResistanceMax); f != nil {
		f.Message = boundsMessage(f, sample, meta)
		return f
	}
	if f := checkRange("RangeOhm", sample.RangeOhm, bounds.RangeMin, bounds.RangeMax); f != nil {
		f.Message = boundsMessage(f, sample, meta)
		return f
	}
	return nil
}

func checkRange(field string, value, min, max float64) *Fault {
	switch {
	case value < min:
		return &Fault{Kind: KindBounds, Field: field, Value: value, Bound: min, Direction: BelowMin}
	case value > max:
		return &Fault{Kind: KindBounds, Field: field, Value: value, Bound: max, Direction: AboveMax}
	}
	return nil
}

func boundsMessage(f *Fault, sample *eis.Sample, meta *eis.SessionMetadata) string {
	msg := fmt.Sprintf("%s %g is %s (bound %g) at row %d", f.Field, f.Value, f.Direction, f.Bound, sample.RowIndex)
	if meta != nil {
		msg += fmt.Sprintf(" for %s/%s/%s", meta.BatteryID, meta.TestID, meta.StateOfCharge)
	}
	return msg
}
