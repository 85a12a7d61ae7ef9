package validation

import (
	"errors"
	"fmt"

	"eis-ingest-be/pkg/eis"
)

// Kind tags a Fault so callers can branch without string matching.
type Kind string

const (
	KindValidation Kind = "ValidationFault"
	KindDataFormat Kind = "DataFormatFault"
	KindBounds     Kind = "BoundsViolation"
)

// Direction tells on which side of the configured range a value fell.
type Direction string

const (
	BelowMin Direction = "below-min"
	AboveMax Direction = "above-max"
)

// Fault is the single error type produced by this package.
// Field, Value, Bound and Direction are only set for bounds violations.
type Fault struct {
	Kind      Kind
	Message   string
	Field     string
	Value     float64
	Bound     float64
	Direction Direction
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Info converts the fault into its protocol representation.
func (f *Fault) Info() *eis.FaultInfo {
	return &eis.FaultInfo{Kind: string(f.Kind), Message: f.Message}
}

func validationFault(msg string) *Fault {
	return &Fault{Kind: KindValidation, Message: msg}
}

func dataFormatFault(msg string) *Fault {
	return &Fault{Kind: KindDataFormat, Message: msg}
}

// KindOf returns the fault kind carried by err, or "" when err is not a Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsDataFormat(err error) bool { return KindOf(err) == KindDataFormat }
func IsBounds(err error) bool     { return KindOf(err) == KindBounds }
