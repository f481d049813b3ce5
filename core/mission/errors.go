package mission

import (
	"errors"
	"fmt"
)

var (
	ErrNilPlan         = errors.New("nil mission plan")
	ErrMissionActive   = errors.New("a mission is already running")
	ErrEmptyPlan       = errors.New("mission plan has no actions")
	ErrNoVehicles      = errors.New("mission plan has no vehicles")
	ErrUnknownVehicle  = errors.New("vehicle not active in mission")
	ErrMissionMismatch = errors.New("mission id does not match active mission")
	ErrNoActiveMission = errors.New("no active mission")
)

// RejectionError is an expected domain rejection. Its message is what the
// control authority receives after "NOK: ".
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(err error, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Result converts an abort outcome to the "OK" / "NOK: <reason>" contract.
func Result(err error) string {
	if err == nil {
		return "OK"
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		return "NOK: " + rej.Reason
	}
	return "NOK: " + err.Error()
}
