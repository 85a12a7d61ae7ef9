package eis

import (
	"encoding/json"
	"fmt"
)

// Status mirrors the protocol's transfer status.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// FaultPersistence is the FaultInfo kind used when an accepted sample could
// not be written. Validation kinds come from the validation package.
const FaultPersistence = "PersistenceFailure"

// FaultInfo is the informative fault carried inside a CommandResult.
type FaultInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CommandResult is returned by every protocol operation.
type CommandResult struct {
	Acknowledged bool       `json:"acknowledged"`
	Status       Status     `json:"status"`
	Fault        *FaultInfo `json:"fault,omitempty"`
}

func Ack(status Status) *CommandResult {
	return &CommandResult{Acknowledged: true, Status: status}
}

func Nack(status Status, fault *FaultInfo) *CommandResult {
	return &CommandResult{Acknowledged: false, Status: status, Fault: fault}
}

func (r CommandResult) String() string {
	state := "NACK"
	if r.Acknowledged {
		state = "ACK"
	}
	if r.Fault != nil {
		return fmt.Sprintf("%s/%s (%s: %s)", state, r.Status, r.Fault.Kind, r.Fault.Message)
	}
	return fmt.Sprintf("%s/%s", state, r.Status)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch Status(raw) {
	case StatusInProgress, StatusCompleted:
		*s = Status(raw)
		return nil
	}
	return fmt.Errorf("unknown status %q", raw)
}
