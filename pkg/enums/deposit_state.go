package enums

import "fmt"

// DepositState tracks an external top-up through its provider lifecycle.
type DepositState string

const (
	DepositStateCreated    DepositState = "created"
	DepositStateProcessing DepositState = "processing"
	DepositStateCompleted  DepositState = "completed"
	DepositStateFailed     DepositState = "failed"
)

var validDepositStates = []DepositState{
	DepositStateCreated,
	DepositStateProcessing,
	DepositStateCompleted,
	DepositStateFailed,
}

// String implements fmt.Stringer.
func (s DepositState) String() string {
	return string(s)
}

// IsValid reports whether the deposit state is recognized.
func (s DepositState) IsValid() bool {
	for _, candidate := range validDepositStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s DepositState) CanTransitionTo(next DepositState) bool {
	switch s {
	case DepositStateCreated:
		return next == DepositStateProcessing || next == DepositStateFailed
	case DepositStateProcessing:
		return next == DepositStateCompleted || next == DepositStateFailed
	default:
		return false
	}
}

// ParseDepositState converts a raw string into a DepositState.
func ParseDepositState(value string) (DepositState, error) {
	for _, candidate := range validDepositStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deposit state %q", value)
}
