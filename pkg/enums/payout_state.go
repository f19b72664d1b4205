package enums

import "fmt"

// PayoutState tracks a payout request from submission to decision.
type PayoutState string

const (
	PayoutStateRequested PayoutState = "requested"
	PayoutStateApproved  PayoutState = "approved"
	PayoutStateDenied    PayoutState = "denied"
)

var validPayoutStates = []PayoutState{
	PayoutStateRequested,
	PayoutStateApproved,
	PayoutStateDenied,
}

// String implements fmt.Stringer.
func (s PayoutState) String() string {
	return string(s)
}

// IsValid reports whether the payout state is recognized.
func (s PayoutState) IsValid() bool {
	for _, candidate := range validPayoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutState converts a raw string into a PayoutState.
func ParsePayoutState(value string) (PayoutState, error) {
	for _, candidate := range validPayoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout state %q", value)
}
