package enums

import "fmt"

// InvoiceState tracks an invoice through its billing lifecycle.
type InvoiceState string

const (
	InvoiceStateCreated InvoiceState = "created"
	InvoiceStateSent    InvoiceState = "sent"
	InvoiceStatePaid    InvoiceState = "paid"
	InvoiceStateDeleted InvoiceState = "deleted"
)

var validInvoiceStates = []InvoiceState{
	InvoiceStateCreated,
	InvoiceStateSent,
	InvoiceStatePaid,
	InvoiceStateDeleted,
}

// String implements fmt.Stringer.
func (s InvoiceState) String() string {
	return string(s)
}

// IsValid reports whether the invoice state is recognized.
func (s InvoiceState) IsValid() bool {
	for _, candidate := range validInvoiceStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Deletion is possible until the invoice is paid.
func (s InvoiceState) CanTransitionTo(next InvoiceState) bool {
	switch s {
	case InvoiceStateCreated:
		return next == InvoiceStateSent || next == InvoiceStateDeleted
	case InvoiceStateSent:
		return next == InvoiceStatePaid || next == InvoiceStateDeleted
	default:
		return false
	}
}

// ParseInvoiceState converts a raw string into an InvoiceState.
func ParseInvoiceState(value string) (InvoiceState, error) {
	for _, candidate := range validInvoiceStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice state %q", value)
}
