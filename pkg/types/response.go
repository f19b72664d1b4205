// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps every 2xx payload under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape: a stable machine code, a safe message,
// and optional structured details (field validation errors and the like).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error payload under an error key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
