package types

// SuccessEnvelope wraps every successful response body.
type SuccessEnvelope struct {
	Status bool `json:"Status"`
	Data   any  `json:"Data,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope carries validation failures under "Errors" and every other
// failure under "Error"; exactly one of the two is set.
type ErrorEnvelope struct {
	Status bool      `json:"Status"`
	Error  *APIError `json:"Error,omitempty"`
	Errors *APIError `json:"Errors,omitempty"`
}

// Problem returns whichever error slot is populated.
func (e ErrorEnvelope) Problem() *APIError {
	if e.Errors != nil {
		return e.Errors
	}
	return e.Error
}
