package analysis

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/foodlens/pkg/upstream"
)

// Messages returned to callers for client input errors.
const (
	MsgNoIngredients     = "No ingredients provided in JSON"
	MsgIngredientsString = "ingredients must be a string"
)

// InputError reports a request the caller must fix. No upstream call is made.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// UpstreamError reports a failure talking to, or interpreting, the upstream
// API. StatusCode is the upstream HTTP status when one was received.
type UpstreamError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newUpstreamError(reason string, err error) *UpstreamError {
	ue := &UpstreamError{Reason: reason, Err: err}
	var se *upstream.StatusError
	if errors.As(err, &se) {
		ue.StatusCode = se.StatusCode
	}
	return ue
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
