package upstream

import "fmt"

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying could help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// DecodeError is returned when the upstream body is not valid JSON.
type DecodeError struct {
	Body string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("upstream returned invalid JSON: %s", e.Body)
}
