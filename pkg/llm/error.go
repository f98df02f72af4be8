// Package llm provides the wire representations of ingredient analysis
// requests and responses exchanged with callers of the relay.
package llm

// ErrorResponse is the body returned for any failed analysis.
type ErrorResponse struct {
	Error string `json:"error"`
}
