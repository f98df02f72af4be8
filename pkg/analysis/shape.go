package analysis

import (
	"encoding/json"
	"errors"

	"github.com/papercomputeco/foodlens/pkg/llm"
	"github.com/papercomputeco/foodlens/pkg/prompt"
)

var (
	errNotObject      = errors.New("response is not an object")
	errMissingContent = errors.New("missing content field")
)

// shapeResponse turns an upstream payload into the caller's reply.
func shapeResponse(shape prompt.Shape, payload json.RawMessage) (json.RawMessage, error) {
	if shape == prompt.Passthrough {
		return payload, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, errNotObject
	}

	raw, ok := fields["content"]
	if !ok {
		return nil, errMissingContent
	}

	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, errMissingContent
	}

	return json.Marshal(llm.AnalysisResponse{Content: content})
}
