package analysis

import (
	"bytes"
	"encoding/json"

	"github.com/papercomputeco/foodlens/pkg/llm"
)

// DecodeRequest parses an /analyze body. Only presence of the ingredients
// field is checked; an empty string is accepted.
func DecodeRequest(body []byte) (*llm.AnalysisRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, &InputError{Message: MsgNoIngredients}
	}

	raw, ok := fields["ingredients"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &InputError{Message: MsgNoIngredients}
	}

	var req llm.AnalysisRequest
	if err := json.Unmarshal(raw, &req.Ingredients); err != nil {
		return nil, &InputError{Message: MsgIngredientsString}
	}
	return &req, nil
}
