package llm

// AnalysisRequest is the body accepted by POST /analyze.
type AnalysisRequest struct {
	Ingredients string `json:"ingredients"` // Raw ingredient list, usually OCR output from a food label
}
