package llm

// AnalysisResponse is the shaped reply of revisions that extract a single
// field from the upstream payload.
type AnalysisResponse struct {
	Content string `json:"content"` // Verdict text, usually markdown
}
