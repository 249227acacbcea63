package entities

// PipelineResult is the single externally observable output of an invocation
type PipelineResult struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Succeeded reports whether the result is in the 2xx range
func (r PipelineResult) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
