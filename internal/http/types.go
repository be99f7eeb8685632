package http

// CreateSessionRequest is the request body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	Title    string   `json:"title"`
	Subjects []string `json:"subjects"`
	Grades   []int    `json:"grades"`
	Language string   `json:"language"`
}

// UpdateSessionRequest is the request body for PUT /api/v1/sessions/:id.
type UpdateSessionRequest struct {
	Title    *string   `json:"title"`
	Subjects *[]string `json:"subjects"`
	Grades   *[]int    `json:"grades"`
	Language *string   `json:"language"`
}

// AppendMessageRequest is the request body for
// POST /api/v1/sessions/:id/messages.
type AppendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StartRunRequest is the request body for POST /api/v1/sessions/:id/runs.
type StartRunRequest struct {
	Trigger    string   `json:"trigger"`
	Recipients []string `json:"recipients"`
}

// ResolveCheckpointRequest is the request body for
// POST /api/v1/sessions/:id/runs/current/checkpoints/:stage.
type ResolveCheckpointRequest struct {
	Decision string         `json:"decision"`
	Payload  map[string]any `json:"payload"`
}

// ClassifyRequest is the request body for POST /api/v1/intent/classify.
type ClassifyRequest struct {
	Message  string   `json:"message"`
	Subjects []string `json:"subjects"`
	Grades   []int    `json:"grades"`
}

// SuggestionsResponse is the response body for
// GET /api/v1/intent/suggestions.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// SynthesizeHTTPRequest is the request body for
// POST /api/v1/speech/synthesize.
type SynthesizeHTTPRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`
}
