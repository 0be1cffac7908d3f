package api

// PublishRequest is the body of POST /api/v1/publish.
type PublishRequest struct {
	Topic   string  `json:"topic"`
	Message *string `json:"message"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State    string         `json:"state"`
	Sessions int            `json:"sessions"`
	Topics   int            `json:"topics"`
	ByRole   map[string]int `json:"by_role"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
