package dto

import "encoding/json"

// Envelope is the frame shape in both directions on the realtime channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ChatNewPayload struct {
	Message string `json:"message"`
}

type AssistantDonePayload struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type RateLimitPayload struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

type ChatSyncPayload struct {
	Reason string `json:"reason"`
}
