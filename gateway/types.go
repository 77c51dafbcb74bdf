package gateway

import "encoding/json"

// Usage reports token accounting for a single generation.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// TextRequest is the input to GenerateText and StreamText.
type TextRequest struct {
	// Prompt is the user prompt to send. Required.
	Prompt string

	// System is an optional system prompt.
	System string

	// SessionID continues an existing gateway conversation when set.
	SessionID string
}

// TextResult is the response of a completed text generation.
type TextResult struct {
	Text      string
	Usage     Usage
	SessionID string
}

// ObjectResult is the response of a structured object generation. Object has
// been decoded from the gateway's JSON and validated.
type ObjectResult[T any] struct {
	Object    T
	RawText   string
	Usage     Usage
	SessionID string
}

// requestBody is the wire shape of every generation request. Optional fields
// carry omitempty so absent values are left out entirely, matching what the
// gateway expects.
type requestBody struct {
	System    string          `json:"system,omitempty"`
	Prompt    string          `json:"prompt"`
	Schema    json.RawMessage `json:"schema,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Model     string          `json:"model,omitempty"`
}

type textResponse struct {
	Text      string `json:"text"`
	Usage     *Usage `json:"usage"`
	SessionID string `json:"sessionId"`
}

type objectResponse struct {
	Object    json.RawMessage `json:"object"`
	RawText   string          `json:"rawText"`
	Usage     *Usage          `json:"usage"`
	SessionID string          `json:"sessionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	RawText string `json:"rawText"`
}

// SSE event payloads.

type sessionEvent struct {
	SessionID string `json:"sessionId"`
}

type textEvent struct {
	Text string `json:"text"`
}

type resultEvent struct {
	SessionID string `json:"sessionId"`
	Usage     *Usage `json:"usage"`
}

type errorEvent struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
