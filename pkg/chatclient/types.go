package chatclient

import (
	"fmt"
	"strings"
)

// RequestBody is the JSON payload posted to the /chat endpoint.
type RequestBody struct {
	Message string           `json:"message"`
	History []HistoryMessage `json:"history,omitempty"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseBody is the JSON payload of a successful /chat response.
type ResponseBody struct {
	Reply                string   `json:"reply,omitempty"`
	RecommendedQuestions []string `json:"recommended_questions,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// ResponseError is returned for non-2xx responses.
type ResponseError struct {
	StatusCode int
	// ServerMessage is the "error" field of the response body, if any.
	ServerMessage string
}

func (e *ResponseError) Error() string {
	if strings.TrimSpace(e.ServerMessage) != "" {
		return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.ServerMessage)
	}
	return fmt.Sprintf("chat endpoint returned status %d", e.StatusCode)
}
