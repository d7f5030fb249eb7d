package gotrue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingURL is returned by New when no service URL is configured
var ErrMissingURL = errors.New("gotrue: service URL is required")

// APIError captures a non successful response from the identity service.
type APIError struct {
	Operation string
	Status    int
	Code      string
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "gotrue request failed"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("gotrue %s failed: %s", e.Operation, e.Code)
	}
	return fmt.Sprintf("gotrue %s failed with status %d", e.Operation, e.Status)
}

// Metadata exposes the error details for structured logging
func (e *APIError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{
		"operation": e.Operation,
		"status":    e.Status,
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	return meta
}

// IsUnauthorized reports whether the service rejected the access token
func (e *APIError) IsUnauthorized() bool {
	return e != nil && (e.Status == 401 || e.Status == 403)
}

type apiErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func apiError(operation string, status int, body []byte) *APIError {
	out := &APIError{
		Operation: operation,
		Status:    status,
	}

	var payload apiErrorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		out.Message = strings.TrimSpace(string(body))
		return out
	}

	out.Code = firstNonEmpty(payload.ErrorCode, payload.Error)
	out.Message = firstNonEmpty(payload.ErrorDescription, payload.Msg, payload.Message, payload.Error)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
