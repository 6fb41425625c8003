package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a non-2xx response from the GitLab REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("gitlab: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a GitLab API 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a GitLab API 401 or 403 response.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == status
}

// parseAPIErrorFromBody extracts the error message GitLab puts in either a
// "message" or an "error" field, falling back to the raw body.
func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil {
		var text string
		switch {
		case len(wireError.Message) > 0 && json.Unmarshal(wireError.Message, &text) == nil && text != "":
			apiError.Message = text
		case len(wireError.Message) > 0 && string(wireError.Message) != "null":
			// Validation failures arrive as an object of field errors.
			apiError.Message = string(wireError.Message)
		case wireError.Error != "":
			apiError.Message = wireError.Error
		}
	}
	if apiError.Message == "" {
		apiError.Message = string(body)
	}
	return apiError
}
