package quickbooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// ErrNoTenant indicates no company (realm) id is known yet.
var ErrNoTenant = errors.New("quickbooks: no company id; authorize first")

// APIError represents a non-successful API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quickbooks: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the status code onto a domain error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrAuthorizationRequired
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimitExceeded
	default:
		return nil
	}
}

// faultBody is the error envelope returned by the API.
type faultBody struct {
	Fault *struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

// message extracts a readable message from a fault envelope.
func (f faultBody) message() string {
	if f.Fault == nil || len(f.Fault.Error) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f.Fault.Error))
	for _, e := range f.Fault.Error {
		msg := e.Message
		if e.Detail != "" && e.Detail != e.Message {
			msg += ": " + e.Detail
		}
		if e.Code != "" {
			msg += " (code " + e.Code + ")"
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// newAPIError builds an APIError from a response body.
func newAPIError(status int, body []byte, url string) *APIError {
	msg := http.StatusText(status)
	var fault faultBody
	if json.Unmarshal(body, &fault) == nil {
		if m := fault.message(); m != "" {
			msg = m
		}
	}
	return &APIError{StatusCode: status, Message: msg, URL: url}
}
