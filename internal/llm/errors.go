package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable   = errors.New("model temporarily unavailable")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrModelNotFound = errors.New("model not found")
	ErrEmptyResponse = errors.New("empty response from model")
)

// statusError tags a provider error with the sentinel matching its HTTP status.
func statusError(provider string, status int, err error) error {
	switch status {
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return fmt.Errorf("%s: %w: %w", provider, ErrUnavailable, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w", provider, ErrRateLimited, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", provider, ErrModelNotFound, err)
	}
	return fmt.Errorf("%s API error: %w", provider, err)
}

// UserMessage turns an error from the agent chain into text fit for the player.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrTooManyRequests):
		return "API Temporarily Unavailable: the model is experiencing high demand. Please try again in a few moments."
	case errors.Is(err, ErrRateLimited):
		return "Rate Limit Exceeded: please wait a moment and try again."
	case errors.Is(err, ErrModelNotFound):
		return "Model Not Found: the configured model is not available. Please check the model configuration."
	}
	return "Error: " + err.Error()
}

// Classify returns the sentinel err carries, or nil for unclassified errors.
func Classify(err error) error {
	for _, sentinel := range []error{ErrUnavailable, ErrRateLimited, ErrModelNotFound, ErrCircuitOpen, ErrTooManyRequests, ErrEmptyResponse} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
