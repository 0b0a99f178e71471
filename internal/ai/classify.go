package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	artyErrors "artyats/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// statusCode extracts an HTTP status from genai or googleapi errors, or 0.
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Network errors (timeouts, refused connections) are transient.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	switch statusCode(err) {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// classifyBackendError maps a raw backend failure onto the application error
// taxonomy. Errors that are already classified pass through unchanged.
func classifyBackendError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *artyErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendTimeout,
			fmt.Sprintf("%s request timed out", operation), err)
	case errors.Is(err, context.Canceled):
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendFailed,
			fmt.Sprintf("%s request was cancelled", operation), err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeCircuitOpen,
			fmt.Sprintf("%s is temporarily disabled after repeated failures", operation), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		code := artyErrors.ErrCodeBackendFailed
		if netErr.Timeout() {
			code = artyErrors.ErrCodeBackendTimeout
		}
		return artyErrors.NewBackendUnavailableError(code,
			fmt.Sprintf("%s could not reach the model service", operation), err)
	}

	status := statusCode(err)
	switch {
	case status == http.StatusTooManyRequests:
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendRateLimited,
			fmt.Sprintf("%s hit the model service quota", operation), err).
			WithContext("status", status)
	case status >= 500:
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendFailed,
			fmt.Sprintf("%s failed on the model service", operation), err).
			WithContext("status", status)
	case status > 0:
		return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendFailed,
			fmt.Sprintf("%s was rejected by the model service", operation), err).
			WithContext("status", status)
	}

	return artyErrors.NewBackendUnavailableError(artyErrors.ErrCodeBackendFailed,
		fmt.Sprintf("%s failed", operation), err)
}
