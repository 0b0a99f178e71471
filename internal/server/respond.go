package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"

	"artyats/internal/analysis"
	"artyats/internal/errors"
)

// parseJSONRequest decodes the JSON request body into v.
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeRequestTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, fmt.Sprintf("failed to parse JSON: %v", err), err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, title, message, code string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   title,
		Message: message,
		Code:    code,
	})
}

// writeError maps err to a status code and writes it. Internal details are
// logged, not returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := statusFor(err)
	message := err.Error()

	var analysisErr *analysis.AnalysisError
	var appErr *errors.AppError
	switch {
	case errors.As(err, &analysisErr):
		message = analysisErr.Error()
	case errors.As(err, &appErr):
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "status", status)
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}

	writeErrorResponse(w, title, message, errors.CodeOf(err), status)
}

// statusFor returns the HTTP status and short title for an error kind.
func statusFor(err error) (int, string) {
	switch errors.CodeOf(err) {
	case errors.ErrCodeDocumentTooLarge, errors.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge, "Payload too large"
	}

	switch errors.KindOf(err) {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest, "Invalid request"
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound, "Not found"
	case errors.ErrorTypeConflict:
		return http.StatusConflict, "Conflict"
	case errors.ErrorTypeContentPolicy:
		return http.StatusUnprocessableEntity, "Content blocked"
	case errors.ErrorTypeSchemaViolation:
		return http.StatusBadGateway, "Invalid model response"
	case errors.ErrorTypeBackendUnavailable:
		return http.StatusServiceUnavailable, "Backend unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
