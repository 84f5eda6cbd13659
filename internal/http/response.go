package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/auth"
	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/service"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

const (
	maxJSONBody = 1 << 20

	msgMalformedBody = "Request body must be valid JSON."
	msgInvalidFields = "Please check your input:"
	msgPostNotFound  = "That post no longer exists."
)

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. requestId is the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps err to a status, code and user-facing message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	logger := loggerFrom(r)
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", zap.String("code", code), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("code", code), zap.Error(err))
	}
	writeError(w, r, status, code, errorMessage(err))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, validation.ErrLocationUnavailable):
		return http.StatusBadRequest, "LOCATION_UNAVAILABLE"
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, "REQUEST_IN_PROGRESS"
	case errors.Is(err, auth.ErrInvalidCode):
		return http.StatusUnauthorized, "INVALID_CODE"
	case errors.Is(err, auth.ErrPendingNotFound):
		return http.StatusUnauthorized, "PENDING_LOGIN_EXPIRED"
	case errors.Is(err, auth.ErrFederatedSignIn):
		return http.StatusUnauthorized, "FEDERATED_SIGN_IN_FAILED"
	case errors.Is(err, validation.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, gateway.ErrInvalidResponse):
		return http.StatusBadGateway, "INVALID_AI_RESPONSE"
	case isUpstreamError(err):
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func isUpstreamError(err error) bool {
	for _, target := range []error{
		client.ErrTransport,
		client.ErrUpstreamFailure,
		client.ErrRateLimited,
		client.ErrInvalidAPIKey,
		client.ErrEmptyResponse,
		circuitbreaker.ErrOpen,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isAuthError(err error) bool {
	for _, target := range []error{
		auth.ErrMissingCredentials,
		auth.ErrMissingSignupField,
		auth.ErrInvalidCode,
		auth.ErrPendingNotFound,
		auth.ErrFederatedSignIn,
		auth.ErrUnauthenticated,
		validation.ErrInvalidCode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func errorMessage(err error) string {
	var ue *service.UserError
	switch {
	case errors.As(err, &ue):
		return ue.Message
	case errors.Is(err, validation.ErrLocationUnavailable):
		return service.MsgLocationDenied
	case isAuthError(err):
		return auth.UserMessage(err)
	case errors.Is(err, repository.ErrNotFound):
		return msgPostNotFound
	case errors.Is(err, validation.ErrInvalidRequest):
		return strings.TrimPrefix(err.Error(), validation.ErrInvalidRequest.Error()+": ")
	default:
		return service.MsgUnknownError
	}
}

// decodeJSON reads a JSON body of at most maxJSONBody bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &service.UserError{Message: msgMalformedBody, Err: validation.ErrInvalidRequest}
	}
	if err := validation.Request(v); err != nil {
		var reqErr *validation.RequestError
		if errors.As(err, &reqErr) {
			return &service.UserError{Message: msgInvalidFields + " " + reqErr.Detail + ".", Err: err}
		}
		return &service.UserError{Message: msgMalformedBody, Err: err}
	}
	return nil
}
