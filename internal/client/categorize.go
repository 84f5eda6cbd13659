package client

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the aiErrorsTotal label.
const (
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey ErrorCategory = "invalid_api_key"
	ErrorCategoryRateLimited   ErrorCategory = "rate_limited"
	ErrorCategoryUpstream      ErrorCategory = "upstream"
	ErrorCategoryEmpty         ErrorCategory = "empty_response"
	ErrorCategoryCircuitOpen   ErrorCategory = "circuit_open"
	ErrorCategoryParsing       ErrorCategory = "parsing"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryCircuitOpen
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryInvalidAPIKey
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimited
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return ErrorCategoryUpstream
	}
	if errors.Is(err, ErrEmptyResponse) {
		return ErrorCategoryEmpty
	}
	if errors.Is(err, ErrTransport) {
		return ErrorCategoryNetwork
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") || strings.Contains(errStr, "decode") {
		return ErrorCategoryParsing
	}
	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}
	return ErrorCategoryUnknown
}
