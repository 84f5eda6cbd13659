package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

// ErrBusy is returned when the same user already has a call pending on a view.
var ErrBusy = errors.New("request already in progress")

// User-facing messages.
const (
	MsgUnknownError       = "An unknown error occurred."
	MsgNoImage            = "Please select an image first."
	MsgUnsupportedImage   = "The selected file is not a supported image."
	MsgImageTooLarge      = "The selected image is too large."
	MsgDiagnoseInvalid    = "The AI returned an invalid response. Please try again."
	MsgWeatherInvalid     = "Could not retrieve weather data for your location."
	MsgLearnInvalid       = "Could not fetch learning resources."
	MsgTranslateFailed    = "Translation failed. Please try again."
	MsgNothingToTranslate = "There is no text to translate."
	MsgChatFailed         = "Sorry, I encountered an error. Please try again."
	MsgEmptyMessage       = "Please enter a message."
	MsgRateLimited        = "The AI service is busy right now. Please wait a moment and try again."
	MsgUnavailable        = "The AI service is temporarily unavailable. Please try again shortly."
	MsgBusy               = "Please wait for the current request to finish."
	MsgLocationDenied     = "Location permission denied. Please enable it in your browser settings to see local weather."
)

// UserError pairs an error with the message shown to the farmer.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// UserMessage returns the message to show for err, or MsgUnknownError.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return MsgUnknownError
}

func invalidInput(msg string) error {
	return &UserError{Message: msg, Err: validation.ErrInvalidRequest}
}

func busy() error {
	return &UserError{Message: MsgBusy, Err: ErrBusy}
}

// aiFailure maps a gateway error to a UserError. invalidMsg is used when the reply
// broke the response contract.
func aiFailure(err error, invalidMsg string) error {
	msg := MsgUnknownError
	switch {
	case errors.Is(err, gateway.ErrInvalidResponse):
		msg = invalidMsg
	case errors.Is(err, client.ErrRateLimited):
		msg = MsgRateLimited
	case errors.Is(err, circuitbreaker.ErrOpen):
		msg = MsgUnavailable
	}
	return &UserError{Message: msg, Err: err}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

func recordBusy(view string) {
	observability.ViewBusyTotal.WithLabelValues(view).Inc()
}
