package auth

import (
	"errors"

	"github.com/kjstillabower/plants-doctor/internal/validation"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingSignupField = errors.New("name, email and password are required")
	ErrInvalidCode        = errors.New("verification code does not match")
	ErrPendingNotFound    = errors.New("pending login not found or expired")
	ErrFederatedSignIn    = errors.New("federated sign-in rejected")
	ErrUnauthenticated    = errors.New("not signed in")
)

// User-facing messages.
const (
	MsgMissingCredentials = "Please enter both email and password."
	MsgMissingSignupField = "Please fill in all fields to sign up."
	MsgInvalidCode        = "Invalid verification code. Please try again."
	MsgMalformedCode      = "Please enter the 6-digit verification code."
	MsgPendingExpired     = "Your sign-in has expired. Please start again."
	MsgFederatedSignIn    = "Could not verify Google Sign-In. Please try again."
	MsgUnauthenticated    = "Please sign in to continue."
	MsgSignInFailed       = "Sign-in failed. Please try again."
)

// UserMessage returns the login screen message for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return MsgMissingCredentials
	case errors.Is(err, ErrMissingSignupField):
		return MsgMissingSignupField
	case errors.Is(err, ErrInvalidCode):
		return MsgInvalidCode
	case errors.Is(err, validation.ErrInvalidCode):
		return MsgMalformedCode
	case errors.Is(err, ErrPendingNotFound):
		return MsgPendingExpired
	case errors.Is(err, ErrFederatedSignIn):
		return MsgFederatedSignIn
	case errors.Is(err, ErrUnauthenticated):
		return MsgUnauthenticated
	default:
		return MsgSignInFailed
	}
}
