// Package validation checks request input at the HTTP boundary and the shape
// of structured AI replies, using go-playground/validator struct tags.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is returned when user input fails validation. No outbound call is made.
var ErrInvalidRequest = errors.New("invalid request")

// ErrLocationUnavailable is returned when no coordinates were supplied.
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ErrInvalidCode is returned when a verification code is not six digits.
var ErrInvalidCode = errors.New("verification code must be 6 digits")

// DateLayout is the calendar date format used by the scheduler and forecasts.
const DateLayout = "2006-01-02"

var (
	validate *validator.Validate
	once     sync.Once
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Fields validates v's struct tags and returns a readable error listing each failed field.
func Fields(v interface{}) error {
	if err := instance().Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// RequestError lists the fields of a request body that failed validation.
type RequestError struct {
	Detail string
}

func (e *RequestError) Error() string { return ErrInvalidRequest.Error() + ": " + e.Detail }

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// Request validates a decoded request body. Failures are a *RequestError,
// which matches ErrInvalidRequest.
func Request(v interface{}) error {
	if err := Fields(v); err != nil {
		return &RequestError{Detail: err.Error()}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "len":
		return fmt.Sprintf("%s must have length %s", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "datetime":
		return fmt.Sprintf("%s must match %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidateCoordinates parses latitude and longitude query values.
// Both empty means the browser could not share a location.
func ValidateCoordinates(latStr, lonStr string) (lat, lon float64, err error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return 0, 0, ErrLocationUnavailable
	}
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidRequest)
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidRequest)
	}
	return lat, lon, nil
}

// ValidateDate trims s and checks it is a real YYYY-MM-DD calendar date.
func ValidateDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidDate)
	}
	return s, nil
}

// ValidateVerificationCode checks that code is exactly six ASCII digits.
func ValidateVerificationCode(code string) error {
	if err := instance().Var(code, "len=6,numeric"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidCode)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidCode)
		}
	}
	return nil
}
