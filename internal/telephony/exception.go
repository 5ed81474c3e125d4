package telephony

import (
	"errors"
	"fmt"
)

const (
	// ErrorCodeResourceNotFound is returned when the requested resource was
	// not found. https://www.twilio.com/docs/api/errors/20404
	ErrorCodeResourceNotFound = 20404

	// ErrorCodeInvalidToPhoneNumber is returned for an attempt to call an
	// invalid phone number. https://www.twilio.com/docs/api/errors/21211
	ErrorCodeInvalidToPhoneNumber = 21211

	// ErrorCodeUnverifiedNumber is returned when the destination number is
	// not verified for outbound calls on a trial account.
	// https://www.twilio.com/docs/api/errors/21217
	ErrorCodeUnverifiedNumber = 21217
)

// Exception holds information about an error response returned by the
// carrier API.
type Exception struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Code     int    `json:"code"`
	MoreInfo string `json:"more_info"`
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Temporary reports whether the carrier failure is worth retrying.
func (e *Exception) Temporary() bool {
	return e.Status >= 500 || e.Status == 429
}

// AsException unwraps err into a carrier *Exception if it is one.
func AsException(err error) (*Exception, bool) {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc, true
	}
	return nil, false
}

// IsInvalidNumber reports whether err is the carrier rejecting the dialed
// number as malformed.
func IsInvalidNumber(err error) bool {
	exc, ok := AsException(err)
	return ok && exc.Code == ErrorCodeInvalidToPhoneNumber
}

// IsUnverifiedNumber reports whether err is the carrier refusing an
// unverified outbound destination.
func IsUnverifiedNumber(err error) bool {
	exc, ok := AsException(err)
	return ok && exc.Code == ErrorCodeUnverifiedNumber
}

// IsNotFound reports whether err is the carrier's resource-not-found error.
func IsNotFound(err error) bool {
	exc, ok := AsException(err)
	return ok && (exc.Code == ErrorCodeResourceNotFound || exc.Status == 404)
}
