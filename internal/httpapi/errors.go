package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pbx-engine/internal/calllog"
	"pbx-engine/internal/conference"
	"pbx-engine/internal/directory"
	"pbx-engine/internal/internalcall"
	"pbx-engine/internal/presence"
	"pbx-engine/internal/reporting"
	"pbx-engine/internal/telephony"
	"pbx-engine/internal/voicemail"
)

// respondError maps service sentinels onto HTTP statuses. The error text is
// forwarded as-is: the sentinels carry no internal detail.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internalcall.ErrInvalidArgument),
		errors.Is(err, conference.ErrInvalidArgument),
		errors.Is(err, directory.ErrInvalidArgument),
		errors.Is(err, presence.ErrInvalidArgument),
		errors.Is(err, presence.ErrInvalidStatus),
		errors.Is(err, voicemail.ErrInvalidArgument),
		errors.Is(err, calllog.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, internalcall.ErrNotFound),
		errors.Is(err, conference.ErrNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, presence.ErrNotFound),
		errors.Is(err, voicemail.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, internalcall.ErrUnavailable),
		errors.Is(err, internalcall.ErrConflict),
		errors.Is(err, conference.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, conference.ErrUnsupportedTarget):
		return http.StatusUnprocessableEntity
	}

	if exc, ok := telephony.AsException(err); ok {
		// The caller handed us a number the carrier rejects.
		if exc.Code == telephony.ErrorCodeInvalidToPhoneNumber ||
			exc.Code == telephony.ErrorCodeUnverifiedNumber {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
