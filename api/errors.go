package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/tally"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Step      string `json:"step,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Status maps an engine error to an HTTP status.
func Status(err error) int {
	var se *tally.StoreError
	switch {
	case tally.IsValidation(err):
		return http.StatusBadRequest
	case tally.IsNotFound(err):
		return http.StatusNotFound
	case tally.IsSequenceConflict(err), errors.Is(err, tally.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &se), errors.Is(err, tally.ErrStoreNotReady), errors.Is(err, tally.ErrStoreClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	body := ErrorBody{
		Error:     err.Error(),
		Code:      tally.ErrorCode(err),
		RequestID: c.GetString(requestIDKey),
	}

	var oe *tally.OperationError
	if errors.As(err, &oe) {
		if oe.Message != "" {
			body.Error = oe.Message
		}
		body.Step = oe.Step
		if oe.Code != "" {
			body.Code = oe.Code
		}
	}

	_ = c.Error(err) //nolint:errcheck // recorded for the access log
	c.AbortWithStatusJSON(Status(err), body)
}
