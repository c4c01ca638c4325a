package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exconnector/internal/correlation"
)

// StatusClientClosedRequest is the nginx convention for a caller that went away.
const StatusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case errors.Is(err, correlation.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, correlation.ErrNotConnected), errors.Is(err, correlation.ErrConnectorClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, correlation.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, correlation.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, correlation.ErrCancelled):
		return StatusClientClosedRequest
	case errors.Is(err, correlation.ErrSendFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error         string `json:"error"`
	Outcome       string `json:"outcome"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func writeError(c *gin.Context, err error) {
	body := errorBody{Error: err.Error(), Outcome: correlation.Outcome(err)}
	var terr *correlation.TimeoutError
	if errors.As(err, &terr) {
		body.CorrelationID = terr.CorrelationID
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}
