// Package handlers implements the gin handlers of the HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/pkasolver/internal/interfaces/http/middleware"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeAppError maps err to its HTTP status. Server-side failures are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.New(errors.ErrCodeInternal, "internal server error")
	}
	status := appErr.HTTPStatus()
	resp := ErrorResponse{
		Code:      appErr.Code.String(),
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		RequestID: middleware.GetRequestID(c),
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		resp.Message = errors.DefaultMessageForCode(appErr.Code)
		resp.Detail = ""
	}
	c.AbortWithStatusJSON(status, resp)
}

// writeBindError reports a malformed request body.
func writeBindError(c *gin.Context, err error) {
	writeAppError(c, errors.NewValidationError(errors.ErrCodeBadRequest, "malformed request body").WithDetail(err.Error()))
}

//Personal.AI order the ending
