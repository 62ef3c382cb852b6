package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/dashgate/pkg/errors"
)

// ErrorResponse 通用错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse 操作成功响应
type SuccessResponse struct {
	Success bool `json:"success"`
}

// NewErrorResponse builds the client-facing body of err. Unknown errors are
// rendered as an internal server error without leaking their cause.
func NewErrorResponse(err error) (int, *ErrorResponse) {
	appErr := errors.FromError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, &ErrorResponse{Error: appErr.Message, Message: appErr.Detail}
}

// SendError writes err as a JSON error body with the AppError's status.
func SendError(c *gin.Context, err error) {
	status, body := NewErrorResponse(err)
	c.JSON(status, body)
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := NewErrorResponse(err)
	c.AbortWithStatusJSON(status, body)
}
