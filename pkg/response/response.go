package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for API errors. Successful reads return their
// payload bare.
type Response struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Code derives an error code from an HTTP status:
// 400 → BAD_REQUEST, 500 → INTERNAL_ERROR.
func Code(status int) string {
	if status == http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// Fail aborts the request with an error envelope.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Error: &ErrorInfo{Code: Code(status), Message: message},
	})
}

func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}
