package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// requestLogger derives the per-request logger. An incoming X-Request-ID is
// kept; otherwise a new one is minted.
func requestLogger(base zerolog.Logger, incomingID, method, path, ip string) (zerolog.Logger, string) {
	reqID := incomingID
	if reqID == "" {
		reqID = uuid.New().String()
	}
	return base.With().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, method).
		Str(FieldPath, path).
		Str(FieldClientIP, ip).
		Logger(), reqID
}

// completed logs the end of a request; server errors are logged at error level.
func completed(l zerolog.Logger, status int, start time.Time) *zerolog.Event {
	evt := l.Info()
	if status >= 500 {
		evt = l.Error()
	}
	return evt.
		Int(FieldStatus, status).
		Float64(FieldLatency, float64(time.Since(start).Milliseconds()))
}

// GinMiddleware tags every request with an X-Request-ID, puts a child logger
// in the request context and logs the completed request, including the chat
// room when a handler recorded one under FieldRoom.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		child, reqID := requestLogger(logger, c.GetHeader(headerRequestID), c.Request.Method, c.Request.URL.Path, c.ClientIP())

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		evt := completed(child, c.Writer.Status(), start)
		if room := c.GetString(FieldRoom); room != "" {
			evt = evt.Str(FieldRoom, room)
		}
		evt.Msg("request completed")
	}
}
