package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier in both directions
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request ID. apperr.Respond
	// and the request logger read it from here.
	RequestIDKey = "request_id"
)

// maxRequestIDLength bounds an inbound ID so callers cannot bloat log records
const maxRequestIDLength = 128

// RequestIDMiddleware reuses an inbound X-Request-ID or assigns a UUID, stores
// it under RequestIDKey and echoes it in the response. Register it before the
// logger so every log record for the request carries the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
