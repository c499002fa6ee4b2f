package middleware

import (
	"github.com/GriffinCanCode/webgate/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the correlation id in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "requestID"

// RequestID assigns every request a req_<ulid> id, reusing a well-formed
// inbound one, and echoes it in the response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if !id.IsRequestID(reqID) {
			reqID = id.NewRequestID().String()
		}

		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, generating one when
// the middleware did not run.
func GetRequestID(c *gin.Context) string {
	if v := c.GetString(requestIDKey); v != "" {
		return v
	}
	reqID := id.NewRequestID().String()
	c.Set(requestIDKey, reqID)
	return reqID
}
