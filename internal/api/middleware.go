package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestLogger logs one line per request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}

// rateLimit applies the shared token bucket; nil limiter disables it
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error: "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) recovery(c *gin.Context, recovered any) {
	s.log.WithField("path", c.Request.URL.Path).Errorf("Panic recovered: %v", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		Error:   "Internal server error",
		Details: "unexpected failure while handling the request",
	})
}
