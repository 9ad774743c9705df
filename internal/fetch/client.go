// Package fetch provides the upstream API clients: Kiln for accounts, stakes,
// rewards and network data, and Etherscan for balances, prices and blocks.
package fetch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody bounds how much of an upstream error body is kept
const maxErrorBody = 512

// StatusError is returned when an upstream answers with a non-2xx status
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Service, e.StatusCode, e.Body)
}

func newStatusError(service string, code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Service: service, StatusCode: code, Body: string(body)}
}

// newRetryClient creates an HTTP client with retry capabilities. The last
// response is passed through when retries run out so callers can report its status.
func newRetryClient(retryMax int, timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	c.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logrus.WithFields(logrus.Fields{
				"url":     req.URL.Redacted(),
				"attempt": attempt,
			}).Debug("Retrying upstream request")
		}
	}

	std := c.StandardClient()
	std.Timeout = timeout
	return std
}
