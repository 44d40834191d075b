// Package transport delivers form payloads to the relay.
package transport

import (
	"context"
	"net/http"

	"github.com/vdavid/mailmate/internal/models"
)

// Client sends a payload to an endpoint. Failures are returned as *Error.
type Client interface {
	Send(ctx context.Context, endpointURL string, payload models.Payload) (*ResponseInfo, error)
}

// ResponseInfo describes a successful relay response.
type ResponseInfo struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}
