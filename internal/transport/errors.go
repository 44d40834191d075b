package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a send failed.
type Kind int

const (
	// KindRequestConstruction means the request was never dispatched.
	KindRequestConstruction Kind = iota
	// KindServerRejected means the relay answered with a non-success status.
	KindServerRejected
	// KindNoResponse means the request went out but no response came back.
	KindNoResponse
)

func (k Kind) String() string {
	switch k {
	case KindServerRejected:
		return "server_rejected"
	case KindNoResponse:
		return "no_response"
	default:
		return "request_construction"
	}
}

// NoResponseDetail is the user-facing detail for KindNoResponse.
const NoResponseDetail = "No response from server."

// Error is a classified send failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// Detail is the short text shown to the user.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServerRejected:
		return fmt.Sprintf("server rejected request (status %d): %s", e.StatusCode, e.Detail)
	case KindNoResponse:
		if e.Err != nil {
			return fmt.Sprintf("no response from server: %v", e.Err)
		}
		return "no response from server"
	default:
		return fmt.Sprintf("failed to build request: %s", e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func constructionError(err error) *Error {
	return &Error{Kind: KindRequestConstruction, Detail: err.Error(), Err: err}
}

func noResponseError(err error) *Error {
	return &Error{Kind: KindNoResponse, Detail: NoResponseDetail, Err: err}
}

// Classify returns err as a *Error. Errors that did not come from a transport
// are treated as request construction failures.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return constructionError(err)
}
