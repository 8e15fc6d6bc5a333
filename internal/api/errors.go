package api

import (
	"errors"
	"fmt"
)

// ErrNoAccessKey means no network operation can be attempted at all. It is a
// configuration problem, never retried.
var ErrNoAccessKey = errors.New("access key not found")

// ClientError is a 4xx response. Retrying will not help without operator
// intervention.
type ClientError struct {
	Status int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: %d", e.Status)
}

// ServerError is a 5xx response, treated as transient.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d", e.Status)
}

// IsTransient reports whether the error is worth retrying: 5xx responses and
// anything transport-level (timeouts, refused connections). Config errors and
// 4xx responses are final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoAccessKey) {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	return true
}
