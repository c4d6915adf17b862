package api

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that the server could not be reached at all.
var ErrUnavailable = errors.New("server unavailable")

// ValidationError carries the field problems from a 422 response. The request
// reached the server and was understood; retrying it unchanged is pointless.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s (%d fields)", e.Message, len(e.Fields))
}
