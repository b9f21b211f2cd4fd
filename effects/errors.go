/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedNotification = errors.New("malformed notification")
	ErrUnknownEffect         = errors.New("unknown effect")
	ErrEndpointNotConfigured = errors.New("no endpoint configured")
	ErrStaleEvent            = errors.New("event does not match the active flow")
	ErrNoBackStep            = errors.New("step has no previous step")
	ErrInvalidAnswer         = errors.New("invalid answer")
)

// StatusError is returned when the action API answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("POST %s: unexpected status %d", e.Endpoint, e.Code)
}
