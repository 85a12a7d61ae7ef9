package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTransport marks a communication failure with the server. The driver
// abandons the current dataset and recreates the channel when it sees one.
var ErrTransport = errors.New("transport fault")

// ErrChannelReleased indicates a call on a channel that was already closed or aborted.
var ErrChannelReleased = errors.New("channel released")

// IsTransport reports whether err is, or wraps, a transport fault.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

func transportError(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(ErrTransport, "%s: %v", fmt.Sprintf(format, args...), cause)
}
