package discovery

import (
	"errors"
	"fmt"
)

// ErrNotAccepted is returned when the display service rejects a message.
var ErrNotAccepted = errors.New("display message not accepted")

// SendFailure reports one datagram that could not be sent. It is logged
// and never aborts the surrounding operation.
type SendFailure struct {
	Interface string // Interface name, empty for unicast replies
	Target    string // Destination address
	Err       error
}

func (e *SendFailure) Error() string {
	if e.Interface != "" {
		return fmt.Sprintf("send to %s via %s failed: %v", e.Target, e.Interface, e.Err)
	}
	return fmt.Sprintf("send to %s failed: %v", e.Target, e.Err)
}

func (e *SendFailure) Unwrap() error {
	return e.Err
}
