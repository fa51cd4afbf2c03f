package actuator

import "errors"

var (
	// ErrCommandTimeout is returned when the driver did not answer in time.
	ErrCommandTimeout = errors.New("actuator: command timeout")

	// ErrCommandRejected is returned when the driver acked with "failed".
	ErrCommandRejected = errors.New("actuator: command rejected")

	// ErrPublishFailed is returned when the command could not be sent.
	ErrPublishFailed = errors.New("actuator: publish failed")

	// ErrBridgeStopped is returned for moves pending when the bridge stops.
	ErrBridgeStopped = errors.New("actuator: bridge stopped")
)
