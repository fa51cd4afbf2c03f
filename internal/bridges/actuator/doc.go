// Package actuator drives actuators that live in an external driver
// process, reachable only through MQTT.
//
// For every move the Bridge publishes a CommandMessage on
// odemis/command/actuator/{role} and resolves the move's Future when the
// driver answers on odemis/ack/actuator/{role}:
//
//	accepted   the driver started the move (informational)
//	completed  all axes reached their target
//	failed     the move was rejected or aborted; Error explains why
//
// Drivers also publish their position, retained, on
// odemis/state/actuator/{role}. RemoteActuator caches the last state so
// Position never blocks.
//
// A move that is not answered within the command timeout fails with
// ErrCommandTimeout. Publishing is retried with exponential backoff while
// the broker connection is down.
package actuator
