package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots.
const (
	TopicPrefix       = "odemis"
	TopicPrefixCore   = TopicPrefix + "/core"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics builds the topic names used by the daemon and the actuator
// drivers. Actuator topics follow odemis/{category}/actuator/{role}.
type Topics struct{}

// SystemStatus carries the daemon's online/offline status (retained, LWT).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// PathMode carries the current optical path mode (retained).
func (Topics) PathMode() string {
	return TopicPrefixCore + "/path/mode"
}

// PathTransition carries every transition record.
func (Topics) PathTransition() string {
	return TopicPrefixCore + "/path/transition"
}

// ActuatorCommand is where move commands for role are published.
func (Topics) ActuatorCommand(role string) string {
	return fmt.Sprintf("%s/command/actuator/%s", TopicPrefix, role)
}

// ActuatorAck is where the driver of role acknowledges commands.
func (Topics) ActuatorAck(role string) string {
	return fmt.Sprintf("%s/ack/actuator/%s", TopicPrefix, role)
}

// ActuatorState is where the driver of role publishes its position (retained).
func (Topics) ActuatorState(role string) string {
	return fmt.Sprintf("%s/state/actuator/%s", TopicPrefix, role)
}

// AllActuatorAcks matches the acknowledgements of every actuator.
func (t Topics) AllActuatorAcks() string {
	return t.ActuatorAck("+")
}

// AllActuatorStates matches the state of every actuator.
func (t Topics) AllActuatorStates() string {
	return t.ActuatorState("+")
}

// ActuatorRole extracts the role from an actuator topic of any category.
// ok is false if topic is not an actuator topic.
func (Topics) ActuatorRole(topic string) (role string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != "actuator" || parts[3] == "" { //nolint:mnd // odemis/{category}/actuator/{role}
		return "", false
	}
	return parts[3], true
}
