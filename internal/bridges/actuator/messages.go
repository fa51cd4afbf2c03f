package actuator

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// CommandMessage asks a driver to move some axes.
// Topic: odemis/command/actuator/{role}
type CommandMessage struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Role      string         `json:"role"`
	Moves     map[string]any `json:"moves"`
}

// NewCommandMessage creates a command with a fresh ID.
func NewCommandMessage(role string, moves map[string]any) CommandMessage {
	return CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Role:      role,
		Moves:     maps.Clone(moves),
	}
}

// AckStatus is the outcome reported by a driver.
type AckStatus string

const (
	AckAccepted  AckStatus = "accepted"
	AckCompleted AckStatus = "completed"
	AckFailed    AckStatus = "failed"
)

// AckMessage answers a CommandMessage.
// Topic: odemis/ack/actuator/{role}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role,omitempty"`
	Status    AckStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// StateMessage reports the current position of a driver's axes.
// Topic: odemis/state/actuator/{role} (retained)
type StateMessage struct {
	Role      string         `json:"role"`
	Position  map[string]any `json:"position"`
	Timestamp time.Time      `json:"timestamp"`
}
