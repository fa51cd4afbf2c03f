package hardware

import "errors"

// Domain errors for the hardware package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, hardware.ErrNotFound) {
//	    // component is not part of this microscope
//	}
var (
	// ErrNotFound is returned when no component has the requested role.
	ErrNotFound = errors.New("hardware: component not found")

	// ErrDuplicateRole is returned when two components claim the same role.
	ErrDuplicateRole = errors.New("hardware: duplicate role")

	// ErrUnknownAxis is returned when a move references an axis the actuator lacks.
	ErrUnknownAxis = errors.New("hardware: unknown axis")

	// ErrInvalidPosition is returned when a target is not a valid choice or out of range.
	ErrInvalidPosition = errors.New("hardware: invalid position")

	// ErrMoveFailed is returned when the actuator could not complete a move.
	ErrMoveFailed = errors.New("hardware: move failed")

	// ErrInvalidKind is returned when an inventory entry has an unknown kind.
	ErrInvalidKind = errors.New("hardware: invalid kind")

	// ErrInvalidInventory is returned when an inventory description is malformed.
	ErrInvalidInventory = errors.New("hardware: invalid inventory")
)
