package hardware

import (
	"context"
	"fmt"
)

// Kind classifies an actuator. All kinds share the same MoveAbs contract;
// the kind only tells callers which axes to expect.
type Kind string

// Actuator kinds.
const (
	// KindFilterWheel exposes a discrete "band" axis.
	KindFilterWheel Kind = "filter-wheel"

	// KindSpectrograph exposes "grating", "wavelength" and usually "slit-in".
	KindSpectrograph Kind = "spectrograph"

	// KindSelector is a mirror or lens switch with one or two axes.
	KindSelector Kind = "selector"

	// KindGeneric is any other actuator.
	KindGeneric Kind = "generic"
)

// kindDetector is the inventory kind for non-moving detector components.
const kindDetector = "detector"

// ValidKinds returns all actuator kinds.
func ValidKinds() []Kind {
	return []Kind{KindFilterWheel, KindSpectrograph, KindSelector, KindGeneric}
}

// ParseKind converts an inventory string into an actuator Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range ValidKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Component is any part of the microscope addressable by role.
type Component interface {
	// Role returns the unique role of the component (e.g. "filter").
	Role() string
}

// Actuator is a component with one or more movable axes.
type Actuator interface {
	Component

	// Kind returns the actuator class.
	Kind() Kind

	// AxisNames returns the names of all axes, sorted.
	AxisNames() []string

	// Axis returns the description of the named axis.
	Axis(name string) (Axis, bool)

	// HasAxis reports whether the actuator exposes the named axis.
	HasAxis(name string) bool

	// Position returns a snapshot of the current position of every axis.
	Position() map[string]any

	// MoveAbs starts moving the given axes to absolute targets.
	// The returned Future resolves when all axes reached their target.
	MoveAbs(ctx context.Context, moves map[string]any) *Future
}

// Detector is a data-producing component. It has no axes; the optical path
// only needs to know that it exists.
type Detector struct {
	role string
}

// NewDetector creates a detector component with the given role.
func NewDetector(role string) *Detector {
	return &Detector{role: role}
}

// Role returns the detector role.
func (d *Detector) Role() string {
	return d.role
}
