package opticalpath

import (
	"fmt"
	"slices"
)

// Presence answers whether a component role exists on the microscope.
type Presence interface {
	HasComponent(role string) bool
}

// PresenceFunc adapts a function to the Presence interface.
type PresenceFunc func(role string) bool

// HasComponent calls f(role).
func (f PresenceFunc) HasComponent(role string) bool { return f(role) }

// AvailableModes is the immutable result of filtering a static table
// against the hardware actually present.
type AvailableModes struct {
	settable Table
	guess    Table
}

// BuildAvailableModes derives the settable and guessable modes of table
// for the hardware described by hw.
//
// A mode is settable when its detector is present. A settable mode is
// guessable unless it is an alignment mode, or it is the spectral variant
// that does not match the installation (dedicated vs integrated). Two
// guessable modes sharing a detector make inference ambiguous and are
// rejected with ErrAmbiguousDetector.
func BuildAvailableModes(table Table, hw Presence) (*AvailableModes, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	settable := make(Table, 0, len(table))
	for _, m := range table.clone() {
		if hw.HasComponent(m.Detector) {
			settable = append(settable, m)
		}
	}

	unguessable := ModeSpectralDedicated
	if hw.HasComponent(RoleDedicatedSpectralCCD) {
		unguessable = ModeSpectralIntegrated
	}

	guess := make(Table, 0, len(settable))
	byDetector := make(map[string]string, len(settable))
	for _, m := range settable {
		if IsAlignMode(m.Name) || m.Name == unguessable {
			continue
		}
		if other, dup := byDetector[m.Detector]; dup {
			return nil, fmt.Errorf("%w: %q is the detector of both %q and %q",
				ErrAmbiguousDetector, m.Detector, other, m.Name)
		}
		byDetector[m.Detector] = m.Name
		guess = append(guess, m)
	}

	return &AvailableModes{settable: settable, guess: guess}, nil
}

// Modes returns a copy of the settable modes in table order.
func (a *AvailableModes) Modes() Table {
	return a.settable.clone()
}

// Guessable returns a copy of the modes eligible for inference.
func (a *AvailableModes) Guessable() Table {
	return a.guess.clone()
}

// Lookup returns the settable mode with the given name.
func (a *AvailableModes) Lookup(name string) (Mode, bool) {
	m, ok := a.settable.Lookup(name)
	if !ok {
		return Mode{}, false
	}
	m.Targets = m.Targets.clone()
	return m, true
}

// IsGuessable reports whether the named mode can be returned by inference.
func (a *AvailableModes) IsGuessable(name string) bool {
	return slices.Contains(a.guess.Names(), name)
}

// guessFor returns the first guessable mode fed by detectorRole.
func (a *AvailableModes) guessFor(detectorRole string) (string, bool) {
	for _, m := range a.guess {
		if m.Detector == detectorRole {
			return m.Name, true
		}
	}
	return "", false
}
