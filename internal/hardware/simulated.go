package hardware

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Default axis bounds for simulated spectrographs (metres).
var (
	wavelengthRange = []float64{0, 2e-6}
	slitRange       = []float64{1e-6, 2e-3}
)

// Simulated is an in-memory actuator. Moves are validated against the axis
// descriptions and applied after an optional latency.
//
// Thread Safety: All methods are safe for concurrent use.
type Simulated struct {
	role    string
	kind    Kind
	axes    map[string]Axis
	latency time.Duration

	mu    sync.RWMutex
	pos   map[string]any
	fault error
	moves int
}

// SimulatedOption configures a Simulated actuator.
type SimulatedOption func(*Simulated)

// WithLatency delays move completion by d.
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		s.latency = d
	}
}

// NewSimulated creates a simulated actuator with arbitrary axes.
// Axes without an initial position start at their first choice key or 0.
func NewSimulated(role string, kind Kind, axes []Axis, initial map[string]any, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		role: role,
		kind: kind,
		axes: make(map[string]Axis, len(axes)),
		pos:  make(map[string]any, len(axes)),
	}
	for _, a := range axes {
		s.axes[a.Name] = a
		if v, ok := initial[a.Name]; ok {
			s.pos[a.Name] = v
			continue
		}
		if a.IsDiscrete() {
			s.pos[a.Name] = a.Choices.Sorted()[0].Key
		} else {
			s.pos[a.Name] = 0.0
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFilterWheel creates a simulated filter wheel with a "band" axis.
func NewFilterWheel(role string, bands Choices, band any, opts ...SimulatedOption) *Simulated {
	return NewSimulated(role, KindFilterWheel,
		[]Axis{{Name: "band", Choices: bands}},
		map[string]any{"band": band}, opts...)
}

// NewSpectrograph creates a simulated spectrograph with "grating",
// "wavelength" and "slit-in" axes.
func NewSpectrograph(role string, gratings Choices, grating any, opts ...SimulatedOption) *Simulated {
	return NewSimulated(role, KindSpectrograph,
		[]Axis{
			{Name: "grating", Choices: gratings},
			{Name: "wavelength", Unit: "m", Range: wavelengthRange},
			{Name: "slit-in", Unit: "m", Range: slitRange},
		},
		map[string]any{"grating": grating, "wavelength": 0.0, "slit-in": 100e-6}, opts...)
}

// NewSelector creates a simulated selector (mirror flipper, lens switch)
// with a single axis.
func NewSelector(role string, axis Axis, initial any, opts ...SimulatedOption) *Simulated {
	return NewSimulated(role, KindSelector, []Axis{axis}, map[string]any{axis.Name: initial}, opts...)
}

// Role returns the actuator role.
func (s *Simulated) Role() string { return s.role }

// Kind returns the actuator kind.
func (s *Simulated) Kind() Kind { return s.kind }

// AxisNames returns the sorted axis names.
func (s *Simulated) AxisNames() []string {
	return slices.Sorted(maps.Keys(s.axes))
}

// Axis returns the named axis description.
func (s *Simulated) Axis(name string) (Axis, bool) {
	a, ok := s.axes[name]
	return a, ok
}

// HasAxis reports whether the axis exists.
func (s *Simulated) HasAxis(name string) bool {
	_, ok := s.axes[name]
	return ok
}

// Position returns a copy of the current axis positions.
func (s *Simulated) Position() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.pos)
}

// SetFault makes every following move fail with err (nil clears it).
func (s *Simulated) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// MoveCount returns the number of accepted move requests.
func (s *Simulated) MoveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moves
}

// MoveAbs validates the targets and applies them after the configured latency.
// With no latency the move is applied before MoveAbs returns.
func (s *Simulated) MoveAbs(ctx context.Context, moves map[string]any) *Future {
	for name, target := range moves {
		a, ok := s.axes[name]
		if !ok {
			return CompletedFuture(fmt.Errorf("%s: %w %q", s.role, ErrUnknownAxis, name))
		}
		if err := a.Validate(target); err != nil {
			return CompletedFuture(fmt.Errorf("%s: %w", s.role, err))
		}
	}

	s.mu.Lock()
	fault := s.fault
	if fault == nil {
		s.moves++
	}
	s.mu.Unlock()
	if fault != nil {
		return CompletedFuture(fmt.Errorf("%s: %w: %w", s.role, ErrMoveFailed, fault))
	}

	targets := maps.Clone(moves)
	if s.latency <= 0 {
		s.apply(targets)
		return CompletedFuture(nil)
	}

	f := NewFuture()
	go func() {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.apply(targets)
			f.Complete(nil)
		case <-ctx.Done():
			f.Complete(fmt.Errorf("%s: %w: %w", s.role, ErrMoveFailed, ctx.Err()))
		}
	}()
	return f
}

func (s *Simulated) apply(targets map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.pos, targets)
}
