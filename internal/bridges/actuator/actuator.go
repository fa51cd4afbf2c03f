package actuator

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/arentkievits/odemis/internal/hardware"
)

// RemoteActuator is a hardware.Actuator whose moves are executed by an
// external driver. Targets are validated locally before being sent.
type RemoteActuator struct {
	bridge *Bridge
	role   string
	kind   hardware.Kind
	axes   map[string]hardware.Axis

	mu  sync.RWMutex
	pos map[string]any
}

func newRemoteActuator(b *Bridge, role string, kind hardware.Kind, axes []hardware.Axis) *RemoteActuator {
	a := &RemoteActuator{
		bridge: b,
		role:   role,
		kind:   kind,
		axes:   make(map[string]hardware.Axis, len(axes)),
		pos:    make(map[string]any, len(axes)),
	}
	for _, ax := range axes {
		a.axes[ax.Name] = ax
	}
	return a
}

// Role returns the actuator role.
func (a *RemoteActuator) Role() string { return a.role }

// Kind returns the actuator kind.
func (a *RemoteActuator) Kind() hardware.Kind { return a.kind }

// AxisNames returns the sorted axis names.
func (a *RemoteActuator) AxisNames() []string {
	return slices.Sorted(maps.Keys(a.axes))
}

// Axis returns the named axis description.
func (a *RemoteActuator) Axis(name string) (hardware.Axis, bool) {
	ax, ok := a.axes[name]
	return ax, ok
}

// HasAxis reports whether the axis exists.
func (a *RemoteActuator) HasAxis(name string) bool {
	_, ok := a.axes[name]
	return ok
}

// Position returns the last reported position. Axes the driver never
// reported are absent.
func (a *RemoteActuator) Position() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.pos)
}

// MoveAbs validates the targets and sends them to the driver.
func (a *RemoteActuator) MoveAbs(ctx context.Context, moves map[string]any) *hardware.Future {
	for name, target := range moves {
		ax, ok := a.axes[name]
		if !ok {
			return hardware.CompletedFuture(fmt.Errorf("%s: %w %q", a.role, hardware.ErrUnknownAxis, name))
		}
		if err := ax.Validate(target); err != nil {
			return hardware.CompletedFuture(fmt.Errorf("%s: %w", a.role, err))
		}
	}
	if len(moves) == 0 {
		return hardware.CompletedFuture(nil)
	}
	return a.bridge.send(ctx, a.role, moves)
}

// apply merges reported positions, ignoring unknown axes.
func (a *RemoteActuator) apply(pos map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, v := range pos {
		if _, ok := a.axes[name]; ok {
			a.pos[name] = v
		}
	}
}

var _ hardware.Actuator = (*RemoteActuator)(nil)
