package hardware

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends an inventory entry can be driven by.
const (
	BackendSimulated = "simulated"
	BackendMQTT      = "mqtt"
)

// Inventory is the set of components present on a running microscope.
//
// It serves both as the component registry (GetComponent) and as the
// microscope descriptor (Role, HasComponent).
//
// Thread Safety: All methods are safe for concurrent use.
type Inventory struct {
	role       string
	mu         sync.RWMutex
	components map[string]Component
}

// NewInventory creates an empty inventory for a microscope of the given role.
func NewInventory(microscopeRole string) *Inventory {
	return &Inventory{
		role:       microscopeRole,
		components: make(map[string]Component),
	}
}

// Role returns the microscope role (e.g. "sparc", "sparc2").
func (inv *Inventory) Role() string {
	return inv.role
}

// Add registers a component. Roles are unique.
func (inv *Inventory) Add(c Component) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.components[c.Role()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRole, c.Role())
	}
	inv.components[c.Role()] = c
	return nil
}

// GetComponent returns the component with the given role.
func (inv *Inventory) GetComponent(role string) (Component, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	c, ok := inv.components[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, role)
	}
	return c, nil
}

// HasComponent reports whether a component with the role is present.
func (inv *Inventory) HasComponent(role string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	_, ok := inv.components[role]
	return ok
}

// Components returns all components ordered by role.
func (inv *Inventory) Components() []Component {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]Component, 0, len(inv.components))
	for _, role := range slices.Sorted(maps.Keys(inv.components)) {
		out = append(out, inv.components[role])
	}
	return out
}

// Actuators returns all actuators ordered by role.
func (inv *Inventory) Actuators() []Actuator {
	var out []Actuator
	for _, c := range inv.Components() {
		if a, ok := c.(Actuator); ok {
			out = append(out, a)
		}
	}
	return out
}

// InventoryFile is the on-disk description of a microscope.
//
// Example:
//
//	microscope: sparc2
//	components:
//	  - role: ccd
//	    kind: detector
//	  - role: filter
//	    kind: filter-wheel
//	    axes:
//	      - name: band
//	        choices: {0: pass-through, 1: "500nm"}
//	    position: {band: 1}
type InventoryFile struct {
	Microscope string          `yaml:"microscope"`
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec describes one component of an InventoryFile.
type ComponentSpec struct {
	Role     string         `yaml:"role"`
	Kind     string         `yaml:"kind"`
	Backend  string         `yaml:"backend,omitempty"`
	Axes     []Axis         `yaml:"axes,omitempty"`
	Position map[string]any `yaml:"position,omitempty"`
}

// RemoteFactory builds an actuator driven by an external process.
type RemoteFactory func(role string, kind Kind, axes []Axis) (Actuator, error)

// InventoryOptions controls how an InventoryFile is turned into components.
type InventoryOptions struct {
	// Latency is applied to every simulated actuator.
	Latency time.Duration

	// Remote builds actuators whose backend is "mqtt". Required if any
	// component uses that backend.
	Remote RemoteFactory

	// DefaultBackend applies to entries that do not name a backend.
	// Empty means simulated.
	DefaultBackend string
}

// LoadInventory reads and builds an inventory from a YAML file.
func LoadInventory(path string, opts InventoryOptions) (*Inventory, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}

	var file InventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing inventory file: %w", err)
	}
	return BuildInventory(file, opts)
}

// BuildInventory creates the components described by file.
func BuildInventory(file InventoryFile, opts InventoryOptions) (*Inventory, error) {
	if file.Microscope == "" {
		return nil, fmt.Errorf("%w: microscope role is required", ErrInvalidInventory)
	}

	inv := NewInventory(file.Microscope)
	for i, spec := range file.Components {
		c, err := buildComponent(spec, opts)
		if err != nil {
			return nil, fmt.Errorf("component %d (%s): %w", i, spec.Role, err)
		}
		if err := inv.Add(c); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func buildComponent(spec ComponentSpec, opts InventoryOptions) (Component, error) {
	if spec.Role == "" {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidInventory)
	}
	if spec.Kind == kindDetector {
		return NewDetector(spec.Role), nil
	}

	kind, err := ParseKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	if len(spec.Axes) == 0 {
		return nil, fmt.Errorf("%w: actuator needs at least one axis", ErrInvalidInventory)
	}
	for _, a := range spec.Axes {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: axis name is required", ErrInvalidInventory)
		}
		if p, ok := spec.Position[a.Name]; ok {
			if err := a.Validate(p); err != nil {
				return nil, fmt.Errorf("initial position: %w", err)
			}
		}
	}

	backend := spec.Backend
	if backend == "" {
		backend = opts.DefaultBackend
	}

	switch backend {
	case "", BackendSimulated:
		return NewSimulated(spec.Role, kind, spec.Axes, spec.Position, WithLatency(opts.Latency)), nil
	case BackendMQTT:
		if opts.Remote == nil {
			return nil, fmt.Errorf("%w: no remote backend configured", ErrInvalidInventory)
		}
		return opts.Remote(spec.Role, kind, spec.Axes)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidInventory, backend)
	}
}
