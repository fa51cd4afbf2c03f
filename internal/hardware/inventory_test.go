package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sparc2Inventory = `
microscope: sparc2
components:
  - role: ccd
    kind: detector
  - role: spectrometer
    kind: detector
  - role: spectrograph
    kind: spectrograph
    axes:
      - name: grating
        choices: {1: "600gmm", 2: mirror}
      - name: wavelength
        unit: m
        range: [0, 2.0e-6]
      - name: slit-in
        unit: m
        range: [1.0e-6, 2.0e-3]
    position: {grating: 1, slit-in: 100.0e-6}
  - role: lens-switch
    kind: selector
    axes:
      - name: x
        choices: {0.0: "off", 0.001: "on"}
`

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing inventory: %v", err)
	}
	return path
}

func TestLoadInventory(t *testing.T) {
	inv, err := LoadInventory(writeInventory(t, sparc2Inventory), InventoryOptions{})
	if err != nil {
		t.Fatalf("LoadInventory() error = %v", err)
	}

	if inv.Role() != "sparc2" {
		t.Errorf("Role() = %q, want sparc2", inv.Role())
	}
	if !inv.HasComponent("ccd") || !inv.HasComponent("spectrometer") {
		t.Error("detectors missing from inventory")
	}
	if len(inv.Components()) != 4 {
		t.Errorf("len(Components()) = %d, want 4", len(inv.Components()))
	}
	if len(inv.Actuators()) != 2 {
		t.Errorf("len(Actuators()) = %d, want 2", len(inv.Actuators()))
	}

	c, err := inv.GetComponent("spectrograph")
	if err != nil {
		t.Fatalf("GetComponent() error = %v", err)
	}
	sp, ok := c.(Actuator)
	if !ok {
		t.Fatalf("spectrograph is %T, want Actuator", c)
	}
	if sp.Kind() != KindSpectrograph {
		t.Errorf("Kind() = %q, want %q", sp.Kind(), KindSpectrograph)
	}
	if !Equal(sp.Position()["grating"], 1) {
		t.Errorf("grating = %v, want 1", sp.Position()["grating"])
	}

	ls, _ := inv.GetComponent("lens-switch")
	x, _ := ls.(Actuator).Axis("x")
	key, ok := x.Choices.KeyFor("on")
	if !ok || !Equal(key, 0.001) {
		t.Errorf("KeyFor(on) = %v, %v, want 0.001", key, ok)
	}
}

func TestInventory_GetComponent_NotFound(t *testing.T) {
	inv := NewInventory("sparc")

	_, err := inv.GetComponent("filter")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetComponent() error = %v, want ErrNotFound", err)
	}
}

func TestInventory_DuplicateRole(t *testing.T) {
	inv := NewInventory("sparc")
	if err := inv.Add(NewDetector("ccd")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := inv.Add(NewDetector("ccd")); !errors.Is(err, ErrDuplicateRole) {
		t.Errorf("Add() error = %v, want ErrDuplicateRole", err)
	}
}

func TestBuildInventory_Errors(t *testing.T) {
	tests := []struct {
		name string
		file InventoryFile
		want error
	}{
		{
			name: "missing microscope role",
			file: InventoryFile{},
			want: ErrInvalidInventory,
		},
		{
			name: "unknown kind",
			file: InventoryFile{Microscope: "sparc", Components: []ComponentSpec{
				{Role: "x", Kind: "laser", Axes: []Axis{{Name: "power"}}},
			}},
			want: ErrInvalidKind,
		},
		{
			name: "actuator without axes",
			file: InventoryFile{Microscope: "sparc", Components: []ComponentSpec{
				{Role: "filter", Kind: "filter-wheel"},
			}},
			want: ErrInvalidInventory,
		},
		{
			name: "initial position not a choice",
			file: InventoryFile{Microscope: "sparc", Components: []ComponentSpec{
				{
					Role: "filter", Kind: "filter-wheel",
					Axes:     []Axis{{Name: "band", Choices: Choices{{Key: 0, Value: "pass-through"}}}},
					Position: map[string]any{"band": 4},
				},
			}},
			want: ErrInvalidPosition,
		},
		{
			name: "mqtt backend without factory",
			file: InventoryFile{Microscope: "sparc", Components: []ComponentSpec{
				{Role: "filter", Kind: "filter-wheel", Backend: BackendMQTT, Axes: []Axis{{Name: "band"}}},
			}},
			want: ErrInvalidInventory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildInventory(tt.file, InventoryOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("BuildInventory() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildInventory_RemoteFactory(t *testing.T) {
	var gotRole string
	remote := func(role string, kind Kind, axes []Axis) (Actuator, error) {
		gotRole = role
		return NewSimulated(role, kind, axes, nil), nil
	}

	file := InventoryFile{Microscope: "sparc2", Components: []ComponentSpec{
		{Role: "spec-det-selector", Kind: "selector", Backend: BackendMQTT, Axes: []Axis{{Name: "rx"}}},
	}}
	inv, err := BuildInventory(file, InventoryOptions{Remote: remote})
	if err != nil {
		t.Fatalf("BuildInventory() error = %v", err)
	}
	if gotRole != "spec-det-selector" {
		t.Errorf("remote factory called with %q", gotRole)
	}
	if !inv.HasComponent("spec-det-selector") {
		t.Error("remote actuator not registered")
	}
}

func TestBuildInventory_DefaultBackend(t *testing.T) {
	var remoteRoles []string
	remote := func(role string, kind Kind, axes []Axis) (Actuator, error) {
		remoteRoles = append(remoteRoles, role)
		return NewSimulated(role, kind, axes, nil), nil
	}

	file := InventoryFile{Microscope: "sparc2", Components: []ComponentSpec{
		{Role: "lens-switch", Kind: "selector", Axes: []Axis{{Name: "x"}}},
		{Role: "filter", Kind: "filter-wheel", Backend: BackendSimulated, Axes: []Axis{{Name: "band"}}},
	}}
	if _, err := BuildInventory(file, InventoryOptions{Remote: remote, DefaultBackend: BackendMQTT}); err != nil {
		t.Fatalf("BuildInventory() error = %v", err)
	}
	if len(remoteRoles) != 1 || remoteRoles[0] != "lens-switch" {
		t.Errorf("remote roles = %v, want [lens-switch]", remoteRoles)
	}
}
