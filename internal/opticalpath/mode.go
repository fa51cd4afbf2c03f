package opticalpath

import (
	"encoding/json"
	"maps"
	"math"
)

// Mode names used by the built-in tables.
const (
	ModeAR                 = "ar"
	ModeCLI                = "cli"
	ModeSpectral           = "spectral"
	ModeMonochromator      = "monochromator"
	ModeSpectralIntegrated = "spectral-integrated"
	ModeSpectralDedicated  = "spectral-dedicated"
	ModeMirrorAlign        = "mirror-align"
	ModeChamberView        = "chamber-view"
	ModeFiberAlign         = "fiber-align"
	ModeSpecFocus          = "spec-focus"
)

// Microscope roles.
const (
	// RoleSPARC2 selects ModesV2. Any other role uses ModesV1.
	RoleSPARC2 = "sparc2"

	// RoleDedicatedSpectralCCD is present when the spectrometer has its own
	// camera port; it decides between the integrated and dedicated spectral modes.
	RoleDedicatedSpectralCCD = "sp-ccd"
)

// Component roles and axes that get special treatment in SetPath.
const (
	roleFilter       = "filter"
	roleSpectrograph = "spectrograph"

	axisBand       = "band"
	axisGrating    = "grating"
	axisWavelength = "wavelength"
	axisSlitIn     = "slit-in"

	// MirrorLabel is the choice value of the zero-order grating position.
	MirrorLabel = "mirror"
)

// notMirror is the type of GratingNotMirror.
type notMirror struct{}

func (notMirror) String() string { return "GRATING_NOT_MIRROR" }

// MarshalJSON renders the sentinel by name.
func (n notMirror) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// GratingNotMirror is a grating target meaning "any grating but the mirror".
// The last grating used is preferred; otherwise the first non-mirror choice.
var GratingNotMirror any = notMirror{}

// IsGratingNotMirror reports whether v is the GratingNotMirror sentinel.
func IsGratingNotMirror(v any) bool {
	_, ok := v.(notMirror)
	return ok
}

// alignModes are manual set-up modes. They are never guessed, and leaving
// them restores the filter band and input slit saved before entering.
var alignModes = map[string]struct{}{
	ModeMirrorAlign: {},
	ModeChamberView: {},
	ModeFiberAlign:  {},
	ModeSpecFocus:   {},
}

// IsAlignMode reports whether name is an alignment mode.
func IsAlignMode(name string) bool {
	_, ok := alignModes[name]
	return ok
}

// Targets maps actuator role -> axis -> target.
type Targets map[string]map[string]any

// clone returns a deep copy of the two-level map.
func (t Targets) clone() Targets {
	out := make(Targets, len(t))
	for role, axes := range t {
		out[role] = maps.Clone(axes)
	}
	return out
}

// Mode is a named configuration of the optical path.
type Mode struct {
	// Name identifies the mode (e.g. "ar", "mirror-align").
	Name string `json:"name"`

	// Detector is the role of the detector this mode feeds.
	Detector string `json:"detector"`

	// Targets are the axis positions the mode requires.
	Targets Targets `json:"targets"`
}

// Table is an ordered list of modes. Order is the tie-break when a
// lookup could match more than one mode.
type Table []Mode

// Lookup returns the mode with the given name.
func (t Table) Lookup(name string) (Mode, bool) {
	for _, m := range t {
		if m.Name == name {
			return m, true
		}
	}
	return Mode{}, false
}

// Names returns the mode names in table order.
func (t Table) Names() []string {
	out := make([]string, len(t))
	for i, m := range t {
		out[i] = m.Name
	}
	return out
}

// clone returns a deep copy of the table.
func (t Table) clone() Table {
	out := make(Table, len(t))
	for i, m := range t {
		out[i] = Mode{Name: m.Name, Detector: m.Detector, Targets: m.Targets.clone()}
	}
	return out
}

const quarterTurn = math.Pi / 2

// ModesV1 returns the mode table of the original SPARC, where selectors
// are rotated by 90° to switch the light path.
func ModesV1() Table {
	return Table{
		{ModeAR, "ccd", Targets{
			"lens-switch":      {"rx": quarterTurn},
			"ar-spec-selector": {"rx": 0.0},
			"ar-det-selector":  {"rx": 0.0},
		}},
		{ModeCLI, "cl-detector", Targets{
			"lens-switch":      {"rx": quarterTurn},
			"ar-spec-selector": {"rx": 0.0},
			"ar-det-selector":  {"rx": quarterTurn},
		}},
		{ModeSpectral, "spectrometer", Targets{
			"lens-switch":       {"rx": quarterTurn},
			"ar-spec-selector":  {"rx": quarterTurn},
			"spec-det-selector": {"rx": 0.0},
		}},
		{ModeMonochromator, "monochromator", Targets{
			"lens-switch":       {"rx": quarterTurn},
			"ar-spec-selector":  {"rx": quarterTurn},
			"spec-det-selector": {"rx": quarterTurn},
		}},
		{ModeMirrorAlign, "ccd", Targets{
			"lens-switch":      {"rx": 0.0},
			"filter":           {"band": "pass-through"},
			"ar-spec-selector": {"rx": 0.0},
			"ar-det-selector":  {"rx": 0.0},
		}},
		{ModeChamberView, "ccd", Targets{
			"lens-switch":      {"rx": quarterTurn},
			"filter":           {"band": "pass-through"},
			"ar-spec-selector": {"rx": 0.0},
			"ar-det-selector":  {"rx": 0.0},
		}},
		{ModeFiberAlign, "spectrometer", Targets{
			"lens-switch":       {"rx": quarterTurn},
			"filter":            {"band": "pass-through"},
			"ar-spec-selector":  {"rx": quarterTurn},
			"spec-det-selector": {"rx": 0.0},
			"spectrograph":      {"slit-in": 500e-6},
		}},
	}
}

// ModesV2 returns the mode table of the SPARC2, whose switches are
// linear stages with "on"/"off" positions and whose spectrograph can
// park the grating on the mirror.
func ModesV2() Table {
	return Table{
		{ModeAR, "ccd", Targets{
			"lens-switch":       {"x": "on"},
			"slit-in-big":       {"x": "on"},
			"spectrograph":      {"grating": MirrorLabel},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": 0.0},
		}},
		{ModeSpectralIntegrated, "spectrometer", Targets{
			"lens-switch":       {"x": "off"},
			"slit-in-big":       {"x": "off"},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": 0.0},
			"spectrograph":      {"grating": GratingNotMirror},
		}},
		{ModeSpectralDedicated, "spectrometer", Targets{
			"lens-switch":       {"x": "off"},
			"slit-in-big":       {"x": "off"},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": quarterTurn},
			"spectrograph":      {"grating": GratingNotMirror},
		}},
		{ModeMirrorAlign, "ccd", Targets{
			"lens-switch":       {"x": "off"},
			"slit-in-big":       {"x": "on"},
			"spectrograph":      {"grating": MirrorLabel},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": 0.0},
		}},
		{ModeChamberView, "ccd", Targets{
			"lens-switch":       {"x": "on"},
			"slit-in-big":       {"x": "on"},
			"spectrograph":      {"grating": MirrorLabel},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": 0.0},
		}},
		{ModeSpecFocus, "ccd", Targets{
			"lens-switch":       {"x": "off"},
			"slit-in-big":       {"x": "off"},
			"spectrograph":      {"slit-in": 10e-6, "grating": MirrorLabel},
			"cl-det-selector":   {"x": "off"},
			"spec-det-selector": {"rx": 0.0},
		}},
	}
}

// TableFor returns the built-in table for a microscope role.
func TableFor(microscopeRole string) Table {
	if microscopeRole == RoleSPARC2 {
		return ModesV2()
	}
	return ModesV1()
}
