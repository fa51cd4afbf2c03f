package opticalpath

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// gratingNotMirrorToken is how GratingNotMirror is written in a table file.
const gratingNotMirrorToken = "GRATING_NOT_MIRROR"

// tableFile is the YAML layout of a custom mode table:
//
//	modes:
//	  - name: ar
//	    detector: ccd
//	    targets:
//	      lens-switch: {x: "on"}
//	      spectrograph: {grating: mirror}
//	  - name: spectral
//	    detector: spectrometer
//	    targets:
//	      spectrograph: {grating: GRATING_NOT_MIRROR}
type tableFile struct {
	Modes []struct {
		Name     string                    `yaml:"name"`
		Detector string                    `yaml:"detector"`
		Targets  map[string]map[string]any `yaml:"targets"`
	} `yaml:"modes"`
}

// LoadTable reads a mode table from a YAML file. It is used on instruments
// whose layout matches neither built-in table.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("reading mode table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML mode table.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if len(f.Modes) == 0 {
		return nil, fmt.Errorf("%w: no modes defined", ErrInvalidTable)
	}

	table := make(Table, 0, len(f.Modes))
	for i, m := range f.Modes {
		if m.Name == "" || m.Detector == "" {
			return nil, fmt.Errorf("%w: mode %d needs a name and a detector", ErrInvalidTable, i)
		}
		targets := make(Targets, len(m.Targets))
		for role, axes := range m.Targets {
			resolved := make(map[string]any, len(axes))
			for axis, target := range axes {
				if s, ok := target.(string); ok && s == gratingNotMirrorToken {
					target = GratingNotMirror
				}
				resolved[axis] = target
			}
			targets[role] = resolved
		}
		table = append(table, Mode{Name: m.Name, Detector: m.Detector, Targets: targets})
	}

	if err := validateTable(table); err != nil {
		return nil, err
	}
	return table, nil
}

// validateTable rejects tables that declare a mode name twice.
func validateTable(t Table) error {
	seen := make(map[string]struct{}, len(t))
	for _, m := range t {
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateMode, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
