package hardware

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Axis describes one degree of freedom of an actuator.
//
// An axis is discrete when Choices is non-empty: only the choice keys are
// valid positions. Otherwise it is continuous, optionally bounded by Range.
type Axis struct {
	Name    string    `yaml:"name" json:"name"`
	Unit    string    `yaml:"unit,omitempty" json:"unit,omitempty"`
	Choices Choices   `yaml:"choices,omitempty" json:"choices,omitempty"`
	Range   []float64 `yaml:"range,omitempty" json:"range,omitempty"`
}

// IsDiscrete reports whether the axis only accepts its choice keys.
func (a Axis) IsDiscrete() bool {
	return len(a.Choices) > 0
}

// Validate checks that value is an acceptable target for the axis.
func (a Axis) Validate(value any) error {
	if a.IsDiscrete() {
		if !a.Choices.HasKey(value) {
			return fmt.Errorf("%w: %v is not a choice of axis %q", ErrInvalidPosition, value, a.Name)
		}
		return nil
	}

	if len(a.Range) == 2 { //nolint:mnd // [min, max]
		f, ok := AsFloat(value)
		if !ok {
			return fmt.Errorf("%w: axis %q expects a number, got %T", ErrInvalidPosition, a.Name, value)
		}
		if f < a.Range[0] || f > a.Range[1] {
			return fmt.Errorf("%w: %g outside [%g, %g] on axis %q", ErrInvalidPosition, f, a.Range[0], a.Range[1], a.Name)
		}
	}
	return nil
}

// Choice is one entry of a discrete axis: Key is the position sent to the
// hardware, Value is the symbolic label (or physical quantity) it stands for.
type Choice struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// Choices is the choice table of a discrete axis.
//
// Lookups always walk the keys in sorted order (numbers ascending, then
// strings lexically) so results never depend on declaration order.
type Choices []Choice

// Sorted returns a copy of the table ordered by key.
func (c Choices) Sorted() Choices {
	out := slices.Clone(c)
	slices.SortStableFunc(out, func(a, b Choice) int {
		return CompareKeys(a.Key, b.Key)
	})
	return out
}

// KeyFor returns the first key whose value equals value.
func (c Choices) KeyFor(value any) (any, bool) {
	for _, ch := range c.Sorted() {
		if Equal(ch.Value, value) {
			return ch.Key, true
		}
	}
	return nil, false
}

// ValueOf returns the value stored under key.
func (c Choices) ValueOf(key any) (any, bool) {
	for _, ch := range c {
		if Equal(ch.Key, key) {
			return ch.Value, true
		}
	}
	return nil, false
}

// HasKey reports whether key is one of the choices.
func (c Choices) HasKey(key any) bool {
	_, ok := c.ValueOf(key)
	return ok
}

// UnmarshalYAML decodes a YAML mapping {key: value, ...} into a choice table.
func (c *Choices) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: choices must be a mapping (line %d)", ErrInvalidInventory, node.Line)
	}

	out := make(Choices, 0, len(node.Content)/2) //nolint:mnd // key/value pairs
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value any
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("decoding choice key: %w", err)
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("decoding choice value: %w", err)
		}
		out = append(out, Choice{Key: key, Value: value})
	}
	*c = out
	return nil
}

// Equal compares two positions. Numbers compare by value regardless of
// their Go type, so 0 (int from YAML) equals 0.0.
func Equal(a, b any) bool {
	fa, aNum := AsFloat(a)
	fb, bNum := AsFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// CompareKeys orders choice keys: numbers first (ascending), then
// everything else by its string form.
func CompareKeys(a, b any) int {
	fa, aNum := AsFloat(a)
	fb, bNum := AsFloat(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(fa, fb)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// AsFloat converts any Go number to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
