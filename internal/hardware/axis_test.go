package hardware

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "mirror", "mirror", true},
		{"different string", "mirror", "600gmm", false},
		{"int and float", 0, 0.0, true},
		{"uint8 and int", uint8(3), 3, true},
		{"number and string", 1, "1", false},
		{"nil and nil", nil, nil, true},
		{"nil and value", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestChoices_KeyFor_SortedTieBreak(t *testing.T) {
	c := Choices{
		{Key: "g3", Value: "300gmm"},
		{Key: "g2", Value: "mirror"},
		{Key: "g1", Value: "300gmm"},
	}

	key, ok := c.KeyFor("300gmm")
	if !ok {
		t.Fatal("KeyFor() found nothing")
	}
	if key != "g1" {
		t.Errorf("KeyFor() = %v, want g1", key)
	}

	if _, ok := c.KeyFor("1200gmm"); ok {
		t.Error("KeyFor() matched a missing value")
	}
}

func TestChoices_NumericKeysSortBeforeStrings(t *testing.T) {
	c := Choices{
		{Key: "b", Value: "x"},
		{Key: 10, Value: "x"},
		{Key: 2, Value: "x"},
	}

	sorted := c.Sorted()
	want := []any{2, 10, "b"}
	for i, k := range want {
		if !Equal(sorted[i].Key, k) {
			t.Errorf("Sorted()[%d].Key = %v, want %v", i, sorted[i].Key, k)
		}
	}
}

func TestChoices_UnmarshalYAML(t *testing.T) {
	var a Axis
	src := "name: band\nchoices: {0: pass-through, 1: \"500nm\", 2.5: other}\n"
	if err := yaml.Unmarshal([]byte(src), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(a.Choices) != 3 {
		t.Fatalf("len(Choices) = %d, want 3", len(a.Choices))
	}
	key, ok := a.Choices.KeyFor("pass-through")
	if !ok || !Equal(key, 0) {
		t.Errorf("KeyFor(pass-through) = %v, %v, want 0", key, ok)
	}
	if v, _ := a.Choices.ValueOf(2.5); v != "other" {
		t.Errorf("ValueOf(2.5) = %v, want other", v)
	}
}

func TestChoices_UnmarshalYAML_NotMapping(t *testing.T) {
	var a Axis
	err := yaml.Unmarshal([]byte("name: band\nchoices: [a, b]\n"), &a)
	if !errors.Is(err, ErrInvalidInventory) {
		t.Errorf("Unmarshal() error = %v, want ErrInvalidInventory", err)
	}
}

func TestAxis_Validate(t *testing.T) {
	discrete := Axis{Name: "band", Choices: Choices{{Key: 0, Value: "pass-through"}}}
	bounded := Axis{Name: "slit-in", Range: []float64{1e-6, 1e-3}}
	open := Axis{Name: "x"}

	tests := []struct {
		name    string
		axis    Axis
		value   any
		wantErr bool
	}{
		{"valid choice key", discrete, 0, false},
		{"label is not a key", discrete, "pass-through", true},
		{"in range", bounded, 500e-6, false},
		{"below range", bounded, 0.0, true},
		{"not a number", bounded, "wide", true},
		{"continuous unbounded", open, 42.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.axis.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPosition) {
				t.Errorf("Validate() error = %v, want ErrInvalidPosition", err)
			}
		})
	}
}
