package opticalpath

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/arentkievits/odemis/internal/hardware"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// countingRegistry wraps an inventory and counts lookups per role.
type countingRegistry struct {
	inv   *hardware.Inventory
	mu    sync.Mutex
	calls map[string]int
}

func newCountingRegistry(inv *hardware.Inventory) *countingRegistry {
	return &countingRegistry{inv: inv, calls: make(map[string]int)}
}

func (r *countingRegistry) GetComponent(role string) (hardware.Component, error) {
	r.mu.Lock()
	r.calls[role]++
	r.mu.Unlock()
	return r.inv.GetComponent(role)
}

func (r *countingRegistry) count(role string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[role]
}

// mockStore captures recorded transitions.
type mockStore struct {
	mu          sync.Mutex
	transitions []*Transition
}

func (s *mockStore) CreateTransition(_ context.Context, t *Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t)
	return nil
}

// mockMQTT captures published messages.
type mockMQTT struct {
	mu       sync.Mutex
	messages []mqttMessage
}

type mqttMessage struct {
	Topic    string
	Payload  map[string]any
	Retained bool
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var parsed map[string]any
	_ = json.Unmarshal(payload, &parsed)
	m.messages = append(m.messages, mqttMessage{Topic: topic, Payload: parsed, Retained: retained})
	return nil
}

// mockHub captures broadcasts.
type mockHub struct {
	mu         sync.Mutex
	broadcasts []string
}

func (h *mockHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, channel)
}

// mockTelemetry captures written points.
type mockTelemetry struct {
	mu          sync.Mutex
	transitions []string
	positions   map[string]float64
}

func (m *mockTelemetry) WritePathTransition(_, to, status string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, to+":"+status)
}

func (m *mockTelemetry) WriteAxisPosition(role, axis string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positions == nil {
		m.positions = make(map[string]float64)
	}
	m.positions[role+"."+axis] = value
}

// ─── Hardware Fixtures ──────────────────────────────────────────────────────

var onOff = hardware.Choices{{Key: 0.0, Value: "off"}, {Key: 0.001, Value: "on"}}

// sparcHardware is a legacy SPARC with a CCD and a spectrometer but no
// CL detector nor monochromator.
type sparcHardware struct {
	inv          *hardware.Inventory
	filter       *hardware.Simulated
	spectrograph *hardware.Simulated
	lensSwitch   *hardware.Simulated
}

func newSPARC(t *testing.T) *sparcHardware {
	t.Helper()

	rx := func(role string) *hardware.Simulated {
		return hardware.NewSelector(role, hardware.Axis{
			Name:    "rx",
			Choices: hardware.Choices{{Key: 0.0, Value: "0°"}, {Key: quarterTurn, Value: "90°"}},
		}, 0.0)
	}

	bands := hardware.Choices{
		{Key: 0, Value: "pass-through"},
		{Key: 1, Value: "500nm"},
		{Key: 2, Value: "600nm"},
	}
	gratings := hardware.Choices{
		{Key: 1, Value: "600gmm"},
		{Key: 2, Value: "mirror"},
	}

	h := &sparcHardware{
		inv:          hardware.NewInventory("sparc"),
		filter:       hardware.NewFilterWheel("filter", bands, 1),
		spectrograph: hardware.NewSpectrograph("spectrograph", gratings, 1),
		lensSwitch:   rx("lens-switch"),
	}

	for _, c := range []hardware.Component{
		hardware.NewDetector("ccd"),
		hardware.NewDetector("spectrometer"),
		h.filter,
		h.spectrograph,
		h.lensSwitch,
		rx("ar-spec-selector"),
		rx("ar-det-selector"),
		rx("spec-det-selector"),
	} {
		if err := h.inv.Add(c); err != nil {
			t.Fatalf("adding %s: %v", c.Role(), err)
		}
	}
	return h
}

// sparc2Hardware is a SPARC2 with a spectrograph offering two gratings and
// a mirror position.
type sparc2Hardware struct {
	inv          *hardware.Inventory
	spectrograph *hardware.Simulated
	lensSwitch   *hardware.Simulated
	specDet      *hardware.Simulated
}

type sparc2Option func(*sparc2Config)

type sparc2Config struct {
	gratings    hardware.Choices
	grating     any
	dedicated   bool
	skipRoles   map[string]bool
	lensLatency time.Duration
}

func withGratings(c hardware.Choices, initial any) sparc2Option {
	return func(cfg *sparc2Config) {
		cfg.gratings = c
		cfg.grating = initial
	}
}

func withDedicatedSpectralCCD() sparc2Option {
	return func(cfg *sparc2Config) { cfg.dedicated = true }
}

func without(role string) sparc2Option {
	return func(cfg *sparc2Config) { cfg.skipRoles[role] = true }
}

func withLensLatency(d time.Duration) sparc2Option {
	return func(cfg *sparc2Config) { cfg.lensLatency = d }
}

func newSPARC2(t *testing.T, opts ...sparc2Option) *sparc2Hardware {
	t.Helper()

	cfg := sparc2Config{
		gratings: hardware.Choices{
			{Key: 1, Value: "600gmm"},
			{Key: 2, Value: "1200gmm"},
			{Key: 3, Value: "mirror"},
		},
		grating:   2,
		skipRoles: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	lensSwitch := hardware.NewSelector("lens-switch", hardware.Axis{Name: "x", Choices: onOff}, 0.0,
		hardware.WithLatency(cfg.lensLatency))
	specDet := hardware.NewSelector("spec-det-selector", hardware.Axis{
		Name:    "rx",
		Choices: hardware.Choices{{Key: 0.0, Value: "spectrometer"}, {Key: quarterTurn, Value: "sp-ccd"}},
	}, 0.0)

	h := &sparc2Hardware{
		inv:          hardware.NewInventory(RoleSPARC2),
		spectrograph: hardware.NewSpectrograph("spectrograph", cfg.gratings, cfg.grating),
		lensSwitch:   lensSwitch,
		specDet:      specDet,
	}

	components := []hardware.Component{
		hardware.NewDetector("ccd"),
		hardware.NewDetector("spectrometer"),
		h.spectrograph,
		h.lensSwitch,
		h.specDet,
		hardware.NewSelector("slit-in-big", hardware.Axis{Name: "x", Choices: onOff}, 0.0),
		hardware.NewSelector("cl-det-selector", hardware.Axis{Name: "x", Choices: onOff}, 0.0),
	}
	if cfg.dedicated {
		components = append(components, hardware.NewDetector(RoleDedicatedSpectralCCD))
	}
	for _, c := range components {
		if cfg.skipRoles[c.Role()] {
			continue
		}
		if err := h.inv.Add(c); err != nil {
			t.Fatalf("adding %s: %v", c.Role(), err)
		}
	}
	return h
}

func newTestManager(t *testing.T, inv *hardware.Inventory, opts ...func(*Options)) *Manager {
	t.Helper()

	o := Options{Microscope: inv, Registry: inv}
	for _, fn := range opts {
		fn(&o)
	}
	m, err := NewManager(o)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func mustSetPath(t *testing.T, m *Manager, mode string) *Transition {
	t.Helper()

	tr, err := m.SetPath(context.Background(), mode)
	if err != nil {
		t.Fatalf("SetPath(%q) error = %v", mode, err)
	}
	if tr.Status != StatusCompleted {
		t.Fatalf("SetPath(%q) status = %s (%v), want completed", mode, tr.Status, tr.Err())
	}
	return tr
}

func assertPosition(t *testing.T, act hardware.Actuator, axis string, want any) {
	t.Helper()

	got := act.Position()[axis]
	if !hardware.Equal(got, want) {
		t.Errorf("%s.%s = %v, want %v", act.Role(), axis, got, want)
	}
}
