package opticalpath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/infrastructure/metrics"
	"github.com/arentkievits/odemis/internal/stream"
)

// recordTimeout bounds persisting and publishing a transition record.
const recordTimeout = 5 * time.Second

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ComponentRegistry looks up microscope components by role.
// It returns an error wrapping hardware.ErrNotFound for unknown roles.
type ComponentRegistry interface {
	GetComponent(role string) (hardware.Component, error)
}

// Microscope describes the instrument the manager drives.
type Microscope interface {
	Presence

	// Role selects the built-in mode table ("sparc", "sparc2").
	Role() string
}

// TransitionStore persists transition records.
type TransitionStore interface {
	CreateTransition(ctx context.Context, t *Transition) error
}

// MQTTClient publishes path state for other processes.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub broadcasts events to WebSocket clients.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Telemetry writes time-series points.
type Telemetry interface {
	WritePathTransition(from, to, status string, duration time.Duration, movesFailed int)
	WriteAxisPosition(role, axis string, value float64)
}

// Options holds the dependencies of a Manager. Microscope and Registry are
// required; everything else is optional.
type Options struct {
	Microscope Microscope
	Registry   ComponentRegistry

	// Table overrides the built-in table chosen from the microscope role.
	Table Table

	// InitialMode is the mode the path is known to be in at start-up
	// (typically the target of the last recorded transition).
	InitialMode string

	Store     TransitionStore
	MQTT      MQTTClient
	Hub       WSHub
	Telemetry Telemetry
	Logger    Logger

	// ModeTopic receives the current mode (retained) after each transition.
	ModeTopic string

	// TransitionTopic receives every transition record.
	TransitionTopic string
}

// pathState is the mutable state of the optical path, owned by SetPath.
type pathState struct {
	lastMode string

	// stored holds axis values saved before an alignment excursion
	// (band, slit-in) and the last grating used before parking on the mirror.
	stored map[string]any
}

// Manager drives the optical path of a microscope into named modes.
//
// Thread Safety: All methods are safe for concurrent use. SetPath calls are
// serialised: a second caller waits until the first one returns.
type Manager struct {
	microscope Microscope
	registry   ComponentRegistry
	modes      *AvailableModes

	store           TransitionStore
	mqtt            MQTTClient
	hub             WSHub
	telemetry       Telemetry
	modeTopic       string
	transitionTopic string
	logger          Logger

	cacheMu sync.Mutex
	cache   map[string]hardware.Component

	pathMu sync.Mutex
	state  pathState

	currentMu sync.RWMutex
	current   string
}

// plannedMove is one MoveAbs call to issue.
type plannedMove struct {
	role     string
	actuator hardware.Actuator
	axes     map[string]any
	restore  bool
}

// pendingMove is an issued move awaiting completion.
type pendingMove struct {
	role     string
	actuator hardware.Actuator
	future   *hardware.Future
}

// NewManager builds the available mode tables for the microscope and
// returns a ready Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Microscope == nil || opts.Registry == nil {
		return nil, errors.New("opticalpath: microscope and registry are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	m := &Manager{
		microscope:      opts.Microscope,
		registry:        opts.Registry,
		store:           opts.Store,
		mqtt:            opts.MQTT,
		hub:             opts.Hub,
		telemetry:       opts.Telemetry,
		modeTopic:       opts.ModeTopic,
		transitionTopic: opts.TransitionTopic,
		logger:          logger,
		cache:           make(map[string]hardware.Component),
		state:           pathState{stored: make(map[string]any)},
	}

	table := opts.Table
	if table == nil {
		table = TableFor(opts.Microscope.Role())
	}

	present := PresenceFunc(func(role string) bool {
		if role == RoleDedicatedSpectralCCD {
			return m.microscope.HasComponent(role)
		}
		_, err := m.resolve(role)
		return err == nil
	})
	modes, err := BuildAvailableModes(table, present)
	if err != nil {
		return nil, err
	}
	m.modes = modes

	for _, mode := range table {
		if _, ok := modes.Lookup(mode.Name); !ok {
			logger.Debug("removing mode not supported by this microscope",
				"mode", mode.Name, "detector", mode.Detector)
		}
	}

	if opts.InitialMode != "" {
		if _, ok := modes.Lookup(opts.InitialMode); ok {
			m.state.lastMode = opts.InitialMode
			m.setCurrent(opts.InitialMode)
		}
	}

	logger.Info("optical path manager ready",
		"microscope", opts.Microscope.Role(),
		"modes", modes.Modes().Names(),
		"guessable", modes.Guessable().Names(),
	)
	return m, nil
}

// Modes returns the modes that can be set on this microscope.
func (m *Manager) Modes() Table {
	return m.modes.Modes()
}

// GuessableModes returns the modes GuessMode can return.
func (m *Manager) GuessableModes() Table {
	return m.modes.Guessable()
}

// IsGuessable reports whether GuessMode may return the named mode.
func (m *Manager) IsGuessable(name string) bool {
	return m.modes.IsGuessable(name)
}

// CurrentMode returns the last mode set, or "" if none was set yet.
func (m *Manager) CurrentMode() string {
	m.currentMu.RLock()
	defer m.currentMu.RUnlock()
	return m.current
}

// MicroscopeRole returns the role of the driven microscope.
func (m *Manager) MicroscopeRole() string {
	return m.microscope.Role()
}

// SetPath moves every component referenced by the mode to the mode's
// configuration and waits for all moves to finish.
//
// Returns:
//   - *Transition: the record of the moves, including failures
//   - error: nil on success (even if some moves failed), or:
//   - ErrInvalidMode if the mode is not available on this microscope
//   - ErrNoNonMirrorGrating if a grating is required but none exists
//
// Missing components and axes are skipped. Failed moves are logged and
// reported through Transition.Err. If ctx is done before all moves finish,
// SetPath stops waiting and the transition is marked abandoned; the moves
// themselves are not cancelled.
func (m *Manager) SetPath(ctx context.Context, name string) (*Transition, error) {
	m.pathMu.Lock()
	defer m.pathMu.Unlock()

	mode, ok := m.modes.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}

	started := time.Now().UTC()
	prev := m.state.lastMode
	stored := maps.Clone(m.state.stored)

	plan, err := m.planMoves(mode, IsAlignMode(prev), stored)
	if err != nil {
		return nil, err
	}

	tr := &Transition{
		ID:          GenerateID(),
		FromMode:    prev,
		ToMode:      name,
		TriggeredAt: started,
	}

	if IsAlignMode(prev) && !IsAlignMode(name) {
		restore, axes := m.planRestore(stored)
		plan = append(plan, restore...)
		tr.Restored = axes
	}

	pending := m.issue(ctx, plan, tr)

	m.state.lastMode = name
	m.state.stored = stored
	m.setCurrent(name)

	m.await(ctx, pending, tr)
	m.record(ctx, tr, pending)
	return tr, nil
}

// planMoves resolves the targets of mode into one move per actuator.
// Snapshots for later restoration are written to stored.
func (m *Manager) planMoves(mode Mode, inAlign bool, stored map[string]any) ([]plannedMove, error) {
	var plan []plannedMove

	for _, role := range slices.Sorted(maps.Keys(mode.Targets)) {
		comp, err := m.resolve(role)
		if err != nil {
			m.logger.Debug("component not found, skipping it", "role", role, "mode", mode.Name)
			metrics.PathComponentsMissing.WithLabelValues(role).Inc()
			continue
		}
		act, ok := comp.(hardware.Actuator)
		if !ok {
			m.logger.Warn("component cannot move, skipping it", "role", role, "mode", mode.Name)
			continue
		}

		targets := mode.Targets[role]
		axes := make(map[string]any, len(targets))
		for _, axis := range slices.Sorted(maps.Keys(targets)) {
			if !act.HasAxis(axis) {
				m.logger.Debug("not moving axis as it is not present", "role", role, "axis", axis)
				continue
			}
			moveAxis, value, ok, err := m.resolveTarget(act, axis, targets[axis], inAlign, stored)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", role, axis, err)
			}
			if ok {
				axes[moveAxis] = value
			}
		}

		if len(axes) > 0 {
			plan = append(plan, plannedMove{role: role, actuator: act, axes: axes})
		}
	}
	return plan, nil
}

// resolveTarget converts a mode target into the axis and value to send to
// the actuator. ok is false when the axis must not be moved.
func (m *Manager) resolveTarget(act hardware.Actuator, axis string, target any, inAlign bool, stored map[string]any) (string, any, bool, error) {
	desc, _ := act.Axis(axis)

	switch axis {
	case axisBand:
		key, found := desc.Choices.KeyFor(target)
		if !found {
			m.logger.Debug("choice not present on axis", "role", act.Role(), "axis", axis, "target", target)
			return "", nil, false, nil
		}
		if !inAlign {
			snapshot(act, axisBand, stored)
		}
		return axis, key, true, nil

	case axisGrating:
		return m.resolveGrating(act, desc, target, stored)

	case axisSlitIn:
		if !inAlign {
			snapshot(act, axisSlitIn, stored)
		}
		return axis, target, true, nil
	}

	if desc.IsDiscrete() {
		if key, found := desc.Choices.KeyFor(target); found {
			return axis, key, true, nil
		}
	}
	return axis, target, true, nil
}

// resolveGrating handles the grating axis: the mirror, a named grating or
// GratingNotMirror.
func (m *Manager) resolveGrating(act hardware.Actuator, desc hardware.Axis, target any, stored map[string]any) (string, any, bool, error) {
	if key, found := desc.Choices.KeyFor(target); found {
		current, known := act.Position()[axisGrating]
		if label, ok := desc.Choices.ValueOf(current); known && ok && !hardware.Equal(label, MirrorLabel) {
			stored[axisGrating] = current
		}
		return axisGrating, key, true, nil
	}

	if label, isString := target.(string); isString && label == MirrorLabel {
		// No mirror position: zero order of the current grating acts as one.
		if !act.HasAxis(axisWavelength) {
			m.logger.Warn("no mirror grating nor wavelength axis, not moving grating", "role", act.Role())
			return "", nil, false, nil
		}
		return axisWavelength, 0.0, true, nil
	}

	if prev, ok := stored[axisGrating]; ok {
		return axisGrating, prev, true, nil
	}
	key, err := FindNonMirror(desc.Choices)
	if err != nil {
		return "", nil, false, err
	}
	return axisGrating, key, true, nil
}

// planRestore returns the moves bringing back the band and slit-in values
// saved before the alignment excursion, and clears them from stored.
func (m *Manager) planRestore(stored map[string]any) ([]plannedMove, []string) {
	restorable := []struct{ axis, role string }{
		{axisBand, roleFilter},
		{axisSlitIn, roleSpectrograph},
	}

	var (
		plan []plannedMove
		axes []string
	)
	for _, r := range restorable {
		value, ok := stored[r.axis]
		if !ok {
			continue
		}
		delete(stored, r.axis)

		comp, err := m.resolve(r.role)
		if err != nil {
			m.logger.Warn("cannot restore axis, component not available", "role", r.role, "axis", r.axis)
			continue
		}
		act, ok := comp.(hardware.Actuator)
		if !ok || !act.HasAxis(r.axis) {
			m.logger.Warn("cannot restore axis, not present", "role", r.role, "axis", r.axis)
			continue
		}
		plan = append(plan, plannedMove{
			role:     r.role,
			actuator: act,
			axes:     map[string]any{r.axis: value},
			restore:  true,
		})
		axes = append(axes, r.axis)
	}
	return plan, axes
}

// issue starts every planned move without waiting between them.
func (m *Manager) issue(ctx context.Context, plan []plannedMove, tr *Transition) []pendingMove {
	// Moves outlive the caller's context: once started they always complete.
	moveCtx := context.WithoutCancel(ctx)

	pending := make([]pendingMove, 0, len(plan))
	for _, p := range plan {
		m.logger.Debug("moving actuator", "role", p.role, "axes", p.axes, "restore", p.restore)
		tr.Moves = append(tr.Moves, MoveRecord{Role: p.role, Axes: p.axes, Restore: p.restore})
		pending = append(pending, pendingMove{
			role:     p.role,
			actuator: p.actuator,
			future:   p.actuator.MoveAbs(moveCtx, p.axes),
		})
	}
	return pending
}

// await waits for every move in issue order and fills in the outcome.
func (m *Manager) await(ctx context.Context, pending []pendingMove, tr *Transition) {
	var errs error
	abandoned := false

	for _, p := range pending {
		err := p.future.Wait(ctx)
		if err == nil {
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.role, err))

		// The move is still running; only the wait was cut short.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			abandoned = true
			m.logger.Info("stopped waiting for actuator move", "role", p.role, "error", err)
			metrics.PathMovesAbandoned.WithLabelValues(p.role).Inc()
			tr.Failures = append(tr.Failures, MoveFailure{Role: p.role, ErrorMsg: err.Error(), Abandoned: true})
			continue
		}
		m.logger.Warn("actuator move failed", "role", p.role, "error", err)
		metrics.PathMoveFailures.WithLabelValues(p.role).Inc()
		tr.Failures = append(tr.Failures, MoveFailure{Role: p.role, ErrorMsg: err.Error()})
		tr.MovesFailed++
	}

	tr.CompletedAt = time.Now().UTC()
	tr.DurationMS = tr.CompletedAt.Sub(tr.TriggeredAt).Milliseconds()
	tr.err = errs

	switch {
	case abandoned:
		tr.Status = StatusAbandoned
	case tr.MovesFailed > 0:
		tr.Status = StatusPartial
	default:
		tr.Status = StatusCompleted
	}
}

// record persists and announces a finished transition. Failures here are
// logged only: the optical path is already in place.
func (m *Manager) record(ctx context.Context, tr *Transition, pending []pendingMove) {
	duration := tr.CompletedAt.Sub(tr.TriggeredAt)
	metrics.PathTransitions.WithLabelValues(tr.ToMode, string(tr.Status)).Inc()
	metrics.PathTransitionDuration.WithLabelValues(tr.ToMode).Observe(duration.Seconds())

	m.logger.Info("optical path set",
		"transition_id", tr.ID,
		"from", tr.FromMode,
		"to", tr.ToMode,
		"status", tr.Status,
		"moves", tr.MovesTotal(),
		"failed", tr.MovesFailed,
		"restored", tr.Restored,
		"duration_ms", tr.DurationMS,
	)

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if m.store != nil {
		if err := m.store.CreateTransition(recCtx, tr); err != nil {
			m.logger.Error("failed to record transition", "transition_id", tr.ID, "error", err)
		}
	}

	m.publish(tr)

	if m.hub != nil {
		m.hub.Broadcast("path.changed", map[string]any{
			"transition_id": tr.ID,
			"from_mode":     tr.FromMode,
			"mode":          tr.ToMode,
			"status":        string(tr.Status),
			"moves_failed":  tr.MovesFailed,
			"duration_ms":   tr.DurationMS,
		})
	}

	if m.telemetry != nil {
		m.telemetry.WritePathTransition(tr.FromMode, tr.ToMode, string(tr.Status), duration, tr.MovesFailed)
		for _, p := range pending {
			for axis, value := range p.actuator.Position() {
				if f, ok := hardware.AsFloat(value); ok {
					m.telemetry.WriteAxisPosition(p.role, axis, f)
				}
			}
		}
	}
}

// publish sends the current mode (retained) and the transition record.
func (m *Manager) publish(tr *Transition) {
	if m.mqtt == nil {
		return
	}

	if m.modeTopic != "" {
		payload, err := json.Marshal(map[string]any{
			"mode":      tr.ToMode,
			"status":    string(tr.Status),
			"timestamp": tr.CompletedAt,
		})
		if err == nil {
			err = m.mqtt.Publish(m.modeTopic, payload, 1, true)
		}
		if err != nil {
			m.logger.Warn("failed to publish path mode", "topic", m.modeTopic, "error", err)
		}
	}

	if m.transitionTopic != "" {
		payload, err := json.Marshal(tr)
		if err == nil {
			err = m.mqtt.Publish(m.transitionTopic, payload, 1, false)
		}
		if err != nil {
			m.logger.Warn("failed to publish transition", "topic", m.transitionTopic, "error", err)
		}
	}
}

// GuessMode infers the mode matching the detector of s.
//
// For a composite stream the sub-streams are tried in order and the first
// one whose detector feeds a guessable mode wins. Alignment modes are never
// returned.
//
// Returns ErrNotAStream if s has no detector information, and
// ErrNoModeInferred if no guessable mode uses its detector(s).
func (m *Manager) GuessMode(s stream.Stream) (string, error) {
	name, err := m.guess(s)
	label := name
	if err != nil {
		label = "none"
	}
	metrics.ModeGuesses.WithLabelValues(label).Inc()
	return name, err
}

func (m *Manager) guess(s stream.Stream) (string, error) {
	switch v := s.(type) {
	case nil:
		return "", ErrNotAStream
	case stream.Composite:
		for _, sub := range v.Streams() {
			single, ok := sub.(stream.SingleDetector)
			if !ok {
				continue
			}
			if name, found := m.modes.guessFor(stream.DetectorRole(single)); found {
				return name, nil
			}
		}
		return "", fmt.Errorf("%w: stream %q", ErrNoModeInferred, v.Name())
	case stream.SingleDetector:
		role := stream.DetectorRole(v)
		if role == "" {
			return "", fmt.Errorf("%w: stream %q has no detector", ErrNotAStream, v.Name())
		}
		if name, found := m.modes.guessFor(role); found {
			return name, nil
		}
		return "", fmt.Errorf("%w: detector %q", ErrNoModeInferred, role)
	default:
		return "", fmt.Errorf("%w: %T", ErrNotAStream, s)
	}
}

// resolve returns the component with the given role, caching the result
// for the lifetime of the manager.
func (m *Manager) resolve(role string) (hardware.Component, error) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if c, ok := m.cache[role]; ok {
		return c, nil
	}
	c, err := m.registry.GetComponent(role)
	if err != nil {
		return nil, err
	}
	m.cache[role] = c
	return c, nil
}

func (m *Manager) setCurrent(name string) {
	m.currentMu.Lock()
	defer m.currentMu.Unlock()

	if m.current != "" {
		metrics.CurrentModeInfo.WithLabelValues(m.current).Set(0)
	}
	m.current = name
	metrics.CurrentModeInfo.WithLabelValues(name).Set(1)
}

// snapshot saves the current value of axis into stored, if known.
func snapshot(act hardware.Actuator, axis string, stored map[string]any) {
	if v, ok := act.Position()[axis]; ok {
		stored[axis] = v
	}
}

// FindNonMirror returns the first grating key, in key order, whose value
// is not the mirror.
func FindNonMirror(choices hardware.Choices) (any, error) {
	for _, ch := range choices.Sorted() {
		if !hardware.Equal(ch.Value, MirrorLabel) {
			return ch.Key, nil
		}
	}
	return nil, ErrNoNonMirrorGrating
}
