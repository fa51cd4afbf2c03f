package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/infrastructure/metrics"
	"github.com/arentkievits/odemis/internal/infrastructure/mqtt"
)

const (
	defaultCommandTimeout  = 30 * time.Second
	defaultRetryMaxElapsed = 10 * time.Second
	retryInitialInterval   = 50 * time.Millisecond
	retryMaxInterval       = 2 * time.Second

	commandQoS byte = 1
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	// MQTT is the broker connection. Required.
	MQTT MQTTClient

	// CommandTimeout bounds the wait for a "completed" or "failed" ack.
	CommandTimeout time.Duration

	// RetryMaxElapsed bounds how long a command publish is retried.
	RetryMaxElapsed time.Duration

	Logger Logger
}

// pendingCommand is a published command awaiting its final ack.
type pendingCommand struct {
	role   string
	moves  map[string]any
	future *hardware.Future
	timer  *time.Timer
}

// Bridge correlates commands and acks for all remote actuators.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt            MQTTClient
	topics          mqtt.Topics
	timeout         time.Duration
	retryMaxElapsed time.Duration
	logger          Logger

	mu        sync.Mutex
	actuators map[string]*RemoteActuator
	pending   map[string]*pendingCommand
	stopped   bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBridge creates a bridge. Call Start once the actuators are created.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	b := &Bridge{
		mqtt:            opts.MQTT,
		timeout:         opts.CommandTimeout,
		retryMaxElapsed: opts.RetryMaxElapsed,
		logger:          opts.Logger,
		actuators:       make(map[string]*RemoteActuator),
		pending:         make(map[string]*pendingCommand),
	}
	if b.timeout <= 0 {
		b.timeout = defaultCommandTimeout
	}
	if b.retryMaxElapsed <= 0 {
		b.retryMaxElapsed = defaultRetryMaxElapsed
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// NewActuator creates the remote actuator for role. Its signature matches
// hardware.RemoteFactory.
func (b *Bridge) NewActuator(role string, kind hardware.Kind, axes []hardware.Axis) (hardware.Actuator, error) {
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", hardware.ErrInvalidInventory)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.actuators[role]; exists {
		return nil, fmt.Errorf("%w: %s", hardware.ErrDuplicateRole, role)
	}
	a := newRemoteActuator(b, role, kind, axes)
	b.actuators[role] = a
	return a, nil
}

// Start subscribes to the ack and state topics of every actuator. Retained
// state messages arrive right after subscribing.
func (b *Bridge) Start() error {
	if err := b.mqtt.Subscribe(b.topics.AllActuatorAcks(), commandQoS, b.handleAck); err != nil {
		return fmt.Errorf("subscribe to acks: %w", err)
	}
	if err := b.mqtt.Subscribe(b.topics.AllActuatorStates(), commandQoS, b.handleState); err != nil {
		return fmt.Errorf("subscribe to states: %w", err)
	}

	b.mu.Lock()
	count := len(b.actuators)
	b.mu.Unlock()
	b.logger.Info("actuator bridge started", "actuators", count)
	return nil
}

// Stop fails every pending move with ErrBridgeStopped and waits for
// in-flight publishes to return.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()

		b.mu.Lock()
		b.stopped = true
		ids := make([]string, 0, len(b.pending))
		for id := range b.pending {
			ids = append(ids, id)
		}
		b.mu.Unlock()

		for _, id := range ids {
			if p, ok := b.take(id); ok {
				b.finish(p, "stopped", ErrBridgeStopped)
			}
		}
		b.wg.Wait()
		b.logger.Info("actuator bridge stopped")
	})
}

// Pending returns the number of commands awaiting their final ack.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// send publishes a move command and returns its future. Publishing runs in
// the background; ctx only bounds the publish retries.
func (b *Bridge) send(ctx context.Context, role string, moves map[string]any) *hardware.Future {
	cmd := NewCommandMessage(role, moves)
	payload, err := json.Marshal(cmd)
	if err != nil {
		return hardware.CompletedFuture(fmt.Errorf("%s: %w: %w", role, hardware.ErrMoveFailed, err))
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return hardware.CompletedFuture(fmt.Errorf("%s: %w: %w", role, hardware.ErrMoveFailed, ErrBridgeStopped))
	}
	p := &pendingCommand{role: role, moves: cmd.Moves, future: hardware.NewFuture()}
	p.timer = time.AfterFunc(b.timeout, func() {
		if p, ok := b.take(cmd.ID); ok {
			b.finish(p, "timeout", fmt.Errorf("%w after %v", ErrCommandTimeout, b.timeout))
		}
	})
	b.pending[cmd.ID] = p
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Debug("sending actuator command", "role", role, "command_id", cmd.ID)

	go func() {
		defer b.wg.Done()
		if err := b.publish(ctx, b.topics.ActuatorCommand(role), payload); err != nil {
			if p, ok := b.take(cmd.ID); ok {
				b.finish(p, "publish_failed", fmt.Errorf("%w: %w", ErrPublishFailed, err))
			}
		}
	}()
	return p.future
}

// publish retries with exponential backoff until the broker accepts the
// message, ctx is done, the bridge stops or RetryMaxElapsed passes.
func (b *Bridge) publish(ctx context.Context, topic string, payload []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval
	policy.MaxElapsedTime = b.retryMaxElapsed

	op := func() error {
		return b.mqtt.Publish(topic, payload, commandQoS, false)
	}
	notify := func(err error, wait time.Duration) {
		metrics.BridgePublishRetries.Inc()
		b.logger.Warn("command publish failed, retrying", "topic", topic, "error", err, "retry_in", wait)
	}
	return backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify)
}

// take removes a pending command.
func (b *Bridge) take(id string) (*pendingCommand, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	return p, ok
}

// finish resolves a command taken from the pending set.
func (b *Bridge) finish(p *pendingCommand, status string, err error) {
	p.timer.Stop()
	metrics.BridgeCommands.WithLabelValues(p.role, status).Inc()
	if err != nil {
		b.logger.Warn("actuator command failed", "role", p.role, "status", status, "error", err)
		err = fmt.Errorf("%s: %w: %w", p.role, hardware.ErrMoveFailed, err)
	}
	p.future.Complete(err)
}

func (b *Bridge) actuator(role string) *RemoteActuator {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actuators[role]
}

func (b *Bridge) handleAck(_ string, payload []byte) error {
	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack: %w", err)
	}

	switch ack.Status {
	case AckAccepted:
		b.logger.Debug("actuator command accepted", "command_id", ack.CommandID)
		return nil
	case AckCompleted, AckFailed:
	default:
		return fmt.Errorf("ack %s: unknown status %q", ack.CommandID, ack.Status)
	}

	p, ok := b.take(ack.CommandID)
	if !ok {
		// Late ack for a command that already timed out.
		b.logger.Debug("ack for unknown command", "command_id", ack.CommandID, "status", ack.Status)
		return nil
	}

	if ack.Status == AckFailed {
		b.finish(p, string(AckFailed), fmt.Errorf("%w: %s", ErrCommandRejected, ack.Error))
		return nil
	}
	if a := b.actuator(p.role); a != nil {
		a.apply(p.moves)
	}
	b.finish(p, string(AckCompleted), nil)
	return nil
}

func (b *Bridge) handleState(topic string, payload []byte) error {
	role, ok := b.topics.ActuatorRole(topic)
	if !ok {
		return fmt.Errorf("state on unexpected topic %s", topic)
	}

	var state StateMessage
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("decoding state of %s: %w", role, err)
	}

	a := b.actuator(role)
	if a == nil {
		return nil
	}
	a.apply(state.Position)
	return nil
}
