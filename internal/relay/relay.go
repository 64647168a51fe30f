package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/wallbox-bridge/internal/bridgespec"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client the relay needs from each side.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Journal persists an audit record of each relayed message. Optional.
type Journal interface {
	Record(bridge, direction, topic string, payload []byte, qos byte, retained bool) error
}

// Metrics receives per-message throughput measurements. Optional.
type Metrics interface {
	RecordRelay(bridge, direction, topic string, payloadBytes int)
}

// Stats is a snapshot of relay counters.
type Stats struct {
	// RelayedIn counts messages mirrored remote to local.
	RelayedIn uint64

	// RelayedOut counts messages mirrored local to remote.
	RelayedOut uint64

	// EchoesDropped counts messages recognized as the relay's own
	// publishes and suppressed.
	EchoesDropped uint64

	// PublishErrors counts relays that failed at the publish step.
	PublishErrors uint64

	// OriginMarkers is the current live marker count.
	OriginMarkers int
}

// Options configure a Relay beyond its bridge declaration.
type Options struct {
	// DefaultQoS applies to rules that did not declare their own QoS.
	DefaultQoS byte

	// OriginTTL bounds how long an echo marker stays live. Zero selects
	// the built-in default.
	OriginTTL time.Duration

	// Journal, when non-nil, receives a record per relayed message.
	Journal Journal

	// Metrics, when non-nil, receives throughput measurements.
	Metrics Metrics

	// Logger for relay events. When nil a default logger is used.
	Logger *logging.Logger
}

// Relay mirrors messages for one bridge declaration between the local
// and remote brokers.
//
// Thread Safety: Start and Stop are safe to call from any goroutine;
// message handling runs on the MQTT clients' dispatch goroutines.
type Relay struct {
	bridge *bridgespec.Bridge
	local  Broker
	remote Broker
	opts   Options
	logger *logging.Logger

	origin *originTracker

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	relayedIn     atomic.Uint64
	relayedOut    atomic.Uint64
	echoesDropped atomic.Uint64
	publishErrors atomic.Uint64
}

// New creates a relay for one bridge declaration.
//
// Parameters:
//   - bridge: The parsed connection block this relay serves
//   - local: Client connected to the local broker
//   - remote: Client connected to the bridge's remote broker
//   - opts: Default QoS, optional journal/metrics sinks, logger
//
// Returns:
//   - *Relay: Ready to Start; no subscriptions are made yet
func New(bridge *bridgespec.Bridge, local, remote Broker, opts Options) *Relay {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		bridge: bridge,
		local:  local,
		remote: remote,
		opts:   opts,
		logger: logger.With("bridge", bridge.Name),
		origin: newOriginTracker(opts.OriginTTL),
	}
}

// Start subscribes to every topic rule and begins mirroring.
//
// In-rules subscribe on the remote broker and republish to the local
// broker; out-rules do the reverse. Both sides must already be
// connected. A background goroutine sweeps expired echo markers until
// the context is cancelled or Stop is called.
//
// Parameters:
//   - ctx: Bounds the marker sweeper; cancellation does not unsubscribe
//
// Returns:
//   - error: ErrAlreadyStarted, ErrBrokerUnavailable, or the first
//     subscription failure (prior subscriptions are rolled back)
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	if !r.local.IsConnected() || !r.remote.IsConnected() {
		return ErrBrokerUnavailable
	}

	var subscribed []func() error
	rollback := func() {
		for _, unsub := range subscribed {
			if err := unsub(); err != nil {
				r.logger.Warn("Rollback unsubscribe failed", "error", err)
			}
		}
	}

	for _, rule := range r.bridge.Rules {
		qos := r.resolveQoS(rule)

		var from Broker
		var err error
		switch rule.Direction {
		case bridgespec.In:
			from = r.remote
			err = from.Subscribe(rule.Filter, qos, r.makeHandler(sideRemote, sideLocal, r.local, qos))
		case bridgespec.Out:
			from = r.local
			err = from.Subscribe(rule.Filter, qos, r.makeHandler(sideLocal, sideRemote, r.remote, qos))
		}
		if err != nil {
			rollback()
			return fmt.Errorf("subscribing %q %s: %w", rule.Filter, rule.Direction, err)
		}
		subscribed = append(subscribed, func() error { return from.Unsubscribe(rule.Filter) })

		r.logger.Info("Topic rule active",
			"filter", rule.Filter,
			"direction", rule.Direction.String(),
			"qos", qos)
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.origin.janitor(sweepCtx)

	r.started = true
	r.logger.Info("Relay started", "rules", len(r.bridge.Rules))
	return nil
}

// Stop unsubscribes all topic rules and halts the marker sweeper.
//
// Returns:
//   - error: ErrNotStarted, or the last unsubscribe failure
func (r *Relay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return ErrNotStarted
	}

	var lastErr error
	for _, rule := range r.bridge.Rules {
		var from Broker
		switch rule.Direction {
		case bridgespec.In:
			from = r.remote
		case bridgespec.Out:
			from = r.local
		}
		if !from.IsConnected() {
			continue
		}
		if err := from.Unsubscribe(rule.Filter); err != nil {
			r.logger.Warn("Unsubscribe failed during stop", "filter", rule.Filter, "error", err)
			lastErr = err
		}
	}

	r.cancel()
	r.started = false
	r.logger.Info("Relay stopped")
	return lastErr
}

// Stats returns a snapshot of the relay's counters.
func (r *Relay) Stats() Stats {
	return Stats{
		RelayedIn:     r.relayedIn.Load(),
		RelayedOut:    r.relayedOut.Load(),
		EchoesDropped: r.echoesDropped.Load(),
		PublishErrors: r.publishErrors.Load(),
		OriginMarkers: r.origin.Len(),
	}
}

// Bridge returns the declaration this relay serves.
func (r *Relay) Bridge() *bridgespec.Bridge {
	return r.bridge
}

// resolveQoS applies the bridge-wide default to rules without their own.
func (r *Relay) resolveQoS(rule bridgespec.TopicRule) byte {
	if rule.QoS == bridgespec.QoSUnset {
		return r.opts.DefaultQoS
	}
	return byte(rule.QoS)
}

// makeHandler builds the subscription callback that mirrors messages
// arriving on `from` to the broker on `to`.
func (r *Relay) makeHandler(from, to side, toBroker Broker, qos byte) mqtt.MessageHandler {
	direction := directionName(from)

	return func(topic string, payload []byte, retained bool) error {
		// Our own publish echoed back by the broker we published to.
		if r.origin.Consume(from, topic, payload) {
			r.echoesDropped.Add(1)
			r.logger.Debug("Echo suppressed", "topic", topic, "side", from.String())
			return nil
		}

		// Mark before publishing so the echo cannot outrun the marker.
		r.origin.Mark(to, topic, payload)

		if err := toBroker.Publish(topic, payload, qos, retained); err != nil {
			r.publishErrors.Add(1)
			// The echo will never arrive; the janitor reclaims the marker.
			r.logger.Error("Relay publish failed",
				"topic", topic,
				"direction", direction,
				"error", err)
			return fmt.Errorf("relaying %q %s: %w", topic, direction, err)
		}

		if from == sideRemote {
			r.relayedIn.Add(1)
		} else {
			r.relayedOut.Add(1)
		}

		if r.opts.Journal != nil {
			if err := r.opts.Journal.Record(r.bridge.Name, direction, topic, payload, qos, retained); err != nil {
				r.logger.Warn("Journal write failed", "topic", topic, "error", err)
			}
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordRelay(r.bridge.Name, direction, topic, len(payload))
		}

		r.logger.Debug("Relayed",
			"topic", topic,
			"direction", direction,
			"bytes", len(payload),
			"retained", retained)
		return nil
	}
}

// directionName maps the arrival side to the declaration keyword.
func directionName(from side) string {
	if from == sideRemote {
		return bridgespec.In.String()
	}
	return bridgespec.Out.String()
}
