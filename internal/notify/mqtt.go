// Package notify bridges the internal event bus onto MQTT so external
// automations (dashboards, phone notifications, home automation) can
// react to task and disc events without polling the HTTP API.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

// Config holds the broker connection settings.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// statePublishInterval is how often the snapshot summary is pushed to
// the broker between events.
const statePublishInterval = 30 * time.Second

// Notifier forwards bus events to MQTT and periodically publishes a
// small state summary. It reconnects automatically; publishes while
// disconnected are dropped by autopaho's queue semantics, which is
// fine for advisory notifications.
type Notifier struct {
	cfg    Config
	store  *state.Store
	bus    *events.Bus
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
	done   chan struct{}
}

// New creates a notifier but does not connect. Call [Notifier.Start].
func New(cfg Config, store *state.Store, bus *events.Bus, logger *slog.Logger) *Notifier {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "glowd"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "glowd"
	}
	return &Notifier{cfg: cfg, store: store, bus: bus, logger: logger}
}

// Start sets up the broker connection and launches the forward loop
// in the background, returning once the connection manager exists so
// callers can keep booting while autopaho connects and retries. The
// loop runs until ctx is cancelled; the will message marks the service
// offline if the connection dies without a clean disconnect.
func (n *Notifier) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(n.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := n.topic("availability")

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: n.cfg.Username,
		ConnectPassword: []byte(n.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			n.logger.Info("mqtt connected to broker", "broker", n.cfg.Broker)
			n.publishRetained(ctx, cm, availTopic, []byte("online"))
		},
		OnConnectError: func(err error) {
			n.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: n.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	n.cm = cm
	n.done = make(chan struct{})

	go func() {
		defer close(n.done)

		connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
		defer connCancel()
		if err := cm.AwaitConnection(connCtx); err != nil {
			// autopaho keeps retrying in the background.
			n.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
		}

		n.forwardLoop(ctx)
	}()
	return nil
}

// Stop marks the service offline, disconnects, and waits for the
// forward loop to exit (bounded by ctx).
func (n *Notifier) Stop(ctx context.Context) error {
	if n.cm == nil {
		return nil
	}
	n.publishRetained(ctx, n.cm, n.topic("availability"), []byte("offline"))
	err := n.cm.Disconnect(ctx)
	select {
	case <-n.done:
	case <-ctx.Done():
	}
	return err
}

func (n *Notifier) topic(suffix string) string {
	return n.cfg.TopicPrefix + "/" + suffix
}

// forwardLoop fans bus events out to MQTT and publishes the state
// summary on a timer.
func (n *Notifier) forwardLoop(ctx context.Context) {
	sub := n.bus.Subscribe(64)
	defer n.bus.Unsubscribe(sub)

	ticker := time.NewTicker(statePublishInterval)
	defer ticker.Stop()

	n.publishSummary(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			n.publishEvent(ctx, e)
		case <-ticker.C:
			n.publishSummary(ctx)
		}
	}
}

// publishEvent forwards one bus event as JSON on events/<kind>.
func (n *Notifier) publishEvent(ctx context.Context, e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		n.logger.Error("mqtt marshal event", "kind", e.Kind, "error", err)
		return
	}
	if _, err := n.cm.Publish(ctx, &paho.Publish{
		Topic:   n.topic("events/" + e.Kind),
		Payload: payload,
		QoS:     0,
	}); err != nil {
		n.logger.Debug("mqtt event publish failed", "kind", e.Kind, "error", err)
	}
}

// publishSummary pushes a few retained scalar topics from the current
// snapshot: cheap for dashboards to subscribe to individually.
func (n *Notifier) publishSummary(ctx context.Context) {
	if n.cm == nil {
		return
	}
	snap := n.store.Get()

	topics := map[string]string{
		"state/cpu_usage":    strconv.FormatFloat(snap.System.CPUUsage, 'f', 3, 64),
		"state/ram_usage":    strconv.FormatFloat(snap.System.RAMUsage, 'f', 3, 64),
		"state/disc_mounted": strconv.FormatBool(snap.Device.DiscMounted),
		"state/active_tasks": strconv.Itoa(len(snap.Tasks.Active)),
	}
	for suffix, value := range topics {
		n.publishRetained(ctx, n.cm, n.topic(suffix), []byte(value))
	}
}

func (n *Notifier) publishRetained(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		n.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}
