// Package mqtt implements the MQTT ingestor: it subscribes to every
// MQTT-backed sensor's route and feeds inbound payloads into the
// sensor registry, using autopaho for connection management and
// reconnects.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/application/sensors"
)

const (
	keepAlive        = uint16(30)
	connectWaitLimit = 30 * time.Second
)

// Ingestor owns the broker connection. On every (re-)connect it
// re-subscribes to every MQTT sensor route present in the registry at
// that moment.
type Ingestor struct {
	registry *sensors.Registry
	cfg      config.MQTTConfig
	log      zerolog.Logger
}

func New(registry *sensors.Registry, cfg config.MQTTConfig, log zerolog.Logger) *Ingestor {
	return &Ingestor{registry: registry, cfg: cfg, log: log}
}

// Run connects and blocks until ctx is cancelled. If there are no MQTT
// sensors configured, it blocks on ctx without dialing anything.
func (ig *Ingestor) Run(ctx context.Context) error {
	topics := ig.routes()
	if len(topics) == 0 {
		<-ctx.Done()
		return nil
	}

	brokerURL, err := url.Parse(fmt.Sprintf("mqtt://%s:%d", ig.cfg.Host, ig.cfg.Port))
	if err != nil {
		return fmt.Errorf("parse broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:       []*url.URL{brokerURL},
		KeepAlive:        keepAlive,
		ConnectUsername:  ig.cfg.Username,
		ConnectPassword:  []byte(ig.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			ig.log.Info().Str("broker", brokerURL.String()).Msg("mqtt connected")
			ig.subscribe(ctx, cm)
		},
		OnConnectError: func(err error) {
			ig.log.Warn().Err(err).Msg("mqtt connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "eplumber",
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	cm.AddOnPublishReceived(ig.onPublishReceived)

	awaitCtx, cancel := context.WithTimeout(ctx, connectWaitLimit)
	defer cancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		ig.log.Warn().Err(err).Msg("mqtt initial connection timed out, retrying in background")
	}

	<-ctx.Done()
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()
	return cm.Disconnect(disconnectCtx)
}

func (ig *Ingestor) routes() []string {
	var topics []string
	for _, s := range ig.registry.MQTTSensors() {
		topics = append(topics, s.Route())
	}
	return topics
}

func (ig *Ingestor) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	topics := ig.routes()
	if len(topics) == 0 {
		return
	}

	opts := make([]paho.SubscribeOptions, 0, len(topics))
	for _, t := range topics {
		opts = append(opts, paho.SubscribeOptions{Topic: t, QoS: 0})
	}

	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := cm.Subscribe(subCtx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		ig.log.Error().Err(err).Strs("topics", topics).Msg("mqtt subscribe failed")
		return
	}
	ig.log.Info().Strs("topics", topics).Msg("mqtt subscribed")
}

// onPublishReceived looks up the sensor by topic, drops silently if
// absent, and otherwise appends, logging codec failures without
// propagating them.
func (ig *Ingestor) onPublishReceived(pr autopaho.PublishReceived) (bool, error) {
	topic := pr.Packet.Topic
	if _, err := ig.registry.Append(topic, pr.Packet.Payload); err != nil {
		var unknown *sensors.UnknownSensor
		if errors.As(err, &unknown) {
			return true, nil
		}
		ig.log.Error().Err(err).Str("topic", topic).Msg("dropping mqtt payload")
	}
	return true, nil
}
