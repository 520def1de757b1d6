package mirror

import (
	"fmt"
	"log/slog"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rickgao/cem-dashboard/internal/config"
)

// MQTTPublisher publishes to a broker through paho.
type MQTTPublisher struct {
	client pahomqtt.Client
	logger *slog.Logger
}

// Connect dials the broker described by cfg and waits for the first
// connection. Later connection losses are handled by paho's auto-reconnect.
func Connect(cfg config.MirrorConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mirror", "broker", brokerURL(cfg.Broker))

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		logger.Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		logger.Debug("mqtt reconnecting")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &MQTTPublisher{client: client, logger: logger}, nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1 and 2) or the local write (QoS 0).
func (p *MQTTPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently open.
func (p *MQTTPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects, giving in-flight publishes a short quiesce period.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
