package mirror

import (
	"testing"

	"github.com/rickgao/cem-dashboard/internal/config"
)

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MirrorConfig{
		Broker:   config.BrokerConfig{Host: "broker.local", Port: 1883, ClientID: "cem-test"},
		Username: "user",
		Password: "secret",
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "cem-test" {
		t.Errorf("ClientID = %s", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "secret" {
		t.Errorf("credentials = %s/%s", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MirrorConfig{
		Broker: config.BrokerConfig{Host: "broker.local", Port: 8883, ClientID: "cem-test", TLS: true},
	}

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig not set")
	}
	if opts.Username != "" {
		t.Errorf("Username = %s, want empty", opts.Username)
	}
}

func TestPublisherRejectsInvalidInput(t *testing.T) {
	p := &MQTTPublisher{}

	if err := p.Publish("", nil, 0, false); err != ErrInvalidTopic {
		t.Errorf("empty topic err = %v", err)
	}
	if err := p.Publish("a", nil, 3, false); err != ErrInvalidQoS {
		t.Errorf("qos 3 err = %v", err)
	}
}
