package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds

	maxQoS        = 2
	willQoS       = 1
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions maps the mqtt config section onto paho options.
//
// Sessions are clean: the broker keeps nothing for wizctl between
// connections and Client replays its own subscriptions. Reconnect delays
// are whole seconds in config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(seconds(cfg.Reconnect.InitialDelay)).
		SetMaxReconnectInterval(seconds(cfg.Reconnect.MaxDelay)).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// brokerURL is tcp://host:port, or ssl://host:port with TLS.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// configureLWT registers will retained at QoS 1, so anyone subscribing to
// the health topic later still sees the bridge went offline.
func configureLWT(opts *pahomqtt.ClientOptions, will Will, clientID string) {
	if will.Topic == "" {
		will = offlineWill(clientID)
	}
	opts.SetBinaryWill(will.Topic, will.Payload, willQoS, true)
}

// offlineWill is the will used when the caller brings none: the WiZ
// bridge's health topic with an offline status.
func offlineWill(clientID string) Will {
	return Will{
		Topic: Topics{}.BridgeHealth(ProtocolWiZ),
		Payload: fmt.Appendf(nil,
			`{"bridge":%q,"status":"offline","reason":"unexpected_disconnect","timestamp":%q}`,
			clientID,
			time.Now().UTC().Format(time.RFC3339),
		),
	}
}
