// Package mqtt provides MQTT client connectivity for the WiZ bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// wizctl serve joins the Gray Logic message bus as a protocol bridge.
// Core sends commands on graylogic/command/wiz/{mac}; the bridge answers on
// the ack, state and health topics.
//
//	Gray Logic Core ↔ MQTT Broker ↔ wizctl serve ↔ UDP ↔ WiZ bulb
//
// # Security Considerations
//
//   - TLS should be enabled for anything beyond a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Will{Topic: topic, Payload: payload})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeCommands("wiz"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
