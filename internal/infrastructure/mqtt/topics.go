package mqtt

import "fmt"

// TopicPrefixBridge is the base for all bridge topics.
// Flat scheme: graylogic/{category}/{protocol}/{address}
const TopicPrefixBridge = "graylogic"

// ProtocolWiZ is the protocol segment used by the WiZ bridge.
const ProtocolWiZ = "wiz"

// Topics provides builders for Gray Logic MQTT bridge topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("wiz", "a8bb50000001")
//	// Returns: "graylogic/state/wiz/a8bb50000001"
type Topics struct{}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: graylogic/state/wiz/a8bb50000001
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/wiz/a8bb50000001
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: graylogic/ack/wiz/a8bb50000001
func (Topics) BridgeAck(protocol, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/wiz
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// BridgeDiscovery returns the topic for device discovery from a bridge.
//
// Example: graylogic/discovery/wiz
func (Topics) BridgeDiscovery(protocol string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefixBridge, protocol)
}

// AllBridgeCommands returns a pattern matching every command to one bridge.
//
// Pattern: graylogic/command/wiz/#
func (Topics) AllBridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefixBridge, protocol)
}

// AllBridgeStates returns a pattern matching all state updates from one bridge.
//
// Pattern: graylogic/state/wiz/+
func (Topics) AllBridgeStates(protocol string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefixBridge, protocol)
}
