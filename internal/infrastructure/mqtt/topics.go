package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "vdc"

// Topics builds the topic names of the driver bridge.
//
// Drivers report hardware state under {prefix}/driver/{dsuid}/{kind}/{index}
// and receive output values, identify requests, control values and method
// calls under {prefix}/driver/{dsuid}/... The host publishes its events to
// {prefix}/events/{kind}.
//
//	topics := mqtt.Topics{Prefix: "vdc"}
//	topics.DriverOutput(id) // "vdc/driver/<dsuid>/output"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

func (t Topics) driver(id string, parts ...string) string {
	return t.prefix() + "/driver/" + id + "/" + strings.Join(parts, "/")
}

// Input kinds reported by drivers.
const (
	InputChannel = "channel"
	InputSensor  = "sensor"
	InputBinary  = "binary"
	InputButton  = "button"
)

// DriverInput is where a driver reports a value of the given kind.
//
// Example: vdc/driver/<dsuid>/sensor/0
func (t Topics) DriverInput(id, kind, index string) string {
	return t.driver(id, kind, index)
}

// DriverOutput receives the channel values applied to a vdSD.
func (t Topics) DriverOutput(id string) string {
	return t.driver(id, "output")
}

// DriverIdentify receives identify requests.
func (t Topics) DriverIdentify(id string) string {
	return t.driver(id, "identify")
}

// DriverControl receives named control values such as heatingLevel.
func (t Topics) DriverControl(id, name string) string {
	return t.driver(id, "control", name)
}

// DriverMethod receives generic method calls.
func (t Topics) DriverMethod(id, name string) string {
	return t.driver(id, "method", name)
}

// DriverMethodResponse is where a driver answers the method call with the
// given request ID.
func (t Topics) DriverMethodResponse(id, requestID string) string {
	return t.driver(id, "response", requestID)
}

// Event is the topic of a host event of the given kind.
//
// Example: vdc/events/push
func (t Topics) Event(kind string) string {
	return t.prefix() + "/events/" + kind
}

// SystemStatus carries the retained online/offline status and the LWT.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// BridgeHealth carries the periodic retained health report of the driver bridge.
func (t Topics) BridgeHealth() string {
	return t.prefix() + "/system/bridge"
}

// AllDriverInputs matches every input report of every driver.
//
// Pattern: vdc/driver/+/+/+
func (t Topics) AllDriverInputs() string {
	return t.prefix() + "/driver/+/+/+"
}

// AllMethodResponses matches every method response.
//
// Pattern: vdc/driver/+/response/+
func (t Topics) AllMethodResponses() string {
	return t.prefix() + "/driver/+/response/+"
}

// DriverTopic is a parsed driver topic.
type DriverTopic struct {
	DSUID string
	Kind  string // channel, sensor, binary, button, response, ...
	Key   string // input index or request ID
}

// ParseDriverTopic splits {prefix}/driver/{dsuid}/{kind}/{key}.
func (t Topics) ParseDriverTopic(topic string) (DriverTopic, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/driver/")
	if !ok {
		return DriverTopic{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return DriverTopic{}, false
	}
	return DriverTopic{DSUID: parts[0], Kind: parts[1], Key: parts[2]}, true
}

// Match reports whether topic matches the subscription filter, honouring
// the + and # wildcards.
func Match(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		switch {
		case f == "#":
			return true
		case i >= len(ts):
			return false
		case f != "+" && f != ts[i]:
			return false
		}
	}
	return len(fs) == len(ts)
}
