package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "home/vdc/"}
	id := "0123456789ABCDEF0123456789ABCDEF00"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DriverInput", topics.DriverInput(id, InputSensor, "2"), "home/vdc/driver/" + id + "/sensor/2"},
		{"DriverOutput", topics.DriverOutput(id), "home/vdc/driver/" + id + "/output"},
		{"DriverIdentify", topics.DriverIdentify(id), "home/vdc/driver/" + id + "/identify"},
		{"DriverControl", topics.DriverControl(id, "heatingLevel"), "home/vdc/driver/" + id + "/control/heatingLevel"},
		{"DriverMethod", topics.DriverMethod(id, "firmwareInfo"), "home/vdc/driver/" + id + "/method/firmwareInfo"},
		{"DriverMethodResponse", topics.DriverMethodResponse(id, "r1"), "home/vdc/driver/" + id + "/response/r1"},
		{"Event", topics.Event("push"), "home/vdc/events/push"},
		{"SystemStatus", topics.SystemStatus(), "home/vdc/system/status"},
		{"BridgeHealth", topics.BridgeHealth(), "home/vdc/system/bridge"},
		{"AllDriverInputs", topics.AllDriverInputs(), "home/vdc/driver/+/+/+"},
		{"AllMethodResponses", topics.AllMethodResponses(), "home/vdc/driver/+/response/+"},
		{"default prefix", Topics{}.Event("value"), "vdc/events/value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDriverTopic(t *testing.T) {
	topics := Topics{Prefix: "vdc"}
	tests := []struct {
		topic  string
		want   DriverTopic
		wantOK bool
	}{
		{"vdc/driver/AB/channel/0", DriverTopic{DSUID: "AB", Kind: "channel", Key: "0"}, true},
		{"vdc/driver/AB/response/req-1", DriverTopic{DSUID: "AB", Kind: "response", Key: "req-1"}, true},
		{"vdc/driver/AB/output", DriverTopic{}, false},
		{"vdc/driver//channel/0", DriverTopic{}, false},
		{"other/driver/AB/channel/0", DriverTopic{}, false},
		{"vdc/driver/AB/channel/0/extra", DriverTopic{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.ParseDriverTopic(tt.topic)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseDriverTopic(%q) = %+v, %v, want %+v, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"vdc/driver/+/+/+", "vdc/driver/AB/sensor/1", true},
		{"vdc/driver/+/+/+", "vdc/driver/AB/output", false},
		{"vdc/driver/+/response/+", "vdc/driver/AB/response/r1", true},
		{"vdc/driver/+/response/+", "vdc/driver/AB/channel/0", false},
		{"vdc/#", "vdc/events/push", true},
		{"vdc/#", "vdc", true},
		{"vdc/events/push", "vdc/events/push", true},
		{"vdc/events/push", "vdc/events/pushx", false},
		{"vdc/events", "vdc/events/push", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.topic, func(t *testing.T) {
			if got := Match(tt.filter, tt.topic); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}
