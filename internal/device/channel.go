package device

import (
	"math"
	"strconv"
	"time"
)

type channelSpec struct {
	name       string
	min, max   float64
	resolution float64
}

var channelSpecs = map[ChannelType]channelSpec{
	ChannelBrightness:               {"brightness", 0, 100, 100.0 / 255},
	ChannelHue:                      {"hue", 0, 360, 360.0 / 255},
	ChannelSaturation:               {"saturation", 0, 100, 100.0 / 255},
	ChannelColorTemperature:         {"colortemp", 100, 1000, 900.0 / 255},
	ChannelCIEX:                     {"x", 0, 10000, 10000.0 / 255},
	ChannelCIEY:                     {"y", 0, 10000, 10000.0 / 255},
	ChannelShadePositionOutside:     {"shadePositionOutside", 0, 100, 100.0 / 255},
	ChannelShadePositionIndoor:      {"shadePositionIndoor", 0, 100, 100.0 / 255},
	ChannelShadeOpeningAngleOutside: {"shadeOpeningAngleOutside", 0, 100, 100.0 / 255},
	ChannelShadeOpeningAngleIndoor:  {"shadeOpeningAngleIndoor", 0, 100, 100.0 / 255},
	ChannelTransparency:             {"transparency", 0, 100, 100.0 / 255},
	ChannelHeatingPower:             {"heatingPower", 0, 100, 100.0 / 255},
	ChannelHeatingValve:             {"heatingValue", 0, 100, 100.0 / 255},
	ChannelCoolingCapacity:          {"coolingCapacity", 0, 100, 100.0 / 255},
	ChannelCoolingValve:             {"coolingValue", 0, 100, 100.0 / 255},
	ChannelAirFlowIntensity:         {"airFlowIntensity", 0, 100, 100.0 / 255},
	ChannelAirFlowDirection:         {"airFlowDirection", 0, 2, 1},
	ChannelAirFlapPosition:          {"airFlapPosition", 0, 100, 100.0 / 255},
	ChannelAirLouverPosition:        {"airLouverPosition", 0, 100, 100.0 / 255},
	ChannelAirLouverAuto:            {"airLouverAuto", 0, 1, 1},
	ChannelAirFlowAuto:              {"airFlowAuto", 0, 1, 1},
	ChannelAudioVolume:              {"audioVolume", 0, 100, 100.0 / 255},
	ChannelAudioBass:                {"audioBass", 0, 100, 100.0 / 255},
	ChannelAudioTreble:              {"audioTreble", 0, 100, 100.0 / 255},
	ChannelAudioBalance:             {"audioBalance", 0, 100, 100.0 / 255},
	ChannelWaterTemperature:         {"waterTemperature", 0, 150, 150.0 / 255},
	ChannelWaterFlow:                {"waterFlow", 0, 100, 100.0 / 255},
	ChannelPowerState:               {"powerState", 0, 3, 1},
	ChannelWindSpeedRate:            {"windSpeedRate", 0, 100, 100.0 / 255},
	ChannelPowerLevel:               {"powerLevel", 0, 100, 100.0 / 255},
}

// functionChannels lists the channels created automatically for an output
// function. Positional, bipolar and internally controlled outputs declare
// their channels explicitly.
var functionChannels = map[OutputFunction][]ChannelType{
	FunctionOnOff:           {ChannelBrightness},
	FunctionDimmer:          {ChannelBrightness},
	FunctionDimmerColorTemp: {ChannelBrightness, ChannelColorTemperature},
	FunctionFullColorDimmer: {
		ChannelBrightness, ChannelHue, ChannelSaturation,
		ChannelColorTemperature, ChannelCIEX, ChannelCIEY,
	},
}

// Channel is one controllable dimension of an output.
type Channel struct {
	Type       ChannelType
	Index      int
	Name       string
	Min        float64
	Max        float64
	Resolution float64

	value   float64
	valid   bool
	updated time.Time
}

// NewChannel creates a channel with the standard range of its type.
// Device specific types get 0..100 with resolution 1.
func NewChannel(t ChannelType, index int) *Channel {
	c := &Channel{Type: t, Index: index, Min: 0, Max: 100, Resolution: 1}
	if spec, ok := channelSpecs[t]; ok {
		c.Name = spec.name
		c.Min, c.Max, c.Resolution = spec.min, spec.max, spec.resolution
	} else {
		c.Name = "channel_" + strconv.Itoa(index)
	}
	return c
}

// Value returns the last confirmed value; ok is false until the hardware
// confirmed one.
func (c *Channel) Value() (v float64, ok bool) {
	return c.value, c.valid
}

// Age is the time since the last confirmed update, or -1 if none.
func (c *Channel) Age(now time.Time) time.Duration {
	if !c.valid {
		return -1
	}
	return now.Sub(c.updated)
}

func (c *Channel) clamp(v float64) float64 {
	return math.Min(c.Max, math.Max(c.Min, v))
}

func (c *Channel) confirm(v float64, now time.Time) {
	c.value = c.clamp(v)
	c.valid = true
	c.updated = now
}

// step is one dimming increment: a tenth of the range, at least one
// resolution step.
func (c *Channel) step() float64 {
	return math.Max((c.Max-c.Min)/10, c.Resolution)
}

// String returns the channel type id used in the property tree, or
// "channel<N>" for device specific types.
func (t ChannelType) String() string {
	if spec, ok := channelSpecs[t]; ok {
		return spec.name
	}
	return "channel" + strconv.Itoa(int(t))
}
