package device

import "time"

// ClickType is the detected button gesture.
type ClickType int

// Click types.
const (
	ClickTip1x          ClickType = 0
	ClickTip2x          ClickType = 1
	ClickTip3x          ClickType = 2
	ClickTip4x          ClickType = 3
	ClickHoldStart      ClickType = 4
	ClickHoldRepeat     ClickType = 5
	ClickHoldEnd        ClickType = 6
	Click1x             ClickType = 7
	Click2x             ClickType = 8
	Click3x             ClickType = 9
	ClickShortLong      ClickType = 10
	ClickLocalOff       ClickType = 11
	ClickLocalOn        ClickType = 12
	ClickShortShortLong ClickType = 13
	ClickLocalStop      ClickType = 14
	ClickIdle           ClickType = 255
)

// reading is the volatile part shared by all inputs.
type reading struct {
	valid   bool
	updated time.Time
	Error   int
}

func (r *reading) touch(now time.Time) {
	r.valid = true
	r.updated = now
}

// age returns the seconds since the last update and whether there was one.
func (r *reading) age(now time.Time) (float64, bool) {
	if !r.valid {
		return 0, false
	}
	return now.Sub(r.updated).Seconds(), true
}

// Button is a button input.
type Button struct {
	Index                int
	Name                 string
	SupportsLocalKeyMode bool
	ButtonType           int
	ElementID            int

	// Settings
	Group             int
	Function          int
	Mode              int
	Channel           int
	SetsLocalPriority bool
	CallsPresent      bool

	reading
	value     bool
	clickType ClickType
}

// State returns the last reported button value and click type.
func (b *Button) State() (pressed bool, click ClickType) {
	if !b.valid {
		return false, ClickIdle
	}
	return b.value, b.clickType
}

// BinaryInput is a two-state input such as a contact or a motion detector.
type BinaryInput struct {
	Index             int
	Name              string
	InputType         int
	Usage             int
	HardwiredFunction int
	UpdateInterval    float64
	AliveSignInterval float64

	// Settings
	Group               int
	SensorFunction      int
	MinPushInterval     float64
	ChangesOnlyInterval float64

	reading
	value    bool
	extended *uint64
}

// Value returns the last reported state.
func (b *BinaryInput) Value() (v bool, ok bool) { return b.value, b.valid }

// Sensor is a numeric measurement input.
type Sensor struct {
	Index             int
	Name              string
	SensorType        int
	Usage             int
	Min               float64
	Max               float64
	Resolution        float64
	UpdateInterval    float64
	AliveSignInterval float64

	// Settings
	Group               int
	MinPushInterval     float64
	ChangesOnlyInterval float64

	reading
	value float64
}

// Value returns the last reported measurement.
func (s *Sensor) Value() (v float64, ok bool) { return s.value, s.valid }
