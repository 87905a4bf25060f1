package device

import (
	"fmt"
	"sort"
)

// Dim time setting names accepted in DimTimes.
var dimTimeNames = []string{
	"dimTimeUp", "dimTimeDown",
	"dimTimeUpAlt1", "dimTimeDownAlt1",
	"dimTimeUpAlt2", "dimTimeDownAlt2",
}

// Output is the single output of a vdSD.
//
// Output has no lock of its own; the owning Vdsd serializes access.
type Output struct {
	// Description
	Function          OutputFunction
	Usage             int
	Name              string
	DefaultGroup      int
	VariableRamp      bool
	MaxPower          *float64
	ActiveCoolingMode *bool

	// Settings
	Mode                    OutputMode
	ActiveGroup             int
	PushChanges             bool
	Groups                  map[int]bool
	OnThreshold             *float64
	MinBrightness           *float64
	DimTimes                map[string]uint64
	HeatingSystemCapability *int
	HeatingSystemType       *int

	// State
	LocalPriority bool
	Error         int

	channels []*Channel
	scenes   map[int]*Scene

	undo      map[int]float64
	lastScene int
	pending   map[int]float64
}

// NewOutput creates an output. With no explicit channel types the channels
// implied by the function are created.
func NewOutput(fn OutputFunction, group int, types ...ChannelType) *Output {
	if len(types) == 0 {
		types = functionChannels[fn]
	}
	o := &Output{
		Function:     fn,
		DefaultGroup: group,
		Mode:         ModeDefault,
		ActiveGroup:  group,
		Groups:       map[int]bool{group: true},
		DimTimes:     make(map[string]uint64),
		lastScene:    -1,
		pending:      make(map[int]float64),
	}
	for i, t := range types {
		o.channels = append(o.channels, NewChannel(t, i))
	}
	o.scenes = defaultScenes(o.channels)
	return o
}

// AddChannel appends a channel with the next free index. The scene table
// is rebuilt, so call it before scenes are customised.
func (o *Output) AddChannel(t ChannelType) *Channel {
	ch := NewChannel(t, len(o.channels))
	o.channels = append(o.channels, ch)
	o.scenes = defaultScenes(o.channels)
	return ch
}

// Channels returns the channels ordered by index.
func (o *Output) Channels() []*Channel {
	return append([]*Channel(nil), o.channels...)
}

// Channel returns the channel at index i.
func (o *Output) Channel(i int) (*Channel, error) {
	if i < 0 || i >= len(o.channels) {
		return nil, fmt.Errorf("%w: index %d", ErrChannelNotFound, i)
	}
	return o.channels[i], nil
}

// ChannelByType resolves a channel type; ChannelDefault means index 0.
func (o *Output) ChannelByType(t ChannelType) (*Channel, error) {
	if t == ChannelDefault && len(o.channels) > 0 {
		return o.channels[0], nil
	}
	for _, ch := range o.channels {
		if ch.Type == t {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: type %d", ErrChannelNotFound, t)
}

// Scene returns a copy of the scene entry nr.
func (o *Output) Scene(nr int) (*Scene, bool) {
	s, ok := o.scenes[nr]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// SceneNumbers returns the numbers of all stored scenes in order.
func (o *Output) SceneNumbers() []int {
	nrs := make([]int, 0, len(o.scenes))
	for nr := range o.scenes {
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)
	return nrs
}

// LastScene returns the last called scene, or -1.
func (o *Output) LastScene() int { return o.lastScene }

// callScene returns the channel values scene nr asks for, keyed by index.
// ok is false when the call is ignored.
func (o *Output) callScene(nr int, force bool) (targets map[int]float64, ok bool) {
	s, found := o.scenes[nr]
	if !found || s.DontCare {
		return nil, false
	}
	if o.LocalPriority && !force && !s.IgnoreLocalPriority {
		return nil, false
	}

	o.undo = make(map[int]float64, len(o.channels))
	for _, ch := range o.channels {
		if v, valid := ch.Value(); valid {
			o.undo[ch.Index] = v
		}
	}
	o.lastScene = nr

	targets = make(map[int]float64, len(s.Channels))
	for idx, sv := range s.Channels {
		if sv.DontCare || !sv.HasValue || idx >= len(o.channels) {
			continue
		}
		targets[idx] = sv.Value
	}
	return targets, true
}

// saveScene stores the current channel values into scene nr.
func (o *Output) saveScene(nr int) {
	s, ok := o.scenes[nr]
	if !ok {
		s = defaultScene(nr, o.channels)
		o.scenes[nr] = s
	}
	for _, ch := range o.channels {
		v, valid := ch.Value()
		if !valid {
			continue
		}
		sv := s.Channels[ch.Index]
		sv.Value, sv.HasValue, sv.DontCare = v, true, false
		s.Channels[ch.Index] = sv
	}
	s.DontCare = false
}

// undoScene returns the snapshot taken before scene nr was called, if nr
// is still the last called scene.
func (o *Output) undoScene(nr int) (map[int]float64, bool) {
	if o.lastScene != nr || o.undo == nil {
		return nil, false
	}
	targets := o.undo
	o.undo = nil
	o.lastScene = -1
	return targets, true
}

// callMinScene calls nr only when the output is off, and never leaves the
// primary channel at its minimum.
func (o *Output) callMinScene(nr int) (map[int]float64, bool) {
	if len(o.channels) == 0 {
		return nil, false
	}
	primary := o.channels[0]
	if v, valid := primary.Value(); valid && v > primary.Min {
		return nil, false
	}
	targets, ok := o.callScene(nr, false)
	if !ok {
		return nil, false
	}
	floor := primary.Min + primary.Resolution
	if o.MinBrightness != nil && *o.MinBrightness > floor {
		floor = *o.MinBrightness
	}
	if v, set := targets[primary.Index]; !set || v < floor {
		targets[primary.Index] = floor
	}
	return targets, true
}

// setLocalPriority latches local priority if scene nr affects the output.
func (o *Output) setLocalPriority(nr int) bool {
	s, ok := o.scenes[nr]
	if !ok || s.DontCare {
		return false
	}
	o.LocalPriority = true
	return true
}

// dim returns the next dimming step for the channel of type t. Area 0
// addresses every output; areas 1..4 only outputs whose area-on scene is
// not dontCare.
func (o *Output) dim(t ChannelType, mode int, area int) (map[int]float64, error) {
	ch, err := o.ChannelByType(t)
	if err != nil {
		return nil, err
	}
	if area != 0 {
		s, ok := o.scenes[areaOnScene(area)]
		if !ok || s.DontCare {
			return nil, nil
		}
	}
	cur, valid := ch.Value()
	if !valid {
		cur = ch.Min
	}
	switch {
	case mode > 0:
		cur += ch.step()
	case mode < 0:
		cur -= ch.step()
	default:
		return nil, nil
	}
	return map[int]float64{ch.Index: ch.clamp(cur)}, nil
}

// buffer stores a value for the channel of type t until the next apply.
func (o *Output) buffer(t ChannelType, value float64) error {
	ch, err := o.ChannelByType(t)
	if err != nil {
		return err
	}
	o.pending[ch.Index] = ch.clamp(value)
	return nil
}

// takePending hands out and clears the buffered values.
func (o *Output) takePending() map[int]float64 {
	if len(o.pending) == 0 {
		return nil
	}
	p := o.pending
	o.pending = make(map[int]float64)
	return p
}
