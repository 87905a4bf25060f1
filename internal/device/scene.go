package device

// offScenes drive every channel to its minimum.
var offScenes = map[int]bool{
	SceneOff: true, 1: true, 2: true, 3: true, 4: true, // preset 0, area 1..4 off
	32: true, 34: true, 36: true, 38: true, // presets 10, 20, 30, 40
	40: true, SceneDeviceOff: true, SceneDeepOff: true,
	64: true, 67: true, 72: true, // auto standby, standby, absent
}

// onScenes drive every channel to its maximum.
var onScenes = map[int]bool{
	SceneOn: true, 6: true, 7: true, 8: true, 9: true, // preset 1, area 1..4 on
	33: true, 35: true, 37: true, 39: true, // presets 11, 21, 31, 41
	SceneMaximum: true, SceneDeviceOn: true,
	70: true, 71: true, // wakeup, present
}

// actionScenes are commands without stored values: stepping, stop, area
// dimming, impulse and minimum.
var actionScenes = map[int]bool{
	10: true, SceneDecrement: true, SceneIncrement: true, SceneStop: true,
	42: true, 43: true, 44: true, 45: true, 46: true, 47: true, 48: true, 49: true,
	52: true, 53: true, 54: true, 55: true,
	SceneImpulse: true, SceneMinimum: true,
}

var safetyScenes = map[int]bool{
	ScenePanic: true, SceneFire: true,
	SceneAlarm1: true, SceneAlarm2: true, SceneAlarm3: true, SceneAlarm4: true,
}

// areaOnScene maps a dimming area (1..4) to the scene that tells whether
// the output belongs to it.
func areaOnScene(area int) int { return 5 + area }

// SceneValue is the stored value of one channel in a scene.
type SceneValue struct {
	Value     float64 `cbor:"value"`
	HasValue  bool    `cbor:"has_value"`
	DontCare  bool    `cbor:"dont_care"`
	Automatic bool    `cbor:"automatic"`
}

// Scene is one entry of an output's scene table.
type Scene struct {
	DontCare            bool        `cbor:"dont_care"`
	IgnoreLocalPriority bool        `cbor:"ignore_local_priority"`
	Effect              SceneEffect `cbor:"effect"`

	// Channels is keyed by channel index.
	Channels map[int]SceneValue `cbor:"channels"`
}

func (s *Scene) clone() *Scene {
	c := *s
	c.Channels = make(map[int]SceneValue, len(s.Channels))
	for k, v := range s.Channels {
		c.Channels[k] = v
	}
	return &c
}

// defaultScene builds the factory entry for scene nr.
func defaultScene(nr int, channels []*Channel) *Scene {
	off, on := offScenes[nr], onScenes[nr]
	known := off || on

	s := &Scene{
		DontCare:            !known,
		IgnoreLocalPriority: safetyScenes[nr],
		Effect:              EffectNone,
		Channels:            make(map[int]SceneValue, len(channels)),
	}
	if known {
		s.Effect = EffectSmooth
	}
	for _, ch := range channels {
		v := ch.Min
		if on {
			v = ch.Max
		}
		s.Channels[ch.Index] = SceneValue{Value: v, HasValue: true, DontCare: !known}
	}
	return s
}

// defaultScenes builds the table for every scene that stores values.
func defaultScenes(channels []*Channel) map[int]*Scene {
	scenes := make(map[int]*Scene, MaxScene+1)
	for nr := 0; nr <= MaxScene; nr++ {
		if actionScenes[nr] {
			continue
		}
		scenes[nr] = defaultScene(nr, channels)
	}
	return scenes
}
