package device

import (
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/vdc-core/internal/property"
)

// groupCount is the number of entries in outputSettings.groups.
const groupCount = 64

func uintValue(n int) property.Value { return property.Uint64Value(uint64(n)) }

func optString(s string) property.Value {
	if s == "" {
		return property.Null(property.KindString)
	}
	return property.StringValue(s)
}

func optDouble(p *float64) property.Value {
	if p == nil {
		return property.Null(property.KindDouble)
	}
	return property.DoubleValue(*p)
}

func optUint(p *int) property.Value {
	if p == nil {
		return property.Null(property.KindUint64)
	}
	return uintValue(*p)
}

func ageValue(secs float64, ok bool) property.Value {
	if !ok {
		return property.Null(property.KindDouble)
	}
	return property.DoubleValue(secs)
}

// PropertyTree implements property.Source.
func (v *Vdsd) PropertyTree() *property.Element {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	info := v.info
	features := property.Container("modelFeatures")
	for _, f := range sortedFeatures(v.features) {
		features.Add(property.Leaf(f, property.BoolValue(true)))
	}

	root := property.Container("",
		property.Leaf("dSUID", property.StringValue(v.id.String())),
		property.Leaf("displayId", optString(info.DisplayID)),
		property.Leaf("type", property.StringValue("vdSD")),
		property.Leaf("model", optString(info.Model)),
		property.Leaf("modelVersion", optString(info.ModelVersion)),
		property.Leaf("modelUID", optString(info.ModelUID)),
		property.Leaf("hardwareVersion", optString(info.HardwareVersion)),
		property.Leaf("hardwareGuid", optString(info.HardwareGUID)),
		property.Leaf("hardwareModelGuid", optString(info.HardwareModelGUID)),
		property.Leaf("vendorName", optString(info.VendorName)),
		property.Leaf("vendorGuid", optString(info.VendorGUID)),
		property.Leaf("oemGuid", optString(info.OEMGUID)),
		property.Leaf("oemModelGuid", optString(info.OEMModelGUID)),
		property.Leaf("configURL", optString(info.ConfigURL)),
		property.Leaf("deviceIconName", optString(info.DeviceIconName)),
		property.Leaf("deviceClass", optString(info.DeviceClass)),
		property.Leaf("deviceClassVersion", optString(info.DeviceClassVersion)),
		property.Leaf("name", property.StringValue(v.name)),
		property.Leaf("active", property.BoolValue(v.active)),
		property.Leaf("primaryGroup", uintValue(v.group)),
		property.Leaf("zoneID", uintValue(v.zoneID)),
		features,
	)

	if v.output != nil {
		root.Add(outputElements(v.output, now)...)
	}
	if len(v.buttons) > 0 {
		desc, set, state := property.Array("buttonInputDescriptions"), property.Array("buttonInputSettings"), property.Array("buttonInputStates")
		for _, idx := range sortedKeys(v.buttons) {
			b := v.buttons[idx]
			desc.Add(property.Container(property.Index(idx),
				property.Leaf("name", property.StringValue(b.Name)),
				property.Leaf("dsIndex", uintValue(idx)),
				property.Leaf("supportsLocalKeyMode", property.BoolValue(b.SupportsLocalKeyMode)),
				property.Leaf("buttonType", uintValue(b.ButtonType)),
				property.Leaf("buttonElementID", uintValue(b.ElementID)),
			))
			set.Add(property.Container(property.Index(idx),
				property.Leaf("group", uintValue(b.Group)),
				property.Leaf("function", uintValue(b.Function)),
				property.Leaf("mode", uintValue(b.Mode)),
				property.Leaf("channel", uintValue(b.Channel)),
				property.Leaf("setsLocalPriority", property.BoolValue(b.SetsLocalPriority)),
				property.Leaf("callsPresent", property.BoolValue(b.CallsPresent)),
			))
			state.Add(buttonStateElement(b, now))
		}
		root.Add(desc, set, state)
	}
	if len(v.binaryInputs) > 0 {
		desc, set, state := property.Array("binaryInputDescriptions"), property.Array("binaryInputSettings"), property.Array("binaryInputStates")
		for _, idx := range sortedKeys(v.binaryInputs) {
			bi := v.binaryInputs[idx]
			desc.Add(property.Container(property.Index(idx),
				property.Leaf("name", property.StringValue(bi.Name)),
				property.Leaf("dsIndex", uintValue(idx)),
				property.Leaf("inputType", uintValue(bi.InputType)),
				property.Leaf("inputUsage", uintValue(bi.Usage)),
				property.Leaf("sensorFunction", uintValue(bi.HardwiredFunction)),
				property.Leaf("updateInterval", property.DoubleValue(bi.UpdateInterval)),
				property.Leaf("aliveSignInterval", property.DoubleValue(bi.AliveSignInterval)),
			))
			set.Add(property.Container(property.Index(idx),
				property.Leaf("group", uintValue(bi.Group)),
				property.Leaf("sensorFunction", uintValue(bi.SensorFunction)),
				property.Leaf("minPushInterval", property.DoubleValue(bi.MinPushInterval)),
				property.Leaf("changesOnlyInterval", property.DoubleValue(bi.ChangesOnlyInterval)),
			))
			state.Add(binaryInputStateElement(bi, now))
		}
		root.Add(desc, set, state)
	}
	if len(v.sensors) > 0 {
		desc, set, state := property.Array("sensorDescriptions"), property.Array("sensorSettings"), property.Array("sensorStates")
		for _, idx := range sortedKeys(v.sensors) {
			s := v.sensors[idx]
			desc.Add(property.Container(property.Index(idx),
				property.Leaf("name", property.StringValue(s.Name)),
				property.Leaf("dsIndex", uintValue(idx)),
				property.Leaf("sensorType", uintValue(s.SensorType)),
				property.Leaf("sensorUsage", uintValue(s.Usage)),
				property.Leaf("min", property.DoubleValue(s.Min)),
				property.Leaf("max", property.DoubleValue(s.Max)),
				property.Leaf("resolution", property.DoubleValue(s.Resolution)),
				property.Leaf("updateInterval", property.DoubleValue(s.UpdateInterval)),
				property.Leaf("aliveSignInterval", property.DoubleValue(s.AliveSignInterval)),
			))
			set.Add(property.Container(property.Index(idx),
				property.Leaf("group", uintValue(s.Group)),
				property.Leaf("minPushInterval", property.DoubleValue(s.MinPushInterval)),
				property.Leaf("changesOnlyInterval", property.DoubleValue(s.ChangesOnlyInterval)),
			))
			state.Add(sensorStateElement(s, now))
		}
		root.Add(desc, set, state)
	}
	return root
}

func outputElements(o *Output, now time.Time) []*property.Element {
	desc := property.Container("outputDescription",
		property.Leaf("function", uintValue(int(o.Function))),
		property.Leaf("outputUsage", uintValue(o.Usage)),
		property.Leaf("name", property.StringValue(o.Name)),
		property.Leaf("defaultGroup", uintValue(o.DefaultGroup)),
		property.Leaf("variableRamp", property.BoolValue(o.VariableRamp)),
	)
	if o.MaxPower != nil {
		desc.Add(property.Leaf("maxPower", property.DoubleValue(*o.MaxPower)))
	}
	if o.ActiveCoolingMode != nil {
		desc.Add(property.Leaf("activeCoolingMode", property.BoolValue(*o.ActiveCoolingMode)))
	}

	groups := property.Array("groups")
	for g := 0; g < groupCount; g++ {
		groups.Add(property.Leaf(property.Index(g), property.BoolValue(o.Groups[g])))
	}
	settings := property.Container("outputSettings",
		property.Leaf("mode", uintValue(int(o.Mode))),
		property.Leaf("activeGroup", uintValue(o.ActiveGroup)),
		property.Leaf("pushChanges", property.BoolValue(o.PushChanges)),
		groups,
		property.Leaf("onThreshold", optDouble(o.OnThreshold)),
		property.Leaf("minBrightness", optDouble(o.MinBrightness)),
	)
	for _, name := range dimTimeNames {
		if t, ok := o.DimTimes[name]; ok {
			settings.Add(property.Leaf(name, property.Uint64Value(t)))
		} else {
			settings.Add(property.Leaf(name, property.Null(property.KindUint64)))
		}
	}
	settings.Add(
		property.Leaf("heatingSystemCapability", optUint(o.HeatingSystemCapability)),
		property.Leaf("heatingSystemType", optUint(o.HeatingSystemType)),
	)

	state := property.Container("outputState",
		property.Leaf("localPriority", property.BoolValue(o.LocalPriority)),
		property.Leaf("error", uintValue(o.Error)),
	)

	chDesc, chSet, chState := property.Array("channelDescriptions"), property.Array("channelSettings"), property.Array("channelStates")
	for _, ch := range o.channels {
		chDesc.Add(property.Container(property.Index(ch.Index),
			property.Leaf("name", property.StringValue(ch.Name)),
			property.Leaf("channelType", uintValue(int(ch.Type))),
			property.Leaf("dsIndex", uintValue(ch.Index)),
			property.Leaf("min", property.DoubleValue(ch.Min)),
			property.Leaf("max", property.DoubleValue(ch.Max)),
			property.Leaf("resolution", property.DoubleValue(ch.Resolution)),
		))
		chSet.Add(property.Container(property.Index(ch.Index)))
		chState.Add(channelStateElement(ch, now))
	}

	scenes := property.Array("scenes")
	for _, nr := range o.SceneNumbers() {
		s := o.scenes[nr]
		channels := property.Array("channels")
		for _, ch := range o.channels {
			sv, ok := s.Channels[ch.Index]
			if !ok {
				continue
			}
			val := property.Null(property.KindDouble)
			if sv.HasValue {
				val = property.DoubleValue(sv.Value)
			}
			channels.Add(property.Container(property.Index(int(ch.Type)),
				property.Leaf("value", val),
				property.Leaf("dontCare", property.BoolValue(sv.DontCare)),
				property.Leaf("automatic", property.BoolValue(sv.Automatic)),
			))
		}
		scenes.Add(property.Container(property.Index(nr),
			property.Leaf("dontCare", property.BoolValue(s.DontCare)),
			property.Leaf("ignoreLocalPriority", property.BoolValue(s.IgnoreLocalPriority)),
			property.Leaf("effect", uintValue(int(s.Effect))),
			channels,
		))
	}

	return []*property.Element{desc, settings, state, chDesc, chSet, chState, scenes}
}

func channelStateElement(ch *Channel, now time.Time) *property.Element {
	val := property.Null(property.KindDouble)
	if v, ok := ch.Value(); ok {
		val = property.DoubleValue(v)
	}
	age := ch.Age(now)
	return property.Container(property.Index(ch.Index),
		property.Leaf("value", val),
		property.Leaf("age", ageValue(age.Seconds(), age >= 0)),
	)
}

func sensorStateElement(s *Sensor, now time.Time) *property.Element {
	val := property.Null(property.KindDouble)
	if v, ok := s.Value(); ok {
		val = property.DoubleValue(v)
	}
	return property.Container(property.Index(s.Index),
		property.Leaf("value", val),
		property.Leaf("age", ageValue(s.age(now))),
		property.Leaf("error", uintValue(s.Error)),
	)
}

func binaryInputStateElement(bi *BinaryInput, now time.Time) *property.Element {
	e := property.Container(property.Index(bi.Index))
	switch {
	case bi.extended != nil:
		e.Add(property.Leaf("extendedValue", property.Uint64Value(*bi.extended)))
	case bi.valid:
		e.Add(property.Leaf("value", property.BoolValue(bi.value)))
	default:
		e.Add(property.Leaf("value", property.Null(property.KindBool)))
	}
	e.Add(
		property.Leaf("age", ageValue(bi.age(now))),
		property.Leaf("error", uintValue(bi.Error)),
	)
	return e
}

func buttonStateElement(b *Button, now time.Time) *property.Element {
	val := property.Null(property.KindBool)
	if b.valid {
		val = property.BoolValue(b.value)
	}
	_, click := b.State()
	return property.Container(property.Index(b.Index),
		property.Leaf("value", val),
		property.Leaf("clickType", uintValue(int(click))),
		property.Leaf("age", ageValue(b.age(now))),
		property.Leaf("error", uintValue(b.Error)),
	)
}

// Writable implements property.Source.
func (v *Vdsd) Writable(path []string) bool {
	switch path[0] {
	case "name", "zoneID":
		return len(path) == 1
	case "outputSettings", "scenes", "buttonInputSettings", "binaryInputSettings", "sensorSettings":
		return len(path) > 1
	case "outputState":
		return len(path) == 2 && path[1] == "localPriority"
	}
	return false
}

// ApplyProperties implements property.Source. tree holds only the leaves
// the set request wrote, already validated, so every other field keeps
// its current value.
func (v *Vdsd) ApplyProperties(tree *property.Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if x := leaf(tree, "name"); x != nil {
		v.name = x.AsString()
	}
	setInt(&v.zoneID, tree, "zoneID")

	if o := v.output; o != nil {
		readOutputSettings(o, tree.Child("outputSettings"))
		if x := leaf(tree, "outputState", "localPriority"); x != nil {
			o.LocalPriority = x.AsBool()
		}
		readScenes(o, tree.Child("scenes"))
	}

	for idx, b := range v.buttons {
		s := tree.Lookup("buttonInputSettings", property.Index(idx))
		if s == nil {
			continue
		}
		setInt(&b.Group, s, "group")
		setInt(&b.Function, s, "function")
		setInt(&b.Mode, s, "mode")
		setInt(&b.Channel, s, "channel")
		setBool(&b.SetsLocalPriority, s, "setsLocalPriority")
		setBool(&b.CallsPresent, s, "callsPresent")
	}
	for idx, bi := range v.binaryInputs {
		s := tree.Lookup("binaryInputSettings", property.Index(idx))
		if s == nil {
			continue
		}
		setInt(&bi.Group, s, "group")
		setInt(&bi.SensorFunction, s, "sensorFunction")
		setDouble(&bi.MinPushInterval, s, "minPushInterval")
		setDouble(&bi.ChangesOnlyInterval, s, "changesOnlyInterval")
	}
	for idx, sn := range v.sensors {
		s := tree.Lookup("sensorSettings", property.Index(idx))
		if s == nil {
			continue
		}
		setInt(&sn.Group, s, "group")
		setDouble(&sn.MinPushInterval, s, "minPushInterval")
		setDouble(&sn.ChangesOnlyInterval, s, "changesOnlyInterval")
	}
	return nil
}

// leaf returns the value at path below e, or nil when it was not written.
func leaf(e *property.Element, path ...string) *property.Value {
	if l := e.Lookup(path...); l != nil {
		return l.Value
	}
	return nil
}

func setInt(dst *int, e *property.Element, name string) {
	if x := leaf(e, name); x != nil {
		*dst = int(x.AsUint64())
	}
}

func setBool(dst *bool, e *property.Element, name string) {
	if x := leaf(e, name); x != nil {
		*dst = x.AsBool()
	}
}

func setDouble(dst *float64, e *property.Element, name string) {
	if x := leaf(e, name); x != nil {
		*dst = x.AsDouble()
	}
}

// setOptDouble stores nil for NULL.
func setOptDouble(dst **float64, e *property.Element, name string) {
	x := leaf(e, name)
	switch {
	case x == nil:
	case x.IsNull():
		*dst = nil
	default:
		d := x.AsDouble()
		*dst = &d
	}
}

func setOptInt(dst **int, e *property.Element, name string) {
	x := leaf(e, name)
	switch {
	case x == nil:
	case x.IsNull():
		*dst = nil
	default:
		n := int(x.AsUint64())
		*dst = &n
	}
}

func readOutputSettings(o *Output, s *property.Element) {
	if s == nil {
		return
	}
	if x := leaf(s, "mode"); x != nil {
		o.Mode = OutputMode(x.AsUint64())
	}
	setInt(&o.ActiveGroup, s, "activeGroup")
	setBool(&o.PushChanges, s, "pushChanges")
	setOptDouble(&o.OnThreshold, s, "onThreshold")
	setOptDouble(&o.MinBrightness, s, "minBrightness")
	setOptInt(&o.HeatingSystemCapability, s, "heatingSystemCapability")
	setOptInt(&o.HeatingSystemType, s, "heatingSystemType")

	if groups := s.Child("groups"); groups != nil {
		if o.Groups == nil {
			o.Groups = make(map[int]bool)
		}
		for _, g := range groups.Elements {
			n, err := strconv.Atoi(g.Name)
			if err != nil || g.Value == nil {
				continue
			}
			if g.Value.AsBool() {
				o.Groups[n] = true
			} else {
				delete(o.Groups, n)
			}
		}
	}

	for _, name := range dimTimeNames {
		x := leaf(s, name)
		switch {
		case x == nil:
		case x.IsNull():
			delete(o.DimTimes, name)
		default:
			if o.DimTimes == nil {
				o.DimTimes = make(map[string]uint64)
			}
			o.DimTimes[name] = x.AsUint64()
		}
	}
}

func readScenes(o *Output, scenes *property.Element) {
	if scenes == nil {
		return
	}
	for _, se := range scenes.Elements {
		nr, err := strconv.Atoi(se.Name)
		if err != nil {
			continue
		}
		s, ok := o.scenes[nr]
		if !ok {
			continue
		}
		setBool(&s.DontCare, se, "dontCare")
		setBool(&s.IgnoreLocalPriority, se, "ignoreLocalPriority")
		if x := leaf(se, "effect"); x != nil {
			s.Effect = SceneEffect(x.AsUint64())
		}
		channels := se.Child("channels")
		if channels == nil {
			continue
		}
		for _, ce := range channels.Elements {
			t, err := strconv.Atoi(ce.Name)
			if err != nil {
				continue
			}
			ch, err := o.ChannelByType(ChannelType(t))
			if err != nil {
				continue
			}
			sv := s.Channels[ch.Index]
			if x := leaf(ce, "value"); x != nil {
				if x.IsNull() {
					sv.HasValue = false
				} else {
					sv.Value, sv.HasValue = ch.clamp(x.AsDouble()), true
				}
			}
			setBool(&sv.DontCare, ce, "dontCare")
			setBool(&sv.Automatic, ce, "automatic")
			s.Channels[ch.Index] = sv
		}
	}
}

func sortedFeatures(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for f, on := range m {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
