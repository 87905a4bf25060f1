package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
	"github.com/nerrad567/vdc-core/internal/splitting"
)

// Config holds the creation parameters of a vdSD.
type Config struct {
	SubIndex      int
	Name          string
	Info          Info
	ZoneID        int
	PrimaryGroup  int
	ModelFeatures []string
}

// Vdsd is one virtual digitalSTROM device: the unit the vdSM addresses.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Driver calls run outside the lock.
//   - The structure (output, inputs) can only change while not announced.
type Vdsd struct {
	mu sync.Mutex

	id       dsuid.DSUID
	subIndex int
	info     Info
	name     string
	zoneID   int
	group    int
	active   bool
	features map[string]bool

	output       *Output
	buttons      map[int]*Button
	binaryInputs map[int]*BinaryInput
	sensors      map[int]*Sensor

	announced bool
	driver    Driver
	now       func() time.Time
}

// NewVdsd creates a vdSD without output or inputs.
func NewVdsd(id dsuid.DSUID, cfg Config) *Vdsd {
	info := cfg.Info
	if info.ModelUID == "" && info.Model != "" {
		info.ModelUID = dsuid.FromName(info.Model, dsuid.NamespaceVDC).String()
	}
	v := &Vdsd{
		id:           id,
		subIndex:     cfg.SubIndex,
		info:         info,
		name:         cfg.Name,
		zoneID:       cfg.ZoneID,
		group:        cfg.PrimaryGroup,
		active:       true,
		features:     make(map[string]bool, len(cfg.ModelFeatures)),
		buttons:      make(map[int]*Button),
		binaryInputs: make(map[int]*BinaryInput),
		sensors:      make(map[int]*Sensor),
		driver:       noopDriver{},
		now:          time.Now,
	}
	for _, f := range cfg.ModelFeatures {
		v.features[f] = true
	}
	return v
}

// FromSpec builds a vdSD from one entry of a splitting result. Name, zone
// and primary group set on the splitting entry take precedence over cfg.
func FromSpec(spec splitting.Spec, cfg Config) (*Vdsd, error) {
	cfg.SubIndex = spec.SubIndex
	if spec.Name != "" {
		cfg.Name = spec.Name
	}
	cfg.ZoneID = spec.ZoneID
	cfg.PrimaryGroup = spec.PrimaryGroup
	v := NewVdsd(spec.DSUID, cfg)

	if spec.Output != nil {
		types := make([]ChannelType, len(spec.Output.Channels))
		for i, c := range spec.Output.Channels {
			types[i] = ChannelType(c)
		}
		if err := v.SetOutput(NewOutput(OutputFunction(spec.Output.OutputFunction), spec.PrimaryGroup, types...)); err != nil {
			return nil, err
		}
	}
	for _, in := range spec.Buttons {
		b := &Button{Index: in.Index, Name: in.Name, ButtonType: in.Type, Group: in.Group, Function: in.Function}
		if err := v.AddButton(b); err != nil {
			return nil, err
		}
	}
	for _, in := range spec.BinaryInputs {
		bi := &BinaryInput{Index: in.Index, Name: in.Name, InputType: in.Type, Group: in.Group, SensorFunction: in.Function}
		if err := v.AddBinaryInput(bi); err != nil {
			return nil, err
		}
	}
	for _, in := range spec.Sensors {
		s := &Sensor{Index: in.Index, Name: in.Name, SensorType: in.Type, Group: in.Group, Max: 100, Resolution: 0.1}
		if err := v.AddSensor(s); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// DSUID returns the vdSD's identifier.
func (v *Vdsd) DSUID() dsuid.DSUID { return v.id }

// SubIndex returns the sub-device index within the physical device.
func (v *Vdsd) SubIndex() int { return v.subIndex }

// Name returns the user-visible name.
func (v *Vdsd) Name() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.name
}

// ZoneID returns the zone the vdSD is placed in.
func (v *Vdsd) ZoneID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoneID
}

// PrimaryGroup returns the colour group of the vdSD.
func (v *Vdsd) PrimaryGroup() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.group
}

// Info returns the identification properties.
func (v *Vdsd) Info() Info {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.info
}

// HasOutput reports whether the vdSD has an output.
func (v *Vdsd) HasOutput() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.output != nil
}

// Announced reports whether the vdSM accepted the vdSD's announcement.
func (v *Vdsd) Announced() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.announced
}

func (v *Vdsd) setAnnounced(a bool) {
	v.mu.Lock()
	v.announced = a
	v.mu.Unlock()
}

// SetActive marks the hardware as reachable or not.
func (v *Vdsd) SetActive(active bool) {
	v.mu.Lock()
	v.active = active
	v.mu.Unlock()
}

// SetDriver installs the hardware driver.
func (v *Vdsd) SetDriver(d Driver) {
	if d == nil {
		d = noopDriver{}
	}
	v.mu.Lock()
	v.driver = d
	v.mu.Unlock()
}

// SetOutput installs the output.
func (v *Vdsd) SetOutput(o *Output) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.announced {
		return ErrAnnounced
	}
	v.output = o
	return nil
}

// AddButton adds a button input.
func (v *Vdsd) AddButton(b *Button) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkInput("button", b.Index, func(i int) bool { _, ok := v.buttons[i]; return ok }); err != nil {
		return err
	}
	v.buttons[b.Index] = b
	return nil
}

// AddBinaryInput adds a binary input.
func (v *Vdsd) AddBinaryInput(bi *BinaryInput) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkInput("binary input", bi.Index, func(i int) bool { _, ok := v.binaryInputs[i]; return ok }); err != nil {
		return err
	}
	v.binaryInputs[bi.Index] = bi
	return nil
}

// AddSensor adds a sensor input.
func (v *Vdsd) AddSensor(s *Sensor) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkInput("sensor", s.Index, func(i int) bool { _, ok := v.sensors[i]; return ok }); err != nil {
		return err
	}
	v.sensors[s.Index] = s
	return nil
}

func (v *Vdsd) checkInput(kind string, index int, exists func(int) bool) error {
	if v.announced {
		return ErrAnnounced
	}
	if index < 0 {
		return fmt.Errorf("%w: negative %s index %d", ErrInvalidDevice, kind, index)
	}
	if exists(index) {
		return fmt.Errorf("%w: duplicate %s index %d", ErrInvalidDevice, kind, index)
	}
	return nil
}

// ChannelValue returns the confirmed value of channel index i.
func (v *Vdsd) ChannelValue(i int) (value float64, ok bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.output == nil {
		return 0, false, ErrNoOutput
	}
	ch, err := v.output.Channel(i)
	if err != nil {
		return 0, false, err
	}
	value, ok = ch.Value()
	return value, ok, nil
}

// Scene returns a copy of scene nr.
func (v *Vdsd) Scene(nr int) (*Scene, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.output == nil {
		return nil, false
	}
	return v.output.Scene(nr)
}

// LocalPriority reports whether local priority is latched.
func (v *Vdsd) LocalPriority() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.output != nil && v.output.LocalPriority
}

// InGroup reports whether the vdSD belongs to colour group g, either as
// its primary group or through an enabled output group.
func (v *Vdsd) InGroup(g int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.group == g {
		return true
	}
	return v.output != nil && v.output.Groups[g]
}

// ResolveChannel maps a channel given by type or by name to its type. A
// non-empty id takes precedence.
func (v *Vdsd) ResolveChannel(t int, id string) (ChannelType, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.output == nil {
		return 0, ErrNoOutput
	}
	if id == "" {
		ch, err := v.output.ChannelByType(ChannelType(t))
		if err != nil {
			return 0, err
		}
		return ch.Type, nil
	}
	for _, ch := range v.output.channels {
		if ch.Name == id {
			return ch.Type, nil
		}
	}
	return 0, fmt.Errorf("%w: id %q", ErrChannelNotFound, id)
}

// withOutput runs fn under the lock after the common output checks.
func (v *Vdsd) withOutput(fn func(o *Output) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.output == nil {
		return ErrNoOutput
	}
	return fn(v.output)
}

func checkScene(nr int) error {
	if nr < 0 || nr > MaxScene {
		return fmt.Errorf("%w: %d", ErrInvalidScene, nr)
	}
	return nil
}

// CallScene applies the stored values of scene nr. A dontCare scene, or
// local priority without force, leaves the output untouched.
func (v *Vdsd) CallScene(ctx context.Context, nr int, force bool) error {
	if err := checkScene(nr); err != nil {
		return err
	}
	var targets map[int]float64
	if err := v.withOutput(func(o *Output) error {
		targets, _ = o.callScene(nr, force)
		return nil
	}); err != nil {
		return err
	}
	return v.apply(ctx, targets)
}

// SaveScene stores the current channel values as scene nr.
func (v *Vdsd) SaveScene(nr int) error {
	if err := checkScene(nr); err != nil {
		return err
	}
	return v.withOutput(func(o *Output) error {
		o.saveScene(nr)
		return nil
	})
}

// UndoScene restores the values from before scene nr was called. It does
// nothing unless nr is the last called scene.
func (v *Vdsd) UndoScene(ctx context.Context, nr int) error {
	if err := checkScene(nr); err != nil {
		return err
	}
	var targets map[int]float64
	if err := v.withOutput(func(o *Output) error {
		targets, _ = o.undoScene(nr)
		return nil
	}); err != nil {
		return err
	}
	return v.apply(ctx, targets)
}

// CallMinScene calls scene nr only if the output is off, with at least
// the minimum on level on the primary channel.
func (v *Vdsd) CallMinScene(ctx context.Context, nr int) error {
	if err := checkScene(nr); err != nil {
		return err
	}
	var targets map[int]float64
	if err := v.withOutput(func(o *Output) error {
		targets, _ = o.callMinScene(nr)
		return nil
	}); err != nil {
		return err
	}
	return v.apply(ctx, targets)
}

// SetLocalPriority latches local priority when scene nr affects the output.
func (v *Vdsd) SetLocalPriority(nr int) error {
	if err := checkScene(nr); err != nil {
		return err
	}
	return v.withOutput(func(o *Output) error {
		o.setLocalPriority(nr)
		return nil
	})
}

// DimChannel moves the channel of type t one step in the direction of
// mode (positive up, negative down, zero stop).
func (v *Vdsd) DimChannel(ctx context.Context, t ChannelType, mode, area int) error {
	var targets map[int]float64
	if err := v.withOutput(func(o *Output) (err error) {
		targets, err = o.dim(t, mode, area)
		return err
	}); err != nil {
		return err
	}
	return v.apply(ctx, targets)
}

// SetChannelValue buffers a value for the channel of type t. With applyNow
// every buffered value is sent to the driver in one call.
func (v *Vdsd) SetChannelValue(ctx context.Context, t ChannelType, value float64, applyNow bool) error {
	if err := v.withOutput(func(o *Output) error {
		return o.buffer(t, value)
	}); err != nil {
		return err
	}
	if !applyNow {
		return nil
	}
	return v.ApplyPending(ctx)
}

// ApplyPending sends all buffered channel values to the driver.
func (v *Vdsd) ApplyPending(ctx context.Context) error {
	var targets map[int]float64
	if err := v.withOutput(func(o *Output) error {
		targets = o.takePending()
		return nil
	}); err != nil {
		return err
	}
	return v.apply(ctx, targets)
}

// SetControlValue forwards a named control value to the driver.
func (v *Vdsd) SetControlValue(ctx context.Context, name string, value float64) error {
	v.mu.Lock()
	drv := v.driver
	v.mu.Unlock()
	if err := drv.SetControlValue(ctx, v.id, name, value); err != nil {
		return fmt.Errorf("setting control value %s on %s: %w", name, v.id, err)
	}
	return nil
}

// CallMethod hands a generic request to the driver. It returns
// ErrNotSupported when the driver has no generic methods.
func (v *Vdsd) CallMethod(ctx context.Context, name string, params []*property.Element) ([]*property.Element, error) {
	v.mu.Lock()
	drv := v.driver
	v.mu.Unlock()
	md, ok := drv.(MethodDriver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, name)
	}
	return md.CallMethod(ctx, v.id, name, params)
}

// Identify asks the driver to make the device signal itself.
func (v *Vdsd) Identify(ctx context.Context) error {
	v.mu.Lock()
	drv := v.driver
	v.mu.Unlock()
	if err := drv.Identify(ctx, v.id); err != nil {
		return fmt.Errorf("identifying %s: %w", v.id, err)
	}
	return nil
}

// apply drives targets (keyed by channel index) through the driver and
// confirms them on success.
func (v *Vdsd) apply(ctx context.Context, targets map[int]float64) error {
	if len(targets) == 0 {
		return nil
	}

	v.mu.Lock()
	if v.output == nil {
		v.mu.Unlock()
		return ErrNoOutput
	}
	byType := make(map[ChannelType]float64, len(targets))
	for idx, val := range targets {
		ch, err := v.output.Channel(idx)
		if err != nil {
			v.mu.Unlock()
			return err
		}
		byType[ch.Type] = ch.clamp(val)
	}
	drv := v.driver
	v.mu.Unlock()

	if err := drv.ApplyChannels(ctx, v.id, byType); err != nil {
		return fmt.Errorf("applying channels of %s: %w", v.id, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	for idx, val := range targets {
		if ch, err := v.output.Channel(idx); err == nil {
			ch.confirm(val, now)
		}
	}
	return nil
}

// UpdateChannelValue records a value the hardware reports on its own, for
// example after a local switch. The push tree is nil unless the output has
// pushChanges set.
func (v *Vdsd) UpdateChannelValue(index int, value float64) ([]*property.Element, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.output == nil {
		return nil, ErrNoOutput
	}
	ch, err := v.output.Channel(index)
	if err != nil {
		return nil, err
	}
	now := v.now()
	ch.confirm(value, now)
	if !v.output.PushChanges {
		return nil, nil
	}
	return []*property.Element{
		property.Array("channelStates", channelStateElement(ch, now)),
	}, nil
}

// UpdateSensorValue records a measurement and returns its push tree.
func (v *Vdsd) UpdateSensorValue(index int, value float64) ([]*property.Element, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sensors[index]
	if !ok {
		return nil, fmt.Errorf("%w: sensor %d", ErrInputNotFound, index)
	}
	now := v.now()
	s.value = value
	s.touch(now)
	return []*property.Element{
		property.Array("sensorStates", sensorStateElement(s, now)),
	}, nil
}

// UpdateBinaryInput records a binary input state and returns its push tree.
func (v *Vdsd) UpdateBinaryInput(index int, value bool) ([]*property.Element, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bi, ok := v.binaryInputs[index]
	if !ok {
		return nil, fmt.Errorf("%w: binary input %d", ErrInputNotFound, index)
	}
	now := v.now()
	bi.value = value
	bi.extended = nil
	bi.touch(now)
	return []*property.Element{
		property.Array("binaryInputStates", binaryInputStateElement(bi, now)),
	}, nil
}

// ButtonClick records a button gesture and returns its push tree.
func (v *Vdsd) ButtonClick(index int, click ClickType) ([]*property.Element, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.buttons[index]
	if !ok {
		return nil, fmt.Errorf("%w: button %d", ErrInputNotFound, index)
	}
	now := v.now()
	b.clickType = click
	b.value = click != ClickHoldEnd && click != ClickIdle
	b.touch(now)
	return []*property.Element{
		property.Array("buttonInputStates", buttonStateElement(b, now)),
	}, nil
}

func sortedKeys[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
