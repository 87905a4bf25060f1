package device

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is the persisted, user-editable part of a vdSD. Descriptions and
// volatile states are rebuilt from the driver on startup.
type Record struct {
	DSUID        string `cbor:"dsuid"`
	DeviceDSUID  string `cbor:"device_dsuid"`
	Name         string `cbor:"name"`
	ZoneID       int    `cbor:"zone_id"`
	PrimaryGroup int    `cbor:"primary_group"`

	Output       *OutputRecord       `cbor:"output,omitempty"`
	Buttons      map[int]InputRecord `cbor:"buttons,omitempty"`
	BinaryInputs map[int]InputRecord `cbor:"binary_inputs,omitempty"`
	Sensors      map[int]InputRecord `cbor:"sensors,omitempty"`

	UpdatedAt time.Time `cbor:"updated_at"`
}

// OutputRecord holds the output settings and the scene table.
type OutputRecord struct {
	Mode                    OutputMode        `cbor:"mode"`
	ActiveGroup             int               `cbor:"active_group"`
	PushChanges             bool              `cbor:"push_changes"`
	Groups                  []int             `cbor:"groups"`
	OnThreshold             *float64          `cbor:"on_threshold,omitempty"`
	MinBrightness           *float64          `cbor:"min_brightness,omitempty"`
	DimTimes                map[string]uint64 `cbor:"dim_times,omitempty"`
	HeatingSystemCapability *int              `cbor:"heating_system_capability,omitempty"`
	HeatingSystemType       *int              `cbor:"heating_system_type,omitempty"`
	Scenes                  map[int]*Scene    `cbor:"scenes"`
}

// InputRecord holds the settings of one button, binary input or sensor.
type InputRecord struct {
	Group               int     `cbor:"group"`
	Function            int     `cbor:"function,omitempty"`
	Mode                int     `cbor:"mode,omitempty"`
	Channel             int     `cbor:"channel,omitempty"`
	SetsLocalPriority   bool    `cbor:"sets_local_priority,omitempty"`
	CallsPresent        bool    `cbor:"calls_present,omitempty"`
	MinPushInterval     float64 `cbor:"min_push_interval,omitempty"`
	ChangesOnlyInterval float64 `cbor:"changes_only_interval,omitempty"`
}

var (
	recordEnc cbor.EncMode
	recordDec cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	recordEnc, err = encOptions.EncMode()
	if err != nil {
		panic("device: CBOR encoder initialization failed: " + err.Error())
	}
	recordDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("device: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalRecord encodes r with deterministic CBOR.
func MarshalRecord(r *Record) ([]byte, error) {
	b, err := recordEnc.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", r.DSUID, err)
	}
	return b, nil
}

// UnmarshalRecord decodes a record written by MarshalRecord.
func UnmarshalRecord(b []byte) (*Record, error) {
	var r Record
	if err := recordDec.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &r, nil
}

// Record captures the persistent settings of v.
func (v *Vdsd) Record(deviceID string) *Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	r := &Record{
		DSUID:        v.id.String(),
		DeviceDSUID:  deviceID,
		Name:         v.name,
		ZoneID:       v.zoneID,
		PrimaryGroup: v.group,
		UpdatedAt:    v.now().UTC(),
	}
	if o := v.output; o != nil {
		or := &OutputRecord{
			Mode:                    o.Mode,
			ActiveGroup:             o.ActiveGroup,
			PushChanges:             o.PushChanges,
			OnThreshold:             o.OnThreshold,
			MinBrightness:           o.MinBrightness,
			DimTimes:                make(map[string]uint64, len(o.DimTimes)),
			HeatingSystemCapability: o.HeatingSystemCapability,
			HeatingSystemType:       o.HeatingSystemType,
			Scenes:                  make(map[int]*Scene, len(o.scenes)),
		}
		for k, t := range o.DimTimes {
			or.DimTimes[k] = t
		}
		for g, on := range o.Groups {
			if on {
				or.Groups = append(or.Groups, g)
			}
		}
		sort.Ints(or.Groups)
		for nr, s := range o.scenes {
			or.Scenes[nr] = s.clone()
		}
		r.Output = or
	}
	if len(v.buttons) > 0 {
		r.Buttons = make(map[int]InputRecord, len(v.buttons))
		for idx, b := range v.buttons {
			r.Buttons[idx] = InputRecord{
				Group: b.Group, Function: b.Function, Mode: b.Mode, Channel: b.Channel,
				SetsLocalPriority: b.SetsLocalPriority, CallsPresent: b.CallsPresent,
			}
		}
	}
	if len(v.binaryInputs) > 0 {
		r.BinaryInputs = make(map[int]InputRecord, len(v.binaryInputs))
		for idx, bi := range v.binaryInputs {
			r.BinaryInputs[idx] = InputRecord{
				Group: bi.Group, Function: bi.SensorFunction,
				MinPushInterval: bi.MinPushInterval, ChangesOnlyInterval: bi.ChangesOnlyInterval,
			}
		}
	}
	if len(v.sensors) > 0 {
		r.Sensors = make(map[int]InputRecord, len(v.sensors))
		for idx, s := range v.sensors {
			r.Sensors[idx] = InputRecord{
				Group: s.Group, MinPushInterval: s.MinPushInterval, ChangesOnlyInterval: s.ChangesOnlyInterval,
			}
		}
	}
	return r
}

// Restore applies persisted settings. Entries for inputs or channels that
// no longer exist are ignored.
func (v *Vdsd) Restore(r *Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.name = r.Name
	v.zoneID = r.ZoneID
	v.group = r.PrimaryGroup

	if o, or := v.output, r.Output; o != nil && or != nil {
		o.Mode = or.Mode
		o.ActiveGroup = or.ActiveGroup
		o.PushChanges = or.PushChanges
		o.OnThreshold = or.OnThreshold
		o.MinBrightness = or.MinBrightness
		o.HeatingSystemCapability = or.HeatingSystemCapability
		o.HeatingSystemType = or.HeatingSystemType
		o.DimTimes = make(map[string]uint64, len(or.DimTimes))
		for k, t := range or.DimTimes {
			o.DimTimes[k] = t
		}
		o.Groups = make(map[int]bool, len(or.Groups))
		for _, g := range or.Groups {
			o.Groups[g] = true
		}
		for nr, s := range or.Scenes {
			if nr < 0 || nr > MaxScene || s == nil {
				continue
			}
			restored := s.clone()
			for idx := range restored.Channels {
				if idx >= len(o.channels) {
					delete(restored.Channels, idx)
				}
			}
			o.scenes[nr] = restored
		}
	}
	for idx, ir := range r.Buttons {
		if b, ok := v.buttons[idx]; ok {
			b.Group, b.Function, b.Mode, b.Channel = ir.Group, ir.Function, ir.Mode, ir.Channel
			b.SetsLocalPriority, b.CallsPresent = ir.SetsLocalPriority, ir.CallsPresent
		}
	}
	for idx, ir := range r.BinaryInputs {
		if bi, ok := v.binaryInputs[idx]; ok {
			bi.Group, bi.SensorFunction = ir.Group, ir.Function
			bi.MinPushInterval, bi.ChangesOnlyInterval = ir.MinPushInterval, ir.ChangesOnlyInterval
		}
	}
	for idx, ir := range r.Sensors {
		if s, ok := v.sensors[idx]; ok {
			s.Group = ir.Group
			s.MinPushInterval, s.ChangesOnlyInterval = ir.MinPushInterval, ir.ChangesOnlyInterval
		}
	}
}
