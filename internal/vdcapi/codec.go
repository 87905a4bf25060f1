package vdcapi

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Envelope fields of the protobuf Message record.
const (
	fieldType      protowire.Number = 1
	fieldMessageID protowire.Number = 2
)

type variant struct {
	num protowire.Number
	new func() Payload
}

// variants maps each message type to its submessage field.
var variants = map[MessageType]variant{
	TypeGenericResponse:          {3, func() Payload { return new(GenericResponse) }},
	TypeVdsmRequestHello:         {100, func() Payload { return new(RequestHello) }},
	TypeVdcResponseHello:         {101, func() Payload { return new(ResponseHello) }},
	TypeVdsmRequestGetProperty:   {102, func() Payload { return new(RequestGetProperty) }},
	TypeVdcResponseGetProperty:   {103, func() Payload { return new(ResponseGetProperty) }},
	TypeVdsmRequestSetProperty:   {104, func() Payload { return new(RequestSetProperty) }},
	TypeVdsmSendPing:             {105, func() Payload { return new(SendPing) }},
	TypeVdcSendPong:              {106, func() Payload { return new(SendPong) }},
	TypeVdcSendAnnounceDevice:    {107, func() Payload { return new(SendAnnounceDevice) }},
	TypeVdcSendVanish:            {108, func() Payload { return new(SendVanish) }},
	TypeVdcSendPushProperty:      {109, func() Payload { return new(SendPushProperty) }},
	TypeVdsmSendRemove:           {110, func() Payload { return new(SendRemove) }},
	TypeVdsmSendBye:              {111, func() Payload { return new(SendBye) }},
	TypeVdcSendAnnounceVdc:       {112, func() Payload { return new(SendAnnounceVdc) }},
	TypeVdcSendIdentify:          {113, func() Payload { return new(SendIdentify) }},
	TypeVdsmRequestGenericReq:    {114, func() Payload { return new(RequestGenericRequest) }},
	TypeVdsmNotifyCallScene:      {200, func() Payload { return new(NotificationCallScene) }},
	TypeVdsmNotifySaveScene:      {201, func() Payload { return new(NotificationSaveScene) }},
	TypeVdsmNotifyUndoScene:      {202, func() Payload { return new(NotificationUndoScene) }},
	TypeVdsmNotifySetLocalPrio:   {203, func() Payload { return new(NotificationSetLocalPrio) }},
	TypeVdsmNotifyCallMinScene:   {204, func() Payload { return new(NotificationCallMinScene) }},
	TypeVdsmNotifyIdentify:       {205, func() Payload { return new(NotificationIdentify) }},
	TypeVdsmNotifySetCtrlValue:   {206, func() Payload { return new(NotificationSetControlValue) }},
	TypeVdsmNotifyDimChannel:     {207, func() Payload { return new(NotificationDimChannel) }},
	TypeVdsmNotifySetOutputChVal: {208, func() Payload { return new(NotificationSetOutputChannelValue) }},
}

// submessageFields is the reverse of variants.
var submessageFields = func() map[protowire.Number]MessageType {
	m := make(map[protowire.Number]MessageType, len(variants))
	for t, v := range variants {
		m[v.num] = t
	}
	return m
}()

// Encode serializes env into a protobuf Message record.
func Encode(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, ErrNilPayload
	}
	t := env.Payload.Type()
	v, ok := variants[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageUnknown, t)
	}

	b := appendVarint(nil, fieldType, uint64(t))
	if env.MessageID != 0 {
		b = appendVarint(b, fieldMessageID, uint64(env.MessageID))
	}
	return appendBytes(b, v.num, env.Payload.marshal(nil)), nil
}

// Decode parses a protobuf Message record.
//
// Structural failures are returned as *DecodeError so the caller can still
// answer by message ID.
func Decode(b []byte) (Envelope, error) {
	fields, err := parseFields(b)
	if err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}

	var (
		t    MessageType
		id   uint32
		subs = make(map[protowire.Number][]byte)
	)
	for _, f := range fields {
		switch {
		case f.num == fieldType:
			v, err := f.int32()
			if err != nil {
				return Envelope{}, &DecodeError{Err: err}
			}
			t = MessageType(v)
		case f.num == fieldMessageID:
			if id, err = f.uint32(); err != nil {
				return Envelope{}, &DecodeError{Err: err}
			}
		case f.typ == protowire.BytesType:
			if _, known := submessageFields[f.num]; known {
				subs[f.num] = f.b
			}
		}
	}

	v, ok := variants[t]
	if !ok {
		return Envelope{}, &DecodeError{MessageID: id, Type: t, Err: ErrMessageUnknown}
	}
	sub, present := subs[v.num]
	for num := range subs {
		if num != v.num {
			return Envelope{}, &DecodeError{
				MessageID: id,
				Type:      t,
				Err:       fmt.Errorf("%w: %s carries %s", ErrPayloadMismatch, t, submessageFields[num]),
			}
		}
	}
	if !present {
		return Envelope{}, &DecodeError{MessageID: id, Type: t, Err: ErrMissingSubmessage}
	}

	p := v.new()
	if err := p.unmarshal(sub); err != nil {
		return Envelope{}, &DecodeError{MessageID: id, Type: t, Err: err}
	}
	return Envelope{MessageID: id, Payload: p}, nil
}

// reader accumulates the first decode error so unmarshal bodies stay flat.
type reader struct{ err error }

func (r *reader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) uint32(f field) uint32 { v, err := f.uint32(); r.keep(err); return v }
func (r *reader) int32(f field) int32   { v, err := f.int32(); r.keep(err); return v }
func (r *reader) bool(f field) bool { v, err := f.bool(); r.keep(err); return v }
func (r *reader) double(f field) float64 {
	v, err := f.double()
	r.keep(err)
	return v
}
func (r *reader) string(f field) string { v, err := f.string(); r.keep(err); return v }
func (r *reader) optInt32(f field) *int32 {
	v, err := f.optInt32()
	r.keep(err)
	return v
}
func (r *reader) dsuid(f field) dsuid.DSUID {
	v, err := f.dsuid()
	r.keep(err)
	return v
}
// element decodes one top-level property element. A node carrying both a
// value and children is rejected here, once for the whole subtree.
func (r *reader) element(f field) *property.Element {
	v, err := f.element()
	if err == nil {
		err = v.Validate()
	}
	r.keep(err)
	return v
}

func decodeFields(b []byte, fn func(r *reader, f field)) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	r := &reader{}
	for _, f := range fields {
		fn(r, f)
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

// decodeSingleDSUID handles the messages whose only field is dSUID=1.
func decodeSingleDSUID(b []byte, id *dsuid.DSUID) error {
	return decodeFields(b, func(r *reader, f field) {
		if f.num == 1 {
			*id = r.dsuid(f)
		}
	})
}

func (m *GenericResponse) marshal(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Code))
	if m.Description != "" {
		b = appendString(b, 2, m.Description)
	}
	return b
}

func (m *GenericResponse) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.Code = ResultCode(r.int32(f))
		case 2:
			m.Description = r.string(f)
		}
	})
}

func (m *RequestHello) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	return appendVarint(b, 2, uint64(m.APIVersion))
}

func (m *RequestHello) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.APIVersion = r.uint32(f)
		}
	})
}

func (m *ResponseHello) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *ResponseHello) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }

func (m *RequestGetProperty) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	return appendElements(b, 2, m.Query)
}

func (m *RequestGetProperty) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.Query = append(m.Query, r.element(f))
		}
	})
}

func (m *ResponseGetProperty) marshal(b []byte) []byte {
	b = appendElements(b, 1, m.Properties)
	for _, pr := range m.Errors {
		b = appendBytes(b, 2, pr.marshal(nil))
	}
	return b
}

func (m *ResponseGetProperty) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.Properties = append(m.Properties, r.element(f))
		case 2:
			var pr PathResult
			if err := f.want(protowire.BytesType); err != nil {
				r.keep(err)
				return
			}
			r.keep(pr.unmarshal(f.b))
			m.Errors = append(m.Errors, pr)
		}
	})
}

// PathResult: path=1, code=2, description=3.
func (pr *PathResult) marshal(b []byte) []byte {
	b = appendString(b, 1, pr.Path)
	b = appendInt32(b, 2, int32(pr.Code))
	if pr.Description != "" {
		b = appendString(b, 3, pr.Description)
	}
	return b
}

func (pr *PathResult) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			pr.Path = r.string(f)
		case 2:
			pr.Code = ResultCode(r.int32(f))
		case 3:
			pr.Description = r.string(f)
		}
	})
}

func (m *RequestSetProperty) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	return appendElements(b, 2, m.Properties)
}

func (m *RequestSetProperty) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.Properties = append(m.Properties, r.element(f))
		}
	})
}

func (m *RequestGenericRequest) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	b = appendString(b, 2, m.MethodName)
	return appendElements(b, 3, m.Params)
}

func (m *RequestGenericRequest) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.MethodName = r.string(f)
		case 3:
			m.Params = append(m.Params, r.element(f))
		}
	})
}

func (m *SendPing) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendPing) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendPong) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendPong) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendAnnounceVdc) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendAnnounceVdc) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendVanish) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendVanish) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendIdentify) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendIdentify) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendRemove) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendRemove) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }
func (m *SendBye) marshal(b []byte) []byte { return appendDSUID(b, 1, m.DSUID) }
func (m *SendBye) unmarshal(b []byte) error { return decodeSingleDSUID(b, &m.DSUID) }

func (m *SendAnnounceDevice) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	return appendDSUID(b, 2, m.VdcDSUID)
}

func (m *SendAnnounceDevice) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.VdcDSUID = r.dsuid(f)
		}
	})
}

func (m *SendPushProperty) marshal(b []byte) []byte {
	b = appendDSUID(b, 1, m.DSUID)
	b = appendElements(b, 2, m.ChangedProperties)
	return appendElements(b, 3, m.DeviceEvents)
}

func (m *SendPushProperty) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUID = r.dsuid(f)
		case 2:
			m.ChangedProperties = append(m.ChangedProperties, r.element(f))
		case 3:
			m.DeviceEvents = append(m.DeviceEvents, r.element(f))
		}
	})
}

// CallScene: dSUID=1, scene=2, force=3, group=4, zone_id=5.
func (m *NotificationCallScene) marshal(b []byte) []byte {
	b = appendDSUIDs(b, 1, m.DSUIDs)
	b = appendInt32(b, 2, m.Scene)
	b = appendBool(b, 3, m.Force)
	b = appendOptInt32(b, 4, m.Group)
	return appendOptInt32(b, 5, m.ZoneID)
}

func (m *NotificationCallScene) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUIDs = append(m.DSUIDs, r.dsuid(f))
		case 2:
			m.Scene = r.int32(f)
		case 3:
			m.Force = r.bool(f)
		case 4:
			m.Group = r.optInt32(f)
		case 5:
			m.ZoneID = r.optInt32(f)
		}
	})
}

// Save, undo, local priority and min scene share dSUID=1, scene=2,
// group=3, zone_id=4.
func marshalSceneOp(b []byte, ids []dsuid.DSUID, scene int32, flt Filter) []byte {
	b = appendDSUIDs(b, 1, ids)
	b = appendInt32(b, 2, scene)
	b = appendOptInt32(b, 3, flt.Group)
	return appendOptInt32(b, 4, flt.ZoneID)
}

func unmarshalSceneOp(b []byte, ids *[]dsuid.DSUID, scene *int32, flt *Filter) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			*ids = append(*ids, r.dsuid(f))
		case 2:
			*scene = r.int32(f)
		case 3:
			flt.Group = r.optInt32(f)
		case 4:
			flt.ZoneID = r.optInt32(f)
		}
	})
}

func (m *NotificationSaveScene) marshal(b []byte) []byte {
	return marshalSceneOp(b, m.DSUIDs, m.Scene, m.Filter)
}

func (m *NotificationSaveScene) unmarshal(b []byte) error {
	return unmarshalSceneOp(b, &m.DSUIDs, &m.Scene, &m.Filter)
}

func (m *NotificationUndoScene) marshal(b []byte) []byte {
	return marshalSceneOp(b, m.DSUIDs, m.Scene, m.Filter)
}

func (m *NotificationUndoScene) unmarshal(b []byte) error {
	return unmarshalSceneOp(b, &m.DSUIDs, &m.Scene, &m.Filter)
}

func (m *NotificationSetLocalPrio) marshal(b []byte) []byte {
	return marshalSceneOp(b, m.DSUIDs, m.Scene, m.Filter)
}

func (m *NotificationSetLocalPrio) unmarshal(b []byte) error {
	return unmarshalSceneOp(b, &m.DSUIDs, &m.Scene, &m.Filter)
}

func (m *NotificationCallMinScene) marshal(b []byte) []byte {
	return marshalSceneOp(b, m.DSUIDs, m.Scene, m.Filter)
}

func (m *NotificationCallMinScene) unmarshal(b []byte) error {
	return unmarshalSceneOp(b, &m.DSUIDs, &m.Scene, &m.Filter)
}

// Identify: dSUID=1, group=2, zone_id=3.
func (m *NotificationIdentify) marshal(b []byte) []byte {
	b = appendDSUIDs(b, 1, m.DSUIDs)
	b = appendOptInt32(b, 2, m.Group)
	return appendOptInt32(b, 3, m.ZoneID)
}

func (m *NotificationIdentify) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUIDs = append(m.DSUIDs, r.dsuid(f))
		case 2:
			m.Group = r.optInt32(f)
		case 3:
			m.ZoneID = r.optInt32(f)
		}
	})
}

// SetControlValue: dSUID=1, name=2, value=3, group=4, zone_id=5.
func (m *NotificationSetControlValue) marshal(b []byte) []byte {
	b = appendDSUIDs(b, 1, m.DSUIDs)
	b = appendString(b, 2, m.Name)
	b = appendDouble(b, 3, m.Value)
	b = appendOptInt32(b, 4, m.Group)
	return appendOptInt32(b, 5, m.ZoneID)
}

func (m *NotificationSetControlValue) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUIDs = append(m.DSUIDs, r.dsuid(f))
		case 2:
			m.Name = r.string(f)
		case 3:
			m.Value = r.double(f)
		case 4:
			m.Group = r.optInt32(f)
		case 5:
			m.ZoneID = r.optInt32(f)
		}
	})
}

// DimChannel: dSUID=1, channel=2, mode=3, area=4, group=5, zone_id=6,
// channelId=7.
func (m *NotificationDimChannel) marshal(b []byte) []byte {
	b = appendDSUIDs(b, 1, m.DSUIDs)
	b = appendInt32(b, 2, m.Channel)
	b = appendInt32(b, 3, int32(m.Mode))
	b = appendInt32(b, 4, m.Area)
	b = appendOptInt32(b, 5, m.Group)
	b = appendOptInt32(b, 6, m.ZoneID)
	if m.ChannelID != "" {
		b = appendString(b, 7, m.ChannelID)
	}
	return b
}

func (m *NotificationDimChannel) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUIDs = append(m.DSUIDs, r.dsuid(f))
		case 2:
			m.Channel = r.int32(f)
		case 3:
			m.Mode = DimMode(r.int32(f))
		case 4:
			m.Area = r.int32(f)
		case 5:
			m.Group = r.optInt32(f)
		case 6:
			m.ZoneID = r.optInt32(f)
		case 7:
			m.ChannelID = r.string(f)
		}
	})
}

// SetOutputChannelValue: dSUID=1, apply_now=2, channel=3, value=4,
// channelId=5.
func (m *NotificationSetOutputChannelValue) marshal(b []byte) []byte {
	b = appendDSUIDs(b, 1, m.DSUIDs)
	b = appendBool(b, 2, m.ApplyNow)
	b = appendInt32(b, 3, m.Channel)
	b = appendDouble(b, 4, m.Value)
	if m.ChannelID != "" {
		b = appendString(b, 5, m.ChannelID)
	}
	return b
}

func (m *NotificationSetOutputChannelValue) unmarshal(b []byte) error {
	return decodeFields(b, func(r *reader, f field) {
		switch f.num {
		case 1:
			m.DSUIDs = append(m.DSUIDs, r.dsuid(f))
		case 2:
			m.ApplyNow = r.bool(f)
		case 3:
			m.Channel = r.int32(f)
		case 4:
			m.Value = r.double(f)
		case 5:
			m.ChannelID = r.string(f)
		}
	})
}

// IsStructural reports whether err came from envelope structure rather
// than from message content.
func IsStructural(err error) bool {
	return errors.Is(err, ErrMessageUnknown) ||
		errors.Is(err, ErrMissingSubmessage) ||
		errors.Is(err, ErrPayloadMismatch)
}
