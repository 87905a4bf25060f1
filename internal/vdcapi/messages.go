package vdcapi

import (
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Envelope is one protocol message.
type Envelope struct {
	// MessageID correlates a request with its response. Notifications
	// carry 0.
	MessageID uint32
	Payload   Payload
}

// Type returns the type of the carried payload, or 0 without one.
func (e Envelope) Type() MessageType {
	if e.Payload == nil {
		return 0
	}
	return e.Payload.Type()
}

// Payload is implemented only by the message structs of this package.
type Payload interface {
	Type() MessageType
	marshal(b []byte) []byte
	unmarshal(b []byte) error
}

// GenericResponse answers requests that have no dedicated response type.
type GenericResponse struct {
	Code        ResultCode
	Description string
}

// RequestHello opens a session.
type RequestHello struct {
	DSUID      dsuid.DSUID
	APIVersion uint32
}

// ResponseHello accepts a session and names the host.
type ResponseHello struct {
	DSUID dsuid.DSUID
}

// RequestGetProperty queries the property tree of DSUID.
type RequestGetProperty struct {
	DSUID dsuid.DSUID
	Query []*property.Element
}

// ResponseGetProperty carries the answer to a RequestGetProperty. Errors
// lists the queried paths that could not be resolved; each of them is
// still present in Properties as an empty element.
type ResponseGetProperty struct {
	Properties []*property.Element
	Errors     []PathResult
}

// PathResult tells why one queried path produced no content.
type PathResult struct {
	Path        string
	Code        ResultCode
	Description string
}

// RequestSetProperty writes a patch into the property tree of DSUID.
type RequestSetProperty struct {
	DSUID      dsuid.DSUID
	Properties []*property.Element
}

// RequestGenericRequest invokes a named method on DSUID.
type RequestGenericRequest struct {
	DSUID      dsuid.DSUID
	MethodName string
	Params     []*property.Element
}

// SendPing checks liveness of DSUID.
type SendPing struct{ DSUID dsuid.DSUID }

// SendPong answers a SendPing.
type SendPong struct{ DSUID dsuid.DSUID }

// SendAnnounceVdc announces a vDC to the vdSM.
type SendAnnounceVdc struct{ DSUID dsuid.DSUID }

// SendAnnounceDevice announces a vdSD hosted by VdcDSUID.
type SendAnnounceDevice struct {
	DSUID    dsuid.DSUID
	VdcDSUID dsuid.DSUID
}

// SendVanish reports that DSUID is gone.
type SendVanish struct{ DSUID dsuid.DSUID }

// SendIdentify asks the vdSM to identify DSUID to the user.
type SendIdentify struct{ DSUID dsuid.DSUID }

// SendRemove asks the vDC to forget DSUID.
type SendRemove struct{ DSUID dsuid.DSUID }

// SendBye ends the session.
type SendBye struct{ DSUID dsuid.DSUID }

// SendPushProperty reports changed properties and device events of DSUID.
// Either list may be empty.
type SendPushProperty struct {
	DSUID             dsuid.DSUID
	ChangedProperties []*property.Element
	DeviceEvents      []*property.Element
}

// Filter narrows a scene notification to a group and zone. Nil means unset.
type Filter struct {
	Group  *int32
	ZoneID *int32
}

// NotificationCallScene invokes Scene on every target.
type NotificationCallScene struct {
	DSUIDs []dsuid.DSUID
	Scene  int32
	Force  bool
	Filter
}

// NotificationSaveScene stores the current output state as Scene.
type NotificationSaveScene struct {
	DSUIDs []dsuid.DSUID
	Scene  int32
	Filter
}

// NotificationUndoScene reverts Scene if it was the last one called.
type NotificationUndoScene struct {
	DSUIDs []dsuid.DSUID
	Scene  int32
	Filter
}

// NotificationSetLocalPrio sets local priority if Scene is not dontCare.
type NotificationSetLocalPrio struct {
	DSUIDs []dsuid.DSUID
	Scene  int32
	Filter
}

// NotificationCallMinScene invokes Scene only on outputs that are off.
type NotificationCallMinScene struct {
	DSUIDs []dsuid.DSUID
	Scene  int32
	Filter
}

// NotificationIdentify asks every target to identify itself.
type NotificationIdentify struct {
	DSUIDs []dsuid.DSUID
	Filter
}

// NotificationSetControlValue delivers a named control value.
type NotificationSetControlValue struct {
	DSUIDs []dsuid.DSUID
	Name   string
	Value  float64
	Filter
}

// DimMode is the direction of a DimChannel notification.
type DimMode int32

// Dim modes.
const (
	DimStop DimMode = 0
	DimUp   DimMode = 1
	DimDown DimMode = -1
)

// NotificationDimChannel starts or stops dimming a channel.
type NotificationDimChannel struct {
	DSUIDs    []dsuid.DSUID
	Channel   int32
	ChannelID string
	Mode      DimMode
	Area      int32
	Filter
}

// NotificationSetOutputChannelValue sets one channel. Values are buffered
// until a notification with ApplyNow arrives.
type NotificationSetOutputChannelValue struct {
	DSUIDs    []dsuid.DSUID
	ApplyNow  bool
	Channel   int32
	ChannelID string
	Value     float64
}

func (*GenericResponse) Type() MessageType { return TypeGenericResponse }
func (*RequestHello) Type() MessageType { return TypeVdsmRequestHello }
func (*ResponseHello) Type() MessageType { return TypeVdcResponseHello }
func (*RequestGetProperty) Type() MessageType { return TypeVdsmRequestGetProperty }
func (*ResponseGetProperty) Type() MessageType { return TypeVdcResponseGetProperty }
func (*RequestSetProperty) Type() MessageType { return TypeVdsmRequestSetProperty }
func (*RequestGenericRequest) Type() MessageType { return TypeVdsmRequestGenericReq }
func (*SendPing) Type() MessageType { return TypeVdsmSendPing }
func (*SendPong) Type() MessageType { return TypeVdcSendPong }
func (*SendAnnounceVdc) Type() MessageType { return TypeVdcSendAnnounceVdc }
func (*SendAnnounceDevice) Type() MessageType { return TypeVdcSendAnnounceDevice }
func (*SendVanish) Type() MessageType { return TypeVdcSendVanish }
func (*SendIdentify) Type() MessageType { return TypeVdcSendIdentify }
func (*SendRemove) Type() MessageType { return TypeVdsmSendRemove }
func (*SendBye) Type() MessageType { return TypeVdsmSendBye }
func (*SendPushProperty) Type() MessageType { return TypeVdcSendPushProperty }
func (*NotificationCallScene) Type() MessageType { return TypeVdsmNotifyCallScene }
func (*NotificationSaveScene) Type() MessageType { return TypeVdsmNotifySaveScene }
func (*NotificationUndoScene) Type() MessageType { return TypeVdsmNotifyUndoScene }
func (*NotificationSetLocalPrio) Type() MessageType { return TypeVdsmNotifySetLocalPrio }
func (*NotificationCallMinScene) Type() MessageType { return TypeVdsmNotifyCallMinScene }
func (*NotificationIdentify) Type() MessageType { return TypeVdsmNotifyIdentify }
func (*NotificationSetControlValue) Type() MessageType { return TypeVdsmNotifySetCtrlValue }
func (*NotificationDimChannel) Type() MessageType { return TypeVdsmNotifyDimChannel }
func (*NotificationSetOutputChannelValue) Type() MessageType { return TypeVdsmNotifySetOutputChVal }

// IsRequest reports whether messages of type t expect a response.
func (t MessageType) IsRequest() bool {
	switch t {
	case TypeVdsmRequestHello, TypeVdsmRequestGetProperty, TypeVdsmRequestSetProperty,
		TypeVdsmRequestGenericReq, TypeVdsmSendRemove, TypeVdcSendAnnounceDevice,
		TypeVdcSendAnnounceVdc:
		return true
	}
	return false
}

// IsNotification reports whether t is one of the vdSM-to-vdSD notifications.
func (t MessageType) IsNotification() bool {
	switch t {
	case TypeVdsmNotifyCallScene, TypeVdsmNotifySaveScene, TypeVdsmNotifyUndoScene,
		TypeVdsmNotifySetLocalPrio, TypeVdsmNotifyCallMinScene, TypeVdsmNotifyIdentify,
		TypeVdsmNotifySetCtrlValue, TypeVdsmNotifyDimChannel, TypeVdsmNotifySetOutputChVal:
		return true
	}
	return false
}

// Targets returns the dSUIDs a notification payload addresses, or nil for
// other payloads.
func Targets(p Payload) []dsuid.DSUID {
	switch m := p.(type) {
	case *NotificationCallScene:
		return m.DSUIDs
	case *NotificationSaveScene:
		return m.DSUIDs
	case *NotificationUndoScene:
		return m.DSUIDs
	case *NotificationSetLocalPrio:
		return m.DSUIDs
	case *NotificationCallMinScene:
		return m.DSUIDs
	case *NotificationIdentify:
		return m.DSUIDs
	case *NotificationSetControlValue:
		return m.DSUIDs
	case *NotificationDimChannel:
		return m.DSUIDs
	case *NotificationSetOutputChannelValue:
		return m.DSUIDs
	}
	return nil
}
