package vdcapi

import "fmt"

// MessageType is the envelope discriminator.
type MessageType int32

// Message type catalog.
const (
	TypeGenericResponse MessageType = 1

	TypeVdsmRequestHello         MessageType = 2
	TypeVdcResponseHello         MessageType = 3
	TypeVdsmRequestGetProperty   MessageType = 4
	TypeVdcResponseGetProperty   MessageType = 5
	TypeVdsmRequestSetProperty   MessageType = 6
	TypeVdsmSendPing             MessageType = 8
	TypeVdcSendPong              MessageType = 9
	TypeVdcSendAnnounceDevice    MessageType = 10
	TypeVdcSendVanish            MessageType = 11
	TypeVdcSendPushProperty      MessageType = 12
	TypeVdsmSendRemove           MessageType = 13
	TypeVdsmSendBye              MessageType = 14
	TypeVdsmNotifyCallScene      MessageType = 15
	TypeVdsmNotifySaveScene      MessageType = 16
	TypeVdsmNotifyUndoScene      MessageType = 17
	TypeVdsmNotifySetLocalPrio   MessageType = 18
	TypeVdsmNotifyCallMinScene   MessageType = 19
	TypeVdsmNotifyIdentify       MessageType = 20
	TypeVdsmNotifySetCtrlValue   MessageType = 21
	TypeVdcSendIdentify          MessageType = 22
	TypeVdcSendAnnounceVdc       MessageType = 23
	TypeVdsmNotifyDimChannel     MessageType = 24
	TypeVdsmNotifySetOutputChVal MessageType = 25
	TypeVdsmRequestGenericReq    MessageType = 26
)

var typeNames = map[MessageType]string{
	TypeGenericResponse:          "GENERIC_RESPONSE",
	TypeVdsmRequestHello:         "VDSM_REQUEST_HELLO",
	TypeVdcResponseHello:         "VDC_RESPONSE_HELLO",
	TypeVdsmRequestGetProperty:   "VDSM_REQUEST_GET_PROPERTY",
	TypeVdcResponseGetProperty:   "VDC_RESPONSE_GET_PROPERTY",
	TypeVdsmRequestSetProperty:   "VDSM_REQUEST_SET_PROPERTY",
	TypeVdsmSendPing:             "VDSM_SEND_PING",
	TypeVdcSendPong:              "VDC_SEND_PONG",
	TypeVdcSendAnnounceDevice:    "VDC_SEND_ANNOUNCE_DEVICE",
	TypeVdcSendVanish:            "VDC_SEND_VANISH",
	TypeVdcSendPushProperty:      "VDC_SEND_PUSH_PROPERTY",
	TypeVdsmSendRemove:           "VDSM_SEND_REMOVE",
	TypeVdsmSendBye:              "VDSM_SEND_BYE",
	TypeVdsmNotifyCallScene:      "VDSM_NOTIFICATION_CALL_SCENE",
	TypeVdsmNotifySaveScene:      "VDSM_NOTIFICATION_SAVE_SCENE",
	TypeVdsmNotifyUndoScene:      "VDSM_NOTIFICATION_UNDO_SCENE",
	TypeVdsmNotifySetLocalPrio:   "VDSM_NOTIFICATION_SET_LOCAL_PRIO",
	TypeVdsmNotifyCallMinScene:   "VDSM_NOTIFICATION_CALL_MIN_SCENE",
	TypeVdsmNotifyIdentify:       "VDSM_NOTIFICATION_IDENTIFY",
	TypeVdsmNotifySetCtrlValue:   "VDSM_NOTIFICATION_SET_CONTROL_VALUE",
	TypeVdcSendIdentify:          "VDC_SEND_IDENTIFY",
	TypeVdcSendAnnounceVdc:       "VDC_SEND_ANNOUNCE_VDC",
	TypeVdsmNotifyDimChannel:     "VDSM_NOTIFICATION_DIM_CHANNEL",
	TypeVdsmNotifySetOutputChVal: "VDSM_NOTIFICATION_SET_OUTPUT_CHANNEL_VALUE",
	TypeVdsmRequestGenericReq:    "VDSM_REQUEST_GENERIC_REQUEST",
}

// String returns the protocol name of the type.
func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int32(t))
}

// Known reports whether t is in the catalog.
func (t MessageType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// ResultCode is the protocol's result taxonomy.
type ResultCode int32

// Result codes.
const (
	ErrOK                  ResultCode = 0
	ErrCodeMessageUnknown  ResultCode = 1
	ErrCodeIncompatibleAPI ResultCode = 2
	ErrCodeServiceNotAvail ResultCode = 3
	ErrCodeInsufficientSto ResultCode = 4
	ErrCodeForbidden       ResultCode = 5
	ErrCodeNotImplemented  ResultCode = 6
	ErrCodeNoContentForArr ResultCode = 7
	ErrCodeInvalidValueTyp ResultCode = 8
	ErrCodeMissingSubmsg   ResultCode = 9
	ErrCodeMissingData     ResultCode = 10
	ErrCodeNotFound        ResultCode = 11
	ErrCodeNotAuthorized   ResultCode = 12
)

var resultNames = [...]string{
	"ERR_OK",
	"ERR_MESSAGE_UNKNOWN",
	"ERR_INCOMPATIBLE_API",
	"ERR_SERVICE_NOT_AVAILABLE",
	"ERR_INSUFFICIENT_STORAGE",
	"ERR_FORBIDDEN",
	"ERR_NOT_IMPLEMENTED",
	"ERR_NO_CONTENT_FOR_ARRAY",
	"ERR_INVALID_VALUE_TYPE",
	"ERR_MISSING_SUBMESSAGE",
	"ERR_MISSING_DATA",
	"ERR_NOT_FOUND",
	"ERR_NOT_AUTHORIZED",
}

// String returns the protocol name of the code.
func (c ResultCode) String() string {
	if c >= 0 && int(c) < len(resultNames) {
		return resultNames[c]
	}
	return fmt.Sprintf("ResultCode(%d)", int32(c))
}
