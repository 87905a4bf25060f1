package vdcapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Envelope errors.
var (
	ErrMessageUnknown    = errors.New("vdcapi: unknown message type")
	ErrMissingSubmessage = errors.New("vdcapi: missing submessage")
	ErrPayloadMismatch   = errors.New("vdcapi: submessage does not match message type")
	ErrMalformed         = errors.New("vdcapi: malformed message")
	ErrNilPayload        = errors.New("vdcapi: envelope has no payload")
)

// Protocol errors returned by handlers.
var (
	ErrIncompatibleAPI     = errors.New("incompatible API version")
	ErrServiceNotAvailable = errors.New("service not available")
	ErrNotImplemented      = errors.New("not implemented")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInsufficientStorage = errors.New("insufficient storage")
)

// DecodeError is a structural decode failure. MessageID and Type are set
// when the envelope header could be read.
type DecodeError struct {
	MessageID uint32
	Type      MessageType
	Err       error
}

func (e *DecodeError) Error() string {
	if e.Type == 0 {
		return fmt.Sprintf("decoding message: %v", e.Err)
	}
	return fmt.Sprintf("decoding %s (id %d): %v", e.Type, e.MessageID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResultError carries an explicit result code.
type ResultError struct {
	Code        ResultCode
	Description string
}

func (e *ResultError) Error() string {
	if e.Description == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Description
}

// Errorf returns a *ResultError with a formatted description.
func Errorf(code ResultCode, format string, args ...any) error {
	return &ResultError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// ResultFromError maps err onto a result code. A nil error is ErrOK;
// anything unrecognised is ERR_MESSAGE_UNKNOWN.
func ResultFromError(err error) ResultCode {
	if err == nil {
		return ErrOK
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code
	}

	switch {
	case errors.Is(err, ErrMessageUnknown):
		return ErrCodeMessageUnknown
	case errors.Is(err, ErrMissingSubmessage), errors.Is(err, ErrPayloadMismatch):
		return ErrCodeMissingSubmsg
	case errors.Is(err, ErrIncompatibleAPI):
		return ErrCodeIncompatibleAPI
	case errors.Is(err, ErrServiceNotAvailable):
		return ErrCodeServiceNotAvail
	case errors.Is(err, ErrNotImplemented):
		return ErrCodeNotImplemented
	case errors.Is(err, ErrNotAuthorized):
		return ErrCodeNotAuthorized
	case errors.Is(err, ErrInsufficientStorage):
		return ErrCodeInsufficientSto
	case errors.Is(err, property.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, property.ErrNoContentForArray):
		return ErrCodeNoContentForArr
	case errors.Is(err, property.ErrInvalidValueType),
		errors.Is(err, property.ErrMalformed),
		errors.Is(err, ErrMalformed):
		return ErrCodeInvalidValueTyp
	case errors.Is(err, property.ErrMissingData):
		return ErrCodeMissingData
	case errors.Is(err, property.ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, dsuid.ErrInvalidLength), errors.Is(err, dsuid.ErrInvalidHex):
		return ErrCodeNotFound
	}
	return ErrCodeMessageUnknown
}

// Response builds the GenericResponse for err.
func Response(err error) *GenericResponse {
	if err == nil {
		return &GenericResponse{Code: ErrOK}
	}
	if re := (*ResultError)(nil); errors.As(err, &re) {
		return &GenericResponse{Code: re.Code, Description: re.Description}
	}
	return &GenericResponse{Code: ResultFromError(err), Description: err.Error()}
}

// PathResults converts unresolved query paths into their wire form.
func PathResults(errs []*property.PathError) []PathResult {
	if len(errs) == 0 {
		return nil
	}
	out := make([]PathResult, 0, len(errs))
	for _, pe := range errs {
		out = append(out, PathResult{
			Path:        strings.Join(pe.Path, "/"),
			Code:        ResultFromError(pe),
			Description: pe.Err.Error(),
		})
	}
	return out
}
