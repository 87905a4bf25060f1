package device

import (
	"context"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Driver carries output-side effects to the hardware behind a vdSD.
//
// Implementations must be safe for concurrent use. A Driver call never
// runs while the vdSD lock is held, so it may call back into the vdSD.
type Driver interface {
	// ApplyChannels drives the hardware to the given values keyed by
	// channel type. The values are confirmed on the vdSD only when it
	// returns nil.
	ApplyChannels(ctx context.Context, id dsuid.DSUID, values map[ChannelType]float64) error

	// Identify makes the device signal itself, for example by blinking.
	Identify(ctx context.Context, id dsuid.DSUID) error

	// SetControlValue forwards a named control value such as heatingLevel.
	SetControlValue(ctx context.Context, id dsuid.DSUID, name string, value float64) error
}

// MethodDriver is implemented by drivers that answer generic requests.
// The parameters and result are free-form property trees.
type MethodDriver interface {
	CallMethod(ctx context.Context, id dsuid.DSUID, name string, params []*property.Element) ([]*property.Element, error)
}

type noopDriver struct{}

func (noopDriver) ApplyChannels(context.Context, dsuid.DSUID, map[ChannelType]float64) error {
	return nil
}
func (noopDriver) Identify(context.Context, dsuid.DSUID) error { return nil }
func (noopDriver) SetControlValue(context.Context, dsuid.DSUID, string, float64) error {
	return nil
}
