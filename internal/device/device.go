package device

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/splitting"
)

// Announcer publishes vdSDs to the connected vdSM.
type Announcer interface {
	// AnnounceDevice announces v and waits for the vdSM's answer.
	AnnounceDevice(ctx context.Context, v *Vdsd) error

	// Vanish tells the vdSM that v is gone.
	Vanish(ctx context.Context, v *Vdsd) error
}

// Device is one physical unit holding one or more vdSDs keyed by
// sub-device index. The set of vdSDs only changes while the device is not
// announced; use Update to change an announced device.
type Device struct {
	mu        sync.RWMutex
	base      dsuid.DSUID
	vdc       dsuid.DSUID
	vdsds     map[int]*Vdsd
	announced bool
}

// NewDevice creates an empty device for the vDC vdc.
func NewDevice(base, vdc dsuid.DSUID) *Device {
	return &Device{base: base.Base(), vdc: vdc, vdsds: make(map[int]*Vdsd)}
}

// FromDescription splits d and builds the resulting device. cfg supplies
// the identification shared by every vdSD of the unit.
func FromDescription(d splitting.Description, vdc dsuid.DSUID, cfg Config) (*Device, error) {
	specs, err := splitting.Split(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	base := d.Base
	if base.IsEmpty() && len(specs) > 0 {
		// Detachable units without a unit address are keyed by their first module.
		base = specs[0].DSUID
	}
	dev := NewDevice(base, vdc)
	for _, spec := range specs {
		v, err := FromSpec(spec, cfg)
		if err != nil {
			return nil, err
		}
		if err := dev.AddVdsd(v); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

// Base returns the base dSUID of the unit.
func (d *Device) Base() dsuid.DSUID { return d.base }

// VdcDSUID returns the dSUID of the vDC the device belongs to.
func (d *Device) VdcDSUID() dsuid.DSUID { return d.vdc }

// Announced reports whether the device has been announced.
func (d *Device) Announced() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.announced
}

// AddVdsd adds v under its sub-device index.
func (d *Device) AddVdsd(v *Vdsd) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.announced {
		return ErrAnnounced
	}
	if _, ok := d.vdsds[v.SubIndex()]; ok {
		return fmt.Errorf("%w: sub-device index %d", ErrDeviceExists, v.SubIndex())
	}
	for _, other := range d.vdsds {
		if other.DSUID() == v.DSUID() {
			return fmt.Errorf("%w: %s", ErrDeviceExists, v.DSUID())
		}
	}
	d.vdsds[v.SubIndex()] = v
	return nil
}

// RemoveVdsd removes the vdSD at index.
func (d *Device) RemoveVdsd(index int) (*Vdsd, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.announced {
		return nil, ErrAnnounced
	}
	v, ok := d.vdsds[index]
	if !ok {
		return nil, fmt.Errorf("%w: sub-device index %d", ErrDeviceNotFound, index)
	}
	delete(d.vdsds, index)
	return v, nil
}

func (d *Device) detach(index int) {
	d.mu.Lock()
	delete(d.vdsds, index)
	d.mu.Unlock()
}

// Vdsd returns the vdSD at index.
func (d *Device) Vdsd(index int) (*Vdsd, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.vdsds[index]
	return v, ok
}

// Vdsds returns the vdSDs ordered by sub-device index.
func (d *Device) Vdsds() []*Vdsd {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Vdsd, 0, len(d.vdsds))
	for _, idx := range sortedKeys(d.vdsds) {
		out = append(out, d.vdsds[idx])
	}
	return out
}

// Announce announces every vdSD in index order.
//
// Returns:
//   - int: Number of vdSDs the vdSM accepted
//   - error: The first announcement failure, if any
func (d *Device) Announce(ctx context.Context, a Announcer) (int, error) {
	vdsds := d.Vdsds()

	count := 0
	var firstErr error
	for _, v := range vdsds {
		if err := a.AnnounceDevice(ctx, v); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("announcing %s: %w", v.DSUID(), err)
			}
			continue
		}
		v.setAnnounced(true)
		count++
	}

	d.mu.Lock()
	d.announced = count > 0
	d.mu.Unlock()
	return count, firstErr
}

// Vanish withdraws every announced vdSD.
func (d *Device) Vanish(ctx context.Context, a Announcer) error {
	var firstErr error
	for _, v := range d.Vdsds() {
		if !v.Announced() {
			continue
		}
		if err := a.Vanish(ctx, v); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("vanishing %s: %w", v.DSUID(), err)
		}
		v.setAnnounced(false)
	}
	d.ResetAnnouncement()
	return firstErr
}

// ResetAnnouncement marks the device and its vdSDs as not announced, as
// after a session ended.
func (d *Device) ResetAnnouncement() {
	d.mu.Lock()
	d.announced = false
	vdsds := make([]*Vdsd, 0, len(d.vdsds))
	for _, v := range d.vdsds {
		vdsds = append(vdsds, v)
	}
	d.mu.Unlock()

	for _, v := range vdsds {
		v.setAnnounced(false)
	}
}

// Update vanishes the device, lets modify change its structure and
// announces it again. It is the only way to restructure an announced
// device. With a nil Announcer the device is modified without announcing.
func (d *Device) Update(ctx context.Context, a Announcer, modify func(*Device) error) (int, error) {
	wasAnnounced := d.Announced()
	if wasAnnounced && a != nil {
		if err := d.Vanish(ctx, a); err != nil {
			return 0, err
		}
	}
	d.ResetAnnouncement()

	if err := modify(d); err != nil {
		return 0, fmt.Errorf("modifying device %s: %w", d.base, err)
	}
	if a == nil {
		return 0, nil
	}
	return d.Announce(ctx, a)
}

// sortDevices orders devices by base dSUID.
func sortDevices(devs []*Device) {
	sort.Slice(devs, func(i, j int) bool { return devs[i].base.String() < devs[j].base.String() })
}
