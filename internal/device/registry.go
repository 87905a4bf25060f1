package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the live devices of the vDC host and persists the
// user-editable settings of their vdSDs through a Repository.
//
// Devices are registered by drivers at startup; stored records are
// applied to matching vdSDs when the device is added.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	history StateHistoryRepository

	devices map[string]*Device // by base dSUID
	vdsds   map[string]*Vdsd   // by vdSD dSUID
	owners  map[string]*Device // vdSD dSUID to its device
	cacheMu sync.RWMutex

	driver Driver
	logger Logger
}

// NewRegistry creates a new device registry. repo may be nil, in which
// case settings are not persisted.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		devices: make(map[string]*Device),
		vdsds:   make(map[string]*Vdsd),
		owners:  make(map[string]*Device),
		driver:  noopDriver{},
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetHistory enables recording of channel and input values.
func (r *Registry) SetHistory(h StateHistoryRepository) {
	r.cacheMu.Lock()
	r.history = h
	r.cacheMu.Unlock()
}

// SetDriver installs d on every current and future vdSD.
func (r *Registry) SetDriver(d Driver) {
	if d == nil {
		d = noopDriver{}
	}
	r.cacheMu.Lock()
	r.driver = d
	vdsds := make([]*Vdsd, 0, len(r.vdsds))
	for _, v := range r.vdsds {
		vdsds = append(vdsds, v)
	}
	r.cacheMu.Unlock()

	for _, v := range vdsds {
		v.SetDriver(&recordingDriver{Driver: d, registry: r})
	}
}

// AddDevice registers d and restores stored settings of its vdSDs.
// Returns ErrDeviceExists if the device or one of its vdSDs is known.
func (r *Registry) AddDevice(ctx context.Context, d *Device) error {
	vdsds := d.Vdsds()

	r.cacheMu.Lock()
	if _, ok := r.devices[d.Base().String()]; ok {
		r.cacheMu.Unlock()
		return fmt.Errorf("%w: device %s", ErrDeviceExists, d.Base())
	}
	batch := make(map[string]bool, len(vdsds))
	for _, v := range vdsds {
		id := v.DSUID().String()
		if _, ok := r.vdsds[id]; ok || batch[id] {
			r.cacheMu.Unlock()
			return fmt.Errorf("%w: vdSD %s", ErrDeviceExists, v.DSUID())
		}
		batch[id] = true
	}
	r.devices[d.Base().String()] = d
	for _, v := range vdsds {
		r.vdsds[v.DSUID().String()] = v
		r.owners[v.DSUID().String()] = d
	}
	drv := r.driver
	r.cacheMu.Unlock()

	for _, v := range vdsds {
		v.SetDriver(&recordingDriver{Driver: drv, registry: r})
		if r.repo == nil {
			continue
		}
		rec, err := r.repo.GetByID(ctx, v.DSUID().String())
		if err != nil {
			if !errors.Is(err, ErrDeviceNotFound) {
				r.logger.Warn("loading vdSD settings failed", "dsuid", v.DSUID().String(), "error", err)
			}
			continue
		}
		v.Restore(rec)
	}

	r.logger.Info("device added", "dsuid", d.Base().String(), "vdsds", len(vdsds))
	return nil
}

// RemoveDevice unregisters the device with the given base dSUID. With
// forget the stored settings are deleted as well.
func (r *Registry) RemoveDevice(ctx context.Context, base dsuid.DSUID, forget bool) (*Device, error) {
	r.cacheMu.Lock()
	d, ok := r.devices[base.Base().String()]
	if !ok {
		r.cacheMu.Unlock()
		return nil, fmt.Errorf("%w: device %s", ErrDeviceNotFound, base)
	}
	delete(r.devices, base.Base().String())
	vdsds := d.Vdsds()
	for _, v := range vdsds {
		delete(r.vdsds, v.DSUID().String())
		delete(r.owners, v.DSUID().String())
	}
	r.cacheMu.Unlock()

	if forget && r.repo != nil {
		for _, v := range vdsds {
			if err := r.repo.Delete(ctx, v.DSUID().String()); err != nil && !errors.Is(err, ErrDeviceNotFound) {
				return d, fmt.Errorf("deleting settings of %s: %w", v.DSUID(), err)
			}
		}
	}

	r.logger.Info("device removed", "dsuid", base.String(), "forget", forget)
	return d, nil
}

// ForgetVdsd removes a single vdSD from its device and deletes its stored
// settings, also while announced: it serves the vdSM's own remove request.
// The device itself stays registered.
func (r *Registry) ForgetVdsd(ctx context.Context, id dsuid.DSUID) error {
	r.cacheMu.Lock()
	d, ok := r.owners[id.String()]
	if !ok {
		r.cacheMu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	v := r.vdsds[id.String()]
	d.detach(v.SubIndex())
	v.setAnnounced(false)
	delete(r.vdsds, id.String())
	delete(r.owners, id.String())
	r.cacheMu.Unlock()

	if r.repo != nil {
		if err := r.repo.Delete(ctx, id.String()); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			return fmt.Errorf("deleting settings of %s: %w", id, err)
		}
	}
	r.logger.Info("vdSD removed", "dsuid", id.String())
	return nil
}

// GetDevice returns the device with the given base dSUID.
func (r *Registry) GetDevice(base dsuid.DSUID) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	d, ok := r.devices[base.Base().String()]
	if !ok {
		return nil, fmt.Errorf("%w: device %s", ErrDeviceNotFound, base)
	}
	return d, nil
}

// DeviceOf returns the device owning the vdSD id.
func (r *Registry) DeviceOf(id dsuid.DSUID) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	d, ok := r.owners[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// GetVdsd returns the vdSD with the given dSUID.
func (r *Registry) GetVdsd(id dsuid.DSUID) (*Vdsd, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	v, ok := r.vdsds[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return v, nil
}

// ListDevices returns all devices ordered by base dSUID.
func (r *Registry) ListDevices() []*Device {
	r.cacheMu.RLock()
	devs := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devs = append(devs, d)
	}
	r.cacheMu.RUnlock()
	sortDevices(devs)
	return devs
}

// ListDevicesOfVdc returns the devices of one vDC ordered by base dSUID.
func (r *Registry) ListDevicesOfVdc(vdc dsuid.DSUID) []*Device {
	var out []*Device
	for _, d := range r.ListDevices() {
		if d.VdcDSUID() == vdc {
			out = append(out, d)
		}
	}
	return out
}

// ListVdsds returns all vdSDs ordered by dSUID.
func (r *Registry) ListVdsds() []*Vdsd {
	r.cacheMu.RLock()
	out := make([]*Vdsd, 0, len(r.vdsds))
	for _, v := range r.vdsds {
		out = append(out, v)
	}
	r.cacheMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DSUID().String() < out[j].DSUID().String() })
	return out
}

// Save persists the settings of v.
func (r *Registry) Save(ctx context.Context, v *Vdsd) error {
	if r.repo == nil {
		return nil
	}
	r.cacheMu.RLock()
	d, ok := r.owners[v.DSUID().String()]
	r.cacheMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, v.DSUID())
	}
	if err := r.repo.Save(ctx, v.Record(d.Base().String())); err != nil {
		return fmt.Errorf("saving settings of %s: %w", v.DSUID(), err)
	}
	r.logger.Debug("vdSD settings saved", "dsuid", v.DSUID().String())
	return nil
}

// RecordValue appends a value change to the state history, if enabled.
// Failures are logged; history is best effort.
func (r *Registry) RecordValue(ctx context.Context, id dsuid.DSUID, kind string, index int, value float64, source string) {
	r.cacheMu.RLock()
	h := r.history
	r.cacheMu.RUnlock()
	if h == nil {
		return
	}
	entry := StateHistoryEntry{DSUID: id.String(), Kind: kind, Index: index, Value: value, Source: source}
	if err := h.RecordStateChange(ctx, entry); err != nil {
		r.logger.Warn("recording state history failed", "dsuid", id.String(), "kind", kind, "error", err)
	}
}

// GetDeviceCount returns the number of registered devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.devices)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	Devices      int
	Vdsds        int
	Announced    int
	WithOutput   int
	Buttons      int
	BinaryInputs int
	Sensors      int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	stats := Stats{Devices: len(r.devices), Vdsds: len(r.vdsds)}
	vdsds := make([]*Vdsd, 0, len(r.vdsds))
	for _, v := range r.vdsds {
		vdsds = append(vdsds, v)
	}
	r.cacheMu.RUnlock()

	for _, v := range vdsds {
		v.mu.Lock()
		if v.announced {
			stats.Announced++
		}
		if v.output != nil {
			stats.WithOutput++
		}
		stats.Buttons += len(v.buttons)
		stats.BinaryInputs += len(v.binaryInputs)
		stats.Sensors += len(v.sensors)
		v.mu.Unlock()
	}
	return stats
}

// recordingDriver records applied channel values before handing back to
// the caller.
type recordingDriver struct {
	Driver
	registry *Registry
}

func (d *recordingDriver) ApplyChannels(ctx context.Context, id dsuid.DSUID, values map[ChannelType]float64) error {
	if err := d.Driver.ApplyChannels(ctx, id, values); err != nil {
		return err
	}
	for t, v := range values {
		d.registry.RecordValue(ctx, id, HistoryKindChannel, int(t), v, HistorySourceVdsm)
	}
	return nil
}

func (d *recordingDriver) CallMethod(ctx context.Context, id dsuid.DSUID, name string, params []*property.Element) ([]*property.Element, error) {
	md, ok := d.Driver.(MethodDriver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, name)
	}
	return md.CallMethod(ctx, id, name, params)
}
