package vdc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
	"github.com/nerrad567/vdc-core/internal/session"
	"github.com/nerrad567/vdc-core/internal/transport"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

// SettingsStore persists the user-editable settings of the host and its
// vDCs. device.Repository satisfies it.
type SettingsStore interface {
	GetByID(ctx context.Context, id string) (*device.Record, error)
	Save(ctx context.Context, rec *device.Record) error
}

// Config describes the vDC host.
type Config struct {
	// MAC is the hardware address the host dSUID derives from. Empty
	// means the first non-loopback interface.
	MAC string

	// DSUID overrides the MAC-derived identifier.
	DSUID string

	// Name defaults to "vDC host on <hostname>".
	Name string

	Info    device.Info
	Session session.Config
}

// Host is the vDC host: the top-level addressable entity that owns the
// vDCs, answers the vdSM session and routes requests and notifications to
// the registry's vdSDs.
//
// Host implements session.Handler, transport.ConnHandler and
// device.Announcer.
type Host struct {
	id         dsuid.DSUID
	mac        string
	info       device.Info
	sessionCfg session.Config

	registry *device.Registry
	store    *property.Store
	settings SettingsStore
	logger   Logger
	metrics  Metrics

	mu      sync.RWMutex
	name    string
	vdcs    map[string]*Vdc
	sess    *session.Session
	sinks   []EventSink
	methods map[string]Method

	now func() time.Time
}

// NewHost creates a host serving the devices of registry.
func NewHost(cfg Config, registry *device.Registry) (*Host, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidConfig)
	}

	mac := cfg.MAC
	if mac == "" {
		var err error
		if mac, err = DefaultMAC(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	mac, err := dsuid.NormaliseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", ErrInvalidConfig, err)
	}

	var id dsuid.DSUID
	if cfg.DSUID != "" {
		if id, err = dsuid.Parse(cfg.DSUID); err != nil {
			return nil, fmt.Errorf("%w: dsuid: %v", ErrInvalidConfig, err)
		}
	} else if id, err = dsuid.FromMAC(mac); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	info := cfg.Info
	if info.HardwareGUID == "" {
		info.HardwareGUID = "macaddress:" + mac
	}
	if info.DisplayID == "" {
		info.DisplayID = mac
	}
	if info.ModelUID == "" {
		info.ModelUID = modelUID(info.Model)
	}
	name := cfg.Name
	if name == "" {
		hostname, _ := os.Hostname() //nolint:errcheck // empty hostname is acceptable
		name = "vDC host on " + hostname
	}

	h := &Host{
		id:         id,
		mac:        mac,
		info:       info,
		sessionCfg: cfg.Session,
		registry:   registry,
		store:      property.NewStore(),
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		name:       name,
		vdcs:       make(map[string]*Vdc),
		methods:    make(map[string]Method),
		now:        time.Now,
	}
	h.store.Register(id.String(), hostSource{h})
	h.registerBuiltinMethods()
	return h, nil
}

// DefaultMAC returns the hardware address of the first up, non-loopback
// interface.
func DefaultMAC() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || len(iface.HardwareAddr) != 6 {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", errors.New("no interface with a hardware address")
}

// SetLogger sets the logger for the host and the sessions it creates.
func (h *Host) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// SetMetrics installs a metrics collector.
func (h *Host) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	h.metrics = m
}

// SetSettingsStore enables persistence of host and vDC names and zones.
// Call before adding vDCs.
func (h *Host) SetSettingsStore(ctx context.Context, s SettingsStore) {
	h.settings = s
	if s == nil {
		return
	}
	rec, err := s.GetByID(ctx, h.id.String())
	if err != nil {
		if !errors.Is(err, device.ErrDeviceNotFound) {
			h.logger.Warn("loading host settings failed", "error", err)
		}
		return
	}
	if rec.Name != "" {
		h.mu.Lock()
		h.name = rec.Name
		h.mu.Unlock()
	}
}

// AddEventSink registers an observer of host events.
func (h *Host) AddEventSink(s EventSink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// DSUID returns the host dSUID.
func (h *Host) DSUID() dsuid.DSUID { return h.id }

// MAC returns the normalised hardware address of the host.
func (h *Host) MAC() string { return h.mac }

// Name returns the user-visible host name.
func (h *Host) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

// Registry returns the device registry served by the host.
func (h *Host) Registry() *device.Registry { return h.registry }

// Properties answers a property query for any registered entity. It is
// the read path of the status API.
func (h *Host) Properties(id string, query []*property.Element) (property.Result, error) {
	return h.store.Get(id, query)
}

// AddVdc registers v, restores its stored settings and announces it when
// a session is active.
func (h *Host) AddVdc(ctx context.Context, v *Vdc) error {
	h.mu.Lock()
	if _, ok := h.vdcs[v.DSUID().String()]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrVdcExists, v.DSUID())
	}
	h.vdcs[v.DSUID().String()] = v
	s := h.sess
	h.mu.Unlock()

	if h.settings != nil {
		rec, err := h.settings.GetByID(ctx, v.DSUID().String())
		switch {
		case err == nil:
			v.restore(rec)
		case !errors.Is(err, device.ErrDeviceNotFound):
			h.logger.Warn("loading vDC settings failed", "vdc", v.DSUID().String(), "error", err)
		}
	}
	h.store.Register(v.DSUID().String(), v)
	h.logger.Info("vDC added", "vdc", v.DSUID().String(), "implementation_id", v.ImplementationID())

	if s != nil {
		h.announceVdc(ctx, s, v)
	}
	return nil
}

// Vdc returns the vDC with the given dSUID.
func (h *Host) Vdc(id dsuid.DSUID) (*Vdc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.vdcs[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVdcNotFound, id)
	}
	return v, nil
}

// Vdcs returns the vDCs ordered by dSUID.
func (h *Host) Vdcs() []*Vdc {
	h.mu.RLock()
	out := make([]*Vdc, 0, len(h.vdcs))
	for _, v := range h.vdcs {
		out = append(out, v)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DSUID().String() < out[j].DSUID().String() })
	return out
}

// AddDevice registers d with the registry and the property store, and
// announces it when its vDC is announced.
func (h *Host) AddDevice(ctx context.Context, d *device.Device) error {
	v, err := h.Vdc(d.VdcDSUID())
	if err != nil {
		return err
	}
	if err := h.registry.AddDevice(ctx, d); err != nil {
		return err
	}
	for _, vd := range d.Vdsds() {
		h.store.Register(vd.DSUID().String(), vd)
	}
	if h.currentSession() != nil && v.Announced() {
		h.announceDevice(ctx, d)
	}
	return nil
}

// RemoveDevice vanishes the device if announced and unregisters it. With
// forget the stored settings are deleted as well.
func (h *Host) RemoveDevice(ctx context.Context, base dsuid.DSUID, forget bool) error {
	d, err := h.registry.GetDevice(base)
	if err != nil {
		return err
	}
	if d.Announced() && h.currentSession() != nil {
		if err := d.Vanish(ctx, h); err != nil {
			h.logger.Warn("vanishing device failed", "dsuid", base.String(), "error", err)
		}
	}
	for _, vd := range d.Vdsds() {
		h.store.Unregister(vd.DSUID().String())
	}
	if _, err := h.registry.RemoveDevice(ctx, base, forget); err != nil {
		return err
	}
	h.publish(Event{Kind: EventRemove, DSUID: base.String()})
	return nil
}

// UpdateDevice restructures a registered device. The device is vanished,
// modified and, if a session is active, announced again.
func (h *Host) UpdateDevice(ctx context.Context, base dsuid.DSUID, modify func(*device.Device) error) error {
	d, err := h.registry.GetDevice(base)
	if err != nil {
		return err
	}
	if err := h.RemoveDevice(ctx, base, false); err != nil {
		return err
	}
	if _, err := d.Update(ctx, nil, modify); err != nil {
		// Keep serving the unmodified device.
		if addErr := h.AddDevice(ctx, d); addErr != nil {
			h.logger.Error("restoring device after failed update", "dsuid", base.String(), "error", addErr)
		}
		return err
	}
	return h.AddDevice(ctx, d)
}

// ServeConn implements transport.ConnHandler: it runs one vdSM session on c.
func (h *Host) ServeConn(ctx context.Context, c *transport.Conn) {
	s := session.New(c, h, h.sessionCfg, h.logger)
	if err := s.Run(ctx); err != nil {
		h.logger.Warn("session ended with error", "remote", c.RemoteAddr(), "error", err)
	}
}

// Session returns the active session, or nil.
func (h *Host) Session() *session.Session { return h.currentSession() }

func (h *Host) currentSession() *session.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess
}

// HostDSUID implements session.Handler.
func (h *Host) HostDSUID() dsuid.DSUID { return h.id }

// Responds implements session.Handler.
func (h *Host) Responds(id dsuid.DSUID) bool { return h.store.Has(id.String()) }

// SessionActive implements session.Handler. It announces every vDC and
// then the devices of each accepted vDC.
func (h *Host) SessionActive(ctx context.Context, s *session.Session) {
	h.mu.Lock()
	h.sess = s
	h.mu.Unlock()

	h.metrics.SetSessionActive(true)
	h.publish(Event{Kind: EventSession, Data: map[string]any{"state": "active", "vdsm": s.VdsmDSUID().String()}})

	for _, v := range h.Vdcs() {
		if ctx.Err() != nil {
			return
		}
		h.announceVdc(ctx, s, v)
	}
}

// SessionEnded implements session.Handler.
func (h *Host) SessionEnded(s *session.Session) {
	h.mu.Lock()
	if h.sess != s {
		h.mu.Unlock()
		return
	}
	h.sess = nil
	h.mu.Unlock()

	for _, v := range h.Vdcs() {
		v.setAnnounced(false)
	}
	for _, d := range h.registry.ListDevices() {
		d.ResetAnnouncement()
	}

	h.metrics.SetSessionActive(false)
	h.publish(Event{Kind: EventSession, Data: map[string]any{"state": "ended", "vdsm": s.VdsmDSUID().String()}})
	h.logger.Info("vdSM session ended", "vdsm", s.VdsmDSUID().String())
}

func (h *Host) announceVdc(ctx context.Context, s *session.Session, v *Vdc) {
	_, err := s.Request(ctx, &vdcapi.SendAnnounceVdc{DSUID: v.DSUID()})
	h.metrics.ObserveAnnounce("vdc", err == nil)
	if err != nil {
		h.logger.Warn("vDC announcement failed", "vdc", v.DSUID().String(), "error", err)
		return
	}
	v.setAnnounced(true)
	h.publish(Event{Kind: EventAnnounce, DSUID: v.DSUID().String(), Data: map[string]any{"type": "vDC"}})

	for _, d := range h.registry.ListDevicesOfVdc(v.DSUID()) {
		if ctx.Err() != nil {
			return
		}
		h.announceDevice(ctx, d)
	}
}

func (h *Host) announceDevice(ctx context.Context, d *device.Device) {
	n, err := d.Announce(ctx, h)
	if err != nil {
		h.logger.Warn("device announcement incomplete", "dsuid", d.Base().String(), "announced", n, "error", err)
	}
}

// AnnounceDevice implements device.Announcer.
func (h *Host) AnnounceDevice(ctx context.Context, v *device.Vdsd) error {
	s := h.currentSession()
	if s == nil {
		return ErrNoSession
	}
	d, err := h.registry.DeviceOf(v.DSUID())
	if err != nil {
		return err
	}
	_, err = s.Request(ctx, &vdcapi.SendAnnounceDevice{DSUID: v.DSUID(), VdcDSUID: d.VdcDSUID()})
	h.metrics.ObserveAnnounce("vdsd", err == nil)
	if err != nil {
		return err
	}
	h.publish(Event{Kind: EventAnnounce, DSUID: v.DSUID().String(), Data: map[string]any{"type": "vdSD"}})
	return nil
}

// Vanish implements device.Announcer.
func (h *Host) Vanish(ctx context.Context, v *device.Vdsd) error {
	s := h.currentSession()
	if s == nil {
		return ErrNoSession
	}
	if err := s.Notify(ctx, &vdcapi.SendVanish{DSUID: v.DSUID()}); err != nil {
		return err
	}
	h.publish(Event{Kind: EventVanish, DSUID: v.DSUID().String()})
	return nil
}

// HandleRequest implements session.Handler.
func (h *Host) HandleRequest(ctx context.Context, _ *session.Session, env vdcapi.Envelope) (vdcapi.Payload, error) {
	start := h.now()
	resp, err := h.handleRequest(ctx, env)
	h.metrics.ObserveRequest(env.Type().String(), vdcapi.ResultFromError(err).String(), h.now().Sub(start))
	if err != nil {
		h.logger.Debug("request failed", "type", env.Type().String(), "id", env.MessageID, "error", err)
	}
	return resp, err
}

func (h *Host) handleRequest(ctx context.Context, env vdcapi.Envelope) (vdcapi.Payload, error) {
	switch p := env.Payload.(type) {
	case *vdcapi.RequestGetProperty:
		res, err := h.store.Get(p.DSUID.String(), p.Query)
		if err != nil {
			return nil, err
		}
		for _, pe := range res.Errors {
			h.logger.Debug("property not resolved", "dsuid", p.DSUID.String(), "error", pe)
		}
		return &vdcapi.ResponseGetProperty{Properties: res.Elements, Errors: vdcapi.PathResults(res.Errors)}, nil

	case *vdcapi.RequestSetProperty:
		if err := h.store.Set(p.DSUID.String(), p.Properties); err != nil {
			return nil, err
		}
		h.persist(ctx, p.DSUID)
		return nil, nil

	case *vdcapi.RequestGenericRequest:
		return h.callMethod(ctx, p)

	case *vdcapi.SendRemove:
		return nil, h.remove(ctx, p.DSUID)
	}
	return nil, vdcapi.ErrMessageUnknown
}

// remove serves the vdSM's request to forget a vdSD.
func (h *Host) remove(ctx context.Context, id dsuid.DSUID) error {
	if _, err := h.registry.GetVdsd(id); err != nil {
		return fmt.Errorf("%w: %s", property.ErrNotFound, id)
	}
	if err := h.registry.ForgetVdsd(ctx, id); err != nil {
		return err
	}
	h.store.Unregister(id.String())
	h.publish(Event{Kind: EventRemove, DSUID: id.String()})
	return nil
}

// persist saves the settings of the entity changed by a set request.
func (h *Host) persist(ctx context.Context, id dsuid.DSUID) {
	var err error
	switch {
	case id == h.id:
		if h.settings != nil {
			err = h.settings.Save(ctx, &device.Record{DSUID: id.String(), Name: h.Name()})
		}
	default:
		if v, vErr := h.Vdc(id); vErr == nil {
			if h.settings != nil {
				err = h.settings.Save(ctx, v.record())
			}
		} else if vd, vdErr := h.registry.GetVdsd(id); vdErr == nil {
			err = h.registry.Save(ctx, vd)
		}
	}
	if err != nil {
		h.logger.Warn("persisting settings failed", "dsuid", id.String(), "error", err)
	}
}

// Push sends changed properties of a vdSD to the vdSM.
func (h *Host) Push(ctx context.Context, id dsuid.DSUID, changed []*property.Element) error {
	s := h.currentSession()
	if s == nil {
		return ErrNoSession
	}
	if err := s.Notify(ctx, &vdcapi.SendPushProperty{DSUID: id, ChangedProperties: changed}); err != nil {
		return fmt.Errorf("pushing properties of %s: %w", id, err)
	}
	h.metrics.ObservePush()
	h.publish(Event{Kind: EventPush, DSUID: id.String(), Data: property.ToMap(changed)})
	return nil
}

// Identify asks the vdSM to identify the entity id, for example after a
// local button press on the device.
func (h *Host) Identify(ctx context.Context, id dsuid.DSUID) error {
	s := h.currentSession()
	if s == nil {
		return ErrNoSession
	}
	return s.Notify(ctx, &vdcapi.SendIdentify{DSUID: id})
}

// Shutdown vanishes the host, which ends the active session.
func (h *Host) Shutdown(ctx context.Context) error {
	s := h.currentSession()
	if s == nil {
		return nil
	}
	if err := s.Notify(ctx, &vdcapi.SendVanish{DSUID: h.id}); err != nil && !errors.Is(err, session.ErrNotActive) {
		return err
	}
	return nil
}

// UpdateChannelValue reports a channel value read back from hardware.
func (h *Host) UpdateChannelValue(ctx context.Context, id dsuid.DSUID, index int, value float64) error {
	v, err := h.registry.GetVdsd(id)
	if err != nil {
		return err
	}
	tree, err := v.UpdateChannelValue(index, value)
	if err != nil {
		return err
	}
	return h.valueChanged(ctx, v, device.HistoryKindChannel, index, value, tree)
}

// UpdateSensorValue reports a new sensor reading.
func (h *Host) UpdateSensorValue(ctx context.Context, id dsuid.DSUID, index int, value float64) error {
	v, err := h.registry.GetVdsd(id)
	if err != nil {
		return err
	}
	tree, err := v.UpdateSensorValue(index, value)
	if err != nil {
		return err
	}
	return h.valueChanged(ctx, v, device.HistoryKindSensor, index, value, tree)
}

// UpdateBinaryInput reports a binary input state.
func (h *Host) UpdateBinaryInput(ctx context.Context, id dsuid.DSUID, index int, value bool) error {
	v, err := h.registry.GetVdsd(id)
	if err != nil {
		return err
	}
	tree, err := v.UpdateBinaryInput(index, value)
	if err != nil {
		return err
	}
	f := 0.0
	if value {
		f = 1
	}
	return h.valueChanged(ctx, v, device.HistoryKindBinary, index, f, tree)
}

// ButtonClick reports a button gesture.
func (h *Host) ButtonClick(ctx context.Context, id dsuid.DSUID, index int, click device.ClickType) error {
	v, err := h.registry.GetVdsd(id)
	if err != nil {
		return err
	}
	tree, err := v.ButtonClick(index, click)
	if err != nil {
		return err
	}
	return h.valueChanged(ctx, v, device.HistoryKindButton, index, float64(click), tree)
}

// valueChanged records a driver-side change and pushes tree, if any, to
// an active session.
func (h *Host) valueChanged(ctx context.Context, v *device.Vdsd, kind string, index int, value float64, tree []*property.Element) error {
	h.registry.RecordValue(ctx, v.DSUID(), kind, index, value, device.HistorySourceDriver)
	h.publish(Event{Kind: EventValue, DSUID: v.DSUID().String(), Data: map[string]any{
		"kind": kind, "index": index, "value": value,
	}})
	if len(tree) == 0 || !v.Announced() {
		return nil
	}
	if err := h.Push(ctx, v.DSUID(), tree); err != nil && !errors.Is(err, ErrNoSession) && !errors.Is(err, session.ErrNotActive) {
		return err
	}
	return nil
}

func (h *Host) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = h.now().UTC()
	}
	h.mu.RLock()
	sinks := h.sinks
	h.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(e)
	}
}

// Status is a snapshot of the host for the status API.
type Status struct {
	DSUID   string         `json:"dsuid"`
	Name    string         `json:"name"`
	Vdcs    []VdcStatus    `json:"vdcs"`
	Devices device.Stats   `json:"devices"`
	Session *session.Stats `json:"session,omitempty"`
}

// VdcStatus summarises one vDC.
type VdcStatus struct {
	DSUID            string `json:"dsuid"`
	ImplementationID string `json:"implementation_id"`
	Name             string `json:"name"`
	Announced        bool   `json:"announced"`
}

// Status returns a snapshot of the host.
func (h *Host) Status() Status {
	st := Status{DSUID: h.id.String(), Name: h.Name(), Devices: h.registry.GetStats()}
	for _, v := range h.Vdcs() {
		st.Vdcs = append(st.Vdcs, VdcStatus{
			DSUID:            v.DSUID().String(),
			ImplementationID: v.ImplementationID(),
			Name:             v.Name(),
			Announced:        v.Announced(),
		})
	}
	if s := h.currentSession(); s != nil {
		stats := s.Stats()
		st.Session = &stats
	}
	return st
}

// hostSource exposes the host's own property tree.
type hostSource struct{ h *Host }

func (s hostSource) PropertyTree() *property.Element {
	h := s.h
	h.mu.RLock()
	name := h.name
	active := h.sess != nil
	h.mu.RUnlock()
	root := property.Container("", commonElements(h.id, "vDChost", h.info, name, active)...)
	root.Add(property.Leaf("mac", property.StringValue(h.mac)))
	return root
}

func (hostSource) Writable(path []string) bool {
	return len(path) == 1 && path[0] == "name"
}

func (s hostSource) ApplyProperties(tree *property.Element) error {
	if e := tree.Child("name"); e != nil && e.IsLeaf() {
		s.h.mu.Lock()
		s.h.name = e.Value.AsString()
		s.h.mu.Unlock()
	}
	return nil
}
