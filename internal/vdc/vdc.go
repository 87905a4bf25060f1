package vdc

import (
	"fmt"
	"sync"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// Capabilities are the optional features a vDC advertises to the vdSM.
type Capabilities struct {
	Metering           bool
	Identification     bool
	DynamicDefinitions bool
}

// VdcConfig describes one virtual device connector.
type VdcConfig struct {
	// ImplementationID identifies the vDC implementation, for example
	// "x-acme-light". The vDC dSUID is derived from it. Required.
	ImplementationID string

	// Name defaults to ImplementationID.
	Name string

	Info         device.Info
	ZoneID       int
	Capabilities Capabilities
}

// Vdc is a virtual device connector: a logical container of devices of
// one technology. It is an addressable entity with its own property tree.
type Vdc struct {
	id     dsuid.DSUID
	implID string
	info   device.Info
	caps   Capabilities

	mu        sync.Mutex
	name      string
	zoneID    int
	announced bool
}

// NewVdc creates a vDC from cfg.
func NewVdc(cfg VdcConfig) (*Vdc, error) {
	if cfg.ImplementationID == "" {
		return nil, fmt.Errorf("%w: vDC without implementation id", ErrInvalidConfig)
	}
	v := &Vdc{
		id:     dsuid.FromName(cfg.ImplementationID, dsuid.NamespaceVDC),
		implID: cfg.ImplementationID,
		info:   cfg.Info,
		caps:   cfg.Capabilities,
		name:   cfg.Name,
		zoneID: cfg.ZoneID,
	}
	if v.name == "" {
		v.name = cfg.ImplementationID
	}
	if v.info.DisplayID == "" {
		v.info.DisplayID = cfg.ImplementationID
	}
	if v.info.ModelUID == "" {
		v.info.ModelUID = modelUID(v.info.Model)
	}
	return v, nil
}

// DSUID returns the vDC's dSUID.
func (v *Vdc) DSUID() dsuid.DSUID { return v.id }

// ImplementationID returns the implementation id the dSUID derives from.
func (v *Vdc) ImplementationID() string { return v.implID }

// Name returns the user-visible name.
func (v *Vdc) Name() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.name
}

// ZoneID returns the default zone of the vDC.
func (v *Vdc) ZoneID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoneID
}

// Announced reports whether the vdSM accepted the vDC in this session.
func (v *Vdc) Announced() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.announced
}

func (v *Vdc) setAnnounced(a bool) {
	v.mu.Lock()
	v.announced = a
	v.mu.Unlock()
}

// PropertyTree implements property.Source.
func (v *Vdc) PropertyTree() *property.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	root := property.Container("", commonElements(v.id, "vDC", v.info, v.name, true)...)
	root.Add(
		property.Leaf("implementationId", property.StringValue(v.implID)),
		property.Container("capabilities",
			property.Leaf("metering", property.BoolValue(v.caps.Metering)),
			property.Leaf("identification", property.BoolValue(v.caps.Identification)),
			property.Leaf("dynamicDefinitions", property.BoolValue(v.caps.DynamicDefinitions)),
		),
		property.Leaf("zoneID", property.Uint64Value(uint64(v.zoneID))),
	)
	return root
}

// Writable implements property.Source. Only name and zoneID are writable.
func (v *Vdc) Writable(path []string) bool {
	return len(path) == 1 && (path[0] == "name" || path[0] == "zoneID")
}

// ApplyProperties implements property.Source.
func (v *Vdc) ApplyProperties(tree *property.Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e := tree.Child("name"); e != nil && e.IsLeaf() {
		v.name = e.Value.AsString()
	}
	if e := tree.Child("zoneID"); e != nil && e.IsLeaf() {
		v.zoneID = int(e.Value.AsUint64())
	}
	return nil
}

func (v *Vdc) record() *device.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &device.Record{DSUID: v.id.String(), Name: v.name, ZoneID: v.zoneID}
}

func (v *Vdc) restore(r *device.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r.Name != "" {
		v.name = r.Name
	}
	v.zoneID = r.ZoneID
}
