package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/splitting"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

var inputKinds = map[string]splitting.InputKind{
	config.InputButton:      splitting.Button,
	config.InputBinaryInput: splitting.BinaryInput,
	config.InputSensor:      splitting.Sensor,
}

// unitBase returns the base dSUID of an integrated unit.
func unitBase(dc config.DeviceConfig) (dsuid.DSUID, error) {
	if dc.DSUID != "" {
		id, err := dsuid.Parse(dc.DSUID)
		if err != nil {
			return dsuid.Empty, fmt.Errorf("dsuid %q: %w", dc.DSUID, err)
		}
		return id.Base(), nil
	}
	addr := strings.TrimSpace(dc.Address)
	if addr == "" {
		return dsuid.Empty, errors.New("unit needs an address or dsuid")
	}
	return dsuid.FromName(addr, dsuid.NamespaceVDC), nil
}

// deviceDescription turns a configured unit into its capability description.
func deviceDescription(dc config.DeviceConfig) (splitting.Description, error) {
	desc := splitting.Description{InputOnlySubIndex: dc.InputOnlySubIndex}

	switch strings.ToLower(dc.Mounting) {
	case "", config.MountingIntegrated:
		base, err := unitBase(dc)
		if err != nil {
			return desc, err
		}
		desc.Base = base
	case config.MountingDetachable:
		desc.Mounting = splitting.Detachable
	default:
		return desc, fmt.Errorf("unknown mounting %q", dc.Mounting)
	}

	for _, fc := range dc.Functions {
		desc.Functions = append(desc.Functions, splitting.Function{
			Key:            fc.Key,
			SubIndex:       fc.SubIndex,
			Name:           fc.Name,
			OutputFunction: fc.OutputFunction,
			Channels:       fc.Channels,
			ZoneID:         fc.ZoneID,
			PrimaryGroup:   fc.PrimaryGroup,
			SceneSet:       fc.SceneSet,
			Combine:        fc.Combine,
			ModuleAddress:  fc.ModuleAddress,
		})
	}
	for _, ic := range dc.Inputs {
		kind, ok := inputKinds[ic.Kind]
		if !ok {
			return desc, fmt.Errorf("unknown input kind %q", ic.Kind)
		}
		index := splitting.AutoIndex
		if ic.Index != nil {
			index = *ic.Index
		}
		desc.Inputs = append(desc.Inputs, splitting.Input{
			Kind:          kind,
			Index:         index,
			Name:          ic.Name,
			Type:          ic.Type,
			Group:         ic.Group,
			Function:      ic.Function,
			BoundTo:       ic.BoundTo,
			Standalone:    ic.Standalone,
			SubIndex:      ic.SubIndex,
			ZoneID:        ic.ZoneID,
			PrimaryGroup:  ic.PrimaryGroup,
			ModuleAddress: ic.ModuleAddress,
		})
	}
	return desc, nil
}

// addDevices splits and registers the units configured for v.
func addDevices(ctx context.Context, host *vdc.Host, v *vdc.Vdc, vc config.VdcConfig, vendor string, log *logging.Logger) error {
	for i, dc := range vc.Devices {
		desc, err := deviceDescription(dc)
		if err != nil {
			return fmt.Errorf("device %d of vDC %s: %w", i, vc.ImplementationID, err)
		}
		info := device.Info{Model: dc.Model, VendorName: dc.VendorName}
		if info.VendorName == "" {
			info.VendorName = vendor
		}
		d, err := device.FromDescription(desc, v.DSUID(), device.Config{Info: info})
		if err != nil {
			return fmt.Errorf("device %d of vDC %s: %w", i, vc.ImplementationID, err)
		}
		if err := host.AddDevice(ctx, d); err != nil {
			return fmt.Errorf("adding device %s to vDC %s: %w", d.Base(), vc.ImplementationID, err)
		}
		log.Info("device configured", "vdc", vc.ImplementationID, "base", d.Base().String(), "vdsds", len(d.Vdsds()))
	}
	return nil
}
