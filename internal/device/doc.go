// Package device models the virtual devices (vdSDs) a vDC host exposes to
// a vdSM, and the physical units (devices) that group them.
//
// A vdSD carries an optional output with channels and a scene table, plus
// any number of buttons, binary inputs and sensors. Its state is published
// as a property tree (see package property) and its user-editable settings
// are persisted as CBOR records through a Repository.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                              Registry                                   │
//	│                                                                         │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │      Device      │    │    Repository    │    │   StateHistory   │   │
//	│  │   (device.go)    │    │  (repository.go) │    │(state_history.go)│   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • vdSDs by index │    │ • CBOR records   │    │ • value changes  │   │
//	│  │ • announce/vanish│    │ • SQLite upsert  │    │ • pruning        │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                                                             │
//	└───────────│─────────────────────────────────────────────────────────────┘
//	            ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│        Vdsd          │──▶│        Driver        │
//	│  • output + scenes   │   │ (hardware or bridge) │
//	│  • inputs            │   └──────────────────────┘
//	│  • property tree     │
//	└──────────────────────┘
//
// # Usage
//
//	registry := device.NewRegistry(device.NewSQLiteRepository(db))
//	registry.SetDriver(drv)
//
//	dev, err := device.FromDescription(desc, vdcID, device.Config{Info: info})
//	if err != nil {
//	    return err
//	}
//	if err := registry.AddDevice(ctx, dev); err != nil {
//	    return err
//	}
//
// Driver calls are made without holding a vdSD's lock; values are only
// confirmed once the driver reports success.
package device
