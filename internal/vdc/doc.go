// Package vdc implements the vDC host: the process-level entity a vdSM
// connects to.
//
// A Host owns one or more Vdcs (virtual device connectors), each grouping
// the devices of one technology. It answers the vdSM session as a
// session.Handler:
//
//   - property requests go through a property.Store holding the host, its
//     vDCs and every vdSD;
//   - generic requests go to registered Methods, then to the vdSD's driver;
//   - notifications are applied to each addressed vdSD on its own;
//   - on session start every vDC is announced, followed by its devices.
//
// Usage:
//
//	host, err := vdc.NewHost(vdc.Config{MAC: mac}, registry)
//	light, err := vdc.NewVdc(vdc.VdcConfig{ImplementationID: "x-acme-light"})
//	host.AddVdc(ctx, light)
//	host.AddDevice(ctx, dev)
//	srv := transport.NewServer(transport.ServerConfig{}, host, logger)
//	srv.Start(ctx)
package vdc
