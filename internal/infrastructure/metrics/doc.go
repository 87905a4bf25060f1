// Package metrics exposes Prometheus metrics of the vDC host: request and
// notification counts, announcement outcomes, pushes and the session
// state. The status API serves them at /metrics.
//
//	m := metrics.New()
//	host.SetMetrics(m)
//	m.AddGauge("devices", "Registered devices.", func() float64 { ... })
//	router.Handle("/metrics", m.Handler())
package metrics
