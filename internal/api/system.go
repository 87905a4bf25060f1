package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the system endpoint response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Stream        StreamMetrics    `json:"event_stream"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Registry      RegistryMetrics  `json:"registry"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// StreamMetrics describes the event stream hub.
type StreamMetrics struct {
	Clients       int    `json:"clients"`
	DroppedFrames uint64 `json:"dropped_frames"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// RegistryMetrics mirrors device.Stats.
type RegistryMetrics struct {
	Devices      int `json:"devices"`
	Vdsds        int `json:"vdsds"`
	Announced    int `json:"announced"`
	WithOutput   int `json:"with_output"`
	Buttons      int `json:"buttons"`
	BinaryInputs int `json:"binary_inputs"`
	Sensors      int `json:"sensors"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystem returns runtime and registry figures.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	reg := s.host.Registry().GetStats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Stream: StreamMetrics{
			Clients:       s.hub.ClientCount(),
			DroppedFrames: s.hub.Dropped(),
		},
		Registry: RegistryMetrics{
			Devices:      reg.Devices,
			Vdsds:        reg.Vdsds,
			Announced:    reg.Announced,
			WithOutput:   reg.WithOutput,
			Buttons:      reg.Buttons,
			BinaryInputs: reg.BinaryInputs,
			Sensors:      reg.Sensors,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
