package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

var startTime = time.Now()

// Resolvers lists the source resolvers a server can dispatch to.
type Resolvers interface {
	Resolvers() []string
}

// TransferCounter reports downloads in flight.
type TransferCounter interface {
	ActiveTransfers() int64
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	resolvers Resolvers
	transfers TransferCounter
	converter string
}

// NewHealthHandler creates a new health handler. transfers may be nil.
func NewHealthHandler(resolvers Resolvers, transfers TransferCounter, converter string) *HealthHandler {
	return &HealthHandler{
		resolvers: resolvers,
		transfers: transfers,
		converter: converter,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Resolvers []string `json:"resolvers,omitempty"`
	Converter string   `json:"converter,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The server is ready once at
// least one resolver is registered.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	names := h.resolvers.Resolvers()
	if len(names) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Resolvers: names,
		Converter: h.converter,
	})
}

// SystemStats contains process resource statistics.
type SystemStats struct {
	Uptime          int64   `json:"uptime_seconds"`
	UptimeHuman     string  `json:"uptime_human"`
	MemAllocMB      int64   `json:"mem_alloc_mb"`
	MemSysMB        int64   `json:"mem_sys_mb"`
	MemHeapMB       int64   `json:"mem_heap_mb"`
	NumGoroutines   int     `json:"num_goroutines"`
	NumCPU          int     `json:"num_cpu"`
	CPUPercent      float64 `json:"cpu_percent"`
	ActiveTransfers int64   `json:"active_transfers"`
}

// Stats handles GET /stats - process statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPercent:    getCPUUsage(),
	}
	if h.transfers != nil {
		stats.ActiveTransfers = h.transfers.ActiveTransfers()
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
