package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves the health and monitoring endpoints.
type SystemHandlers struct {
	databases   map[string]*database.DB
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(databases map[string]*database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		databases:   databases,
		startupTime: time.Now(),
		log:         log.With().Str("component", "system_handlers").Logger(),
	}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status      string              `json:"status"`
	UptimeHours float64             `json:"uptime_hours"`
	CPUPercent  float64             `json:"cpu_percent"`
	RAMPercent  float64             `json:"ram_percent"`
	Databases   map[string]DBHealth `json:"databases"`
	Timestamp   string              `json:"timestamp"`
}

// DBHealth is one database's health entry.
type DBHealth struct {
	OK     bool    `json:"ok"`
	SizeMB float64 `json:"size_mb"`
	Error  string  `json:"error,omitempty"`
}

// HandleHealth reports process and database health.
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cpuPercent, ramPercent := h.systemStats()

	status := "ok"
	dbs := make(map[string]DBHealth, len(h.databases))
	for name, db := range h.databases {
		entry := DBHealth{OK: true}
		if err := db.HealthCheck(ctx); err != nil {
			entry.OK = false
			entry.Error = err.Error()
			status = "degraded"
		}
		if info, err := os.Stat(db.Path()); err == nil {
			entry.SizeMB = float64(info.Size()) / 1024 / 1024
		}
		dbs[name] = entry
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, HealthResponse{
		Status:      status,
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Databases:   dbs,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

// systemStats samples CPU and RAM usage. The short CPU interval keeps the
// endpoint fast enough for tight polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
