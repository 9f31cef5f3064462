package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse reports process and host health.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	DatabaseMB    float64 `json:"database_mb"`
	PriceSource   string  `json:"price_source"`
}

// handleSystemStatus handles system status requests
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPct, ramPct := s.getSystemStats()

	response := SystemStatusResponse{
		Status:        "running",
		UptimeSeconds: time.Since(s.startupTime).Seconds(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(m.Alloc) / 1024 / 1024,
		NumGC:         m.NumGC,
		DatabaseMB:    s.databaseSizeMB(),
		PriceSource:   s.cfg.PriceSource,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages. A 100ms sampling
// interval keeps the endpoint responsive for polling dashboards.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// databaseSizeMB returns the price history database size on disk.
func (s *Server) databaseSizeMB() float64 {
	info, err := os.Stat(s.cfg.DatabasePath)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}
