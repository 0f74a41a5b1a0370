package main

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

var (
	prevTime      time.Time
	prevCPUReport = "n/a"
	prevLock      sync.Mutex
)

// cpuReport samples host CPU usage at most once a second, between calls.
func cpuReport() string {
	prevLock.Lock()
	defer prevLock.Unlock()
	if time.Since(prevTime) > 1*time.Second {
		usage, err := cpu.Percent(0, false)
		if err == nil && len(usage) > 0 {
			since := "boot"
			if !prevTime.IsZero() {
				since = time.Since(prevTime).Round(time.Second).String()
			}
			prevCPUReport = fmt.Sprintf("%.1f%% (past %s)", usage[0], since)
		}
		prevTime = time.Now()
	}
	return prevCPUReport
}

func metricValue(m prometheus.Metric) float64 {
	var d dto.Metric
	if err := m.Write(&d); err != nil {
		return 0
	}
	switch {
	case d.Gauge != nil:
		return d.Gauge.GetValue()
	case d.Counter != nil:
		return d.Counter.GetValue()
	}
	return 0
}

func apiStatusGET(w http.ResponseWriter, _ *http.Request) (int, string) {
	loadAvg, _ := load.Avg()
	virtmem, _ := mem.VirtualMemory()
	uptime, _ := host.Uptime()
	uptimetime, _ := time.ParseDuration(strconv.Itoa(int(uptime)) + "s")
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	status := map[string]any{
		"version":      fmt.Sprintf("%s %s built %s %s", GitTag, CommitHash, BuildTime, GoVersion),
		"uptime":       uptimetime.String(),
		"cpu":          cpuReport(),
		"heap":         humanize.Bytes(ms.HeapAlloc),
		"goroutines":   runtime.NumGoroutine(),
		"sessions":     metricValue(sessionMetrics.Sessions),
		"blocks_built": humanize.Comma(int64(metricValue(sessionMetrics.Blocks.WithLabelValues("placed")))),
		"packs":        0,
	}
	if loadAvg != nil {
		status["load"] = loadAvg
	}
	if virtmem != nil {
		status["memory"] = fmt.Sprintf("%s of %s (%.1f%%)", humanize.Bytes(virtmem.Used), humanize.Bytes(virtmem.Total), virtmem.UsedPercent)
	}
	if packs != nil {
		status["packs"] = len(packs.closers) + len(packs.dirs)
	}
	setContentTypeJson(w)
	return marshalOrFail(http.StatusOK, status)
}
