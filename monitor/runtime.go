package monitor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/logger"
)

type RuntimeStats struct {
	Goroutines   int    `json:"goroutines"`
	AllocMB      uint64 `json:"alloc_mb"`
	TotalAllocMB uint64 `json:"total_alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
}

func ReadRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines:   runtime.NumGoroutine(),
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
	}
}

// StartGoroutineMonitor logs the goroutine count every interval until ctx is done.
func StartGoroutineMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats := ReadRuntimeStats()
		requestMetrics.sample(stats)

		if stats.Goroutines > 5000 {
			logger.SysError(fmt.Sprintf("high goroutine count detected: %d", stats.Goroutines))
		} else if stats.Goroutines > 2000 {
			logger.SysLog(fmt.Sprintf("goroutine count elevated: %d", stats.Goroutines))
		} else if config.DebugEnabled {
			logger.SysLog(fmt.Sprintf("goroutine count: %d", stats.Goroutines))
		}

		if config.DebugEnabled {
			logger.SysLog(fmt.Sprintf("memory: Alloc=%dMB, TotalAlloc=%dMB, Sys=%dMB, NumGC=%d",
				stats.AllocMB, stats.TotalAllocMB, stats.SysMB, stats.NumGC))
		}
	}
}
