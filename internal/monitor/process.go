package monitor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

// ProcessSnapshot describes the running coach process.
type ProcessSnapshot struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	UptimeSec  float64 `json:"uptimeSec"`
}

// ProcessStats samples resource usage of the current process.
func ProcessStats(ctx context.Context) (ProcessSnapshot, error) {
	snap := ProcessSnapshot{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  time.Since(startedAt).Seconds(),
	}

	p, err := process.NewProcessWithContext(ctx, snap.PID)
	if err != nil {
		return snap, fmt.Errorf("inspect process %d: %w", snap.PID, err)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		snap.CPUPercent = cpu
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		snap.Threads = n
	}
	return snap, nil
}
