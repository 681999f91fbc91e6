package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Gauges exposes the registry counters the heartbeat reports.
type Gauges interface {
	Sessions() int
	Rooms() int
}

// HeartbeatWorker periodically logs process health (CPU, RSS, status)
// together with the realtime gauges. Purely observational.
type HeartbeatWorker struct {
	log      *slog.Logger
	gauges   Gauges
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, gauges Gauges, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, gauges: gauges, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Heartbeat",
				"pid", os.Getpid(),
				"status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"sessions", w.gauges.Sessions(),
				"active_rooms", w.gauges.Rooms(),
			)
		}
	}
}

// selfStats retrieves memory, CPU, and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
