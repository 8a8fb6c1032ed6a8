package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"study-hub/observability"
)

// TelemetryWorker periodically logs process self-stats (CPU, RAM, Status)
// alongside a snapshot of the core counters. It is the cheap substitute
// for a metrics backend: everything lands in the structured log.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	metrics  *observability.CoreMetrics
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration,
	metrics *observability.CoreMetrics) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, metrics: metrics}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker")
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
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.metrics.Snapshot()
			w.log.Info("Telemetry",
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"first_joins", stats.FirstJoins,
				"last_leaves", stats.LastLeaves,
				"presence_updates", stats.PresenceUpdates,
				"messages_stored", stats.MessagesStored,
				"quota_rejections", stats.QuotaRejections,
				"broadcast_drops", stats.BroadcastDrops,
				"events_dropped", stats.EventsDropped,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
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
