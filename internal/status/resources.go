package status

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"tradebridge/logger"
)

// resourceSnapshot is one sample of host and process utilisation.
type resourceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskPct     float64   `json:"disk_percent"`
	Goroutines  int       `json:"goroutines"`
	QueueLength int       `json:"event_queue_length"`
}

type resourceSampler struct {
	samples  *history[resourceSnapshot]
	interval time.Duration
	diskPath string
	queueLen func() int

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	log     *logger.Log
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

func newResourceSampler(limit int, interval time.Duration, queueLen func() int, log *logger.Log) *resourceSampler {
	if interval <= 0 {
		interval = time.Second
	}
	if queueLen == nil {
		queueLen = func() int { return 0 }
	}
	return &resourceSampler{
		samples:  newHistory[resourceSnapshot](limit),
		interval: interval,
		diskPath: "/",
		queueLen: queueLen,
		log:      log,
	}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx)
	}()
}

func (s *resourceSampler) stop() {
	if cancel := s.cancel; cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

func (s *resourceSampler) snapshot() []resourceSnapshot {
	return s.samples.snapshot()
}

// run samples until ctx ends. The cpu reading blocks for one interval, which
// paces the loop.
func (s *resourceSampler) run(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")
	for ctx.Err() == nil {
		cpuSamples, err := cpuPercentFn(ctx, s.interval)
		if err != nil {
			log.WithError(err).Debug("failed to sample cpu usage")
			if !s.pause(ctx) {
				return
			}
			continue
		}

		snap := resourceSnapshot{
			Timestamp:   time.Now(),
			Goroutines:  runtime.NumGoroutine(),
			QueueLength: s.queueLen(),
		}
		if len(cpuSamples) > 0 {
			snap.CPUPercent = cpuSamples[0]
		}
		if memStats, err := memoryStatsFn(ctx); err == nil {
			snap.MemoryUsed = memStats.Used
			snap.MemoryTotal = memStats.Total
			snap.MemoryPct = memStats.UsedPercent
		} else {
			log.WithError(err).Debug("failed to sample memory usage")
		}
		if diskStats, err := diskUsageFn(ctx, s.diskPath); err == nil {
			snap.DiskPct = diskStats.UsedPercent
		} else {
			log.WithError(err).Debug("failed to sample disk usage")
		}

		s.samples.add(snap)
	}
}

func (s *resourceSampler) pause(ctx context.Context) bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
