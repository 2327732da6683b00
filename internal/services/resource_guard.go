package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/irfndi/stockcast/internal/metrics"
	"github.com/irfndi/stockcast/internal/utils"
)

// MemoryProbe reports system memory usage as a percentage.
type MemoryProbe func(ctx context.Context) (float64, error)

// SystemMemoryPercent reads used memory from the host.
func SystemMemoryPercent(ctx context.Context) (float64, error) {
	info, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.UsedPercent, nil
}

// ResourceSnapshot is the guard state reported by the health endpoint.
type ResourceSnapshot struct {
	CPUCores          int     `json:"cpu_cores"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MaxMemoryPercent  float64 `json:"max_memory_percent"`
	MaxConcurrent     int64   `json:"max_concurrent_training"`
}

// ResourceGuard admits model training: at most maxConcurrent runs at once, and none
// while memory usage is above maxMemoryPercent. The caller's context bounds only the wait.
type ResourceGuard struct {
	sem              *semaphore.Weighted
	maxConcurrent    int64
	maxMemoryPercent float64
	probe            MemoryProbe
	logger           *logrus.Logger

	mu         sync.RWMutex
	lastMemory float64
}

// NewResourceGuard creates a guard that samples host memory with gopsutil.
func NewResourceGuard(maxConcurrent int64, maxMemoryPercent float64, logger *logrus.Logger) *ResourceGuard {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ResourceGuard{
		sem:              semaphore.NewWeighted(maxConcurrent),
		maxConcurrent:    maxConcurrent,
		maxMemoryPercent: maxMemoryPercent,
		probe:            SystemMemoryPercent,
		logger:           logger,
	}
}

// WithMemoryProbe replaces the memory probe.
func (g *ResourceGuard) WithMemoryProbe(probe MemoryProbe) *ResourceGuard {
	g.probe = probe
	return g
}

// Acquire waits for a training slot. The returned release func must be called once training ends.
func (g *ResourceGuard) Acquire(ctx context.Context) (func(), error) {
	if g.maxMemoryPercent > 0 && g.probe != nil {
		used, err := g.probe(ctx)
		if err != nil {
			// An unreadable probe does not block training.
			g.logger.WithError(err).Warn("Failed to read memory usage")
		} else {
			g.mu.Lock()
			g.lastMemory = used
			g.mu.Unlock()
			if used > g.maxMemoryPercent {
				metrics.RecordTrainingRejection("memory")
				g.logger.WithFields(logrus.Fields{
					"memory_used_percent": used,
					"max_memory_percent":  g.maxMemoryPercent,
				}).Warn("Training rejected: memory pressure")
				return nil, fmt.Errorf("%w: memory usage %.1f%% above %.1f%%", utils.ErrTrainingRejected, used, g.maxMemoryPercent)
			}
		}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		metrics.RecordTrainingRejection("timeout")
		return nil, fmt.Errorf("%w: waiting for a training slot: %v", utils.ErrTrainingRejected, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}

// Snapshot returns the configured limits and the last memory reading.
func (g *ResourceGuard) Snapshot() ResourceSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return ResourceSnapshot{
		CPUCores:          runtime.NumCPU(),
		MemoryUsedPercent: g.lastMemory,
		MaxMemoryPercent:  g.maxMemoryPercent,
		MaxConcurrent:     g.maxConcurrent,
	}
}
