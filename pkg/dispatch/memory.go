package dispatch

import (
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemorySampler reports the current system memory used-percentage;
// abstracted so tests can substitute a deterministic fake instead of
// sampling the real host.
type MemorySampler func() (usedPercent float64, err error)

// SystemMemorySampler samples real host memory via gopsutil, the
// ecosystem library the broader retrieval pack's manifests depend on
// for exactly this purpose.
func SystemMemorySampler() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

// AdaptiveConcurrencyConfig configures the memory-adaptive semaphore
// resize loop of spec.md §4.6's scheduling model.
type AdaptiveConcurrencyConfig struct {
	MaxConcurrency int
	HighWatermark  float64 // percent used memory; capacity halves above this
	LowWatermark   float64 // percent used memory; capacity steps up below this
	TickInterval   time.Duration
	Sampler        MemorySampler
}

// DefaultAdaptiveConcurrencyConfig allows up to 10 concurrent tasks,
// halving capacity above 85% used memory and stepping it back up below
// 60%, sampled every 2 seconds.
func DefaultAdaptiveConcurrencyConfig() AdaptiveConcurrencyConfig {
	return AdaptiveConcurrencyConfig{
		MaxConcurrency: 10,
		HighWatermark:  85.0,
		LowWatermark:   60.0,
		TickInterval:   2 * time.Second,
		Sampler:        SystemMemorySampler,
	}
}

// runAdaptiveLoop recomputes sem's capacity every tick as
// min(max_concurrency, f(free_memory)): halves above HighWatermark,
// steps up by one below LowWatermark, otherwise holds steady. Stops
// when stop is closed.
func runAdaptiveLoop(cfg AdaptiveConcurrencyConfig, sem *adaptiveSemaphore, stop <-chan struct{}) {
	if cfg.TickInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	capacity := cfg.MaxConcurrency
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			usedPercent, err := cfg.Sampler()
			if err != nil {
				continue
			}
			switch {
			case usedPercent > cfg.HighWatermark:
				capacity = capacity / 2
				if capacity < 1 {
					capacity = 1
				}
			case usedPercent < cfg.LowWatermark:
				capacity++
				if capacity > cfg.MaxConcurrency {
					capacity = cfg.MaxConcurrency
				}
			}
			sem.Resize(capacity)
		}
	}
}
