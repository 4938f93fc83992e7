package telemetry

import (
	"runtime"
	"strconv"

	"slunch/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
)

func itoa(n int) string { return strconv.Itoa(n) }

func memStat(f func(*runtime.MemStats) uint64) func() float64 {
	return func() float64 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		return float64(f(&stats))
	}
}

// RegisterRuntime adds heap and GC gauges. go_goroutines is left to the
// default Go collector.
func RegisterRuntime(reg prometheus.Registerer) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gc_pause_total_ns",
			Help:      "Total GC pause time in nanoseconds.",
		}, memStat(func(s *runtime.MemStats) uint64 { return s.PauseTotalNs })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_alloc_bytes",
			Help:      "Current heap allocation in bytes.",
		}, memStat(func(s *runtime.MemStats) uint64 { return s.HeapAlloc })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_sys_bytes",
			Help:      "Total heap size in bytes.",
		}, memStat(func(s *runtime.MemStats) uint64 { return s.HeapSys })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gc_cycles_total",
			Help:      "Total number of GC cycles.",
		}, memStat(func(s *runtime.MemStats) uint64 { return uint64(s.NumGC) })),
	)
}

// RegisterStore exposes the on-disk size of the store.
func RegisterStore(reg prometheus.Registerer, s *store.Store) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_disk_bytes",
		Help:      "Disk space used by the pebble store.",
	}, func() float64 { return float64(s.DiskUsage()) }))
}
