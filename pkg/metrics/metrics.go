package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Metric names recorded by the service.
const (
	SystemCpuuse  = "system_cpuuse"
	SystemMemuse  = "system_memuse"
	ProcessCpuuse = "vendlink_cpuuse"
	ProcessMemuse = "vendlink_memuse"

	PaymentsAccepted     = "payments_accepted"
	NotificationsDropped = "notifications_dropped"
	IssueFailures        = "issue_failures"
	RotationGiveups      = "rotation_giveups"
)

var (
	storage tstorage.Storage

	counterMux sync.Mutex
	counters   = map[string]int64{}
)

// InitMetrics opens the metrics storage under workdir/metrics.
func InitMetrics(workdir string) error {
	var err error
	storage, err = tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	return err
}

// SetGauge records an instantaneous value for name.
func SetGauge(name string, value int64) {
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// IncrCounter adds delta to a monotonically increasing counter and records
// the running total.
func IncrCounter(name string, delta int64) {
	counterMux.Lock()
	counters[name] += delta
	total := counters[name]
	counterMux.Unlock()
	SetGauge(name, total)
}

// CounterValue returns the in-process running total for name.
func CounterValue(name string) int64 {
	counterMux.Lock()
	defer counterMux.Unlock()
	return counters[name]
}

// Select returns raw datapoints for name in [start, end].
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	if storage == nil {
		return nil, nil
	}
	return storage.Select(name, nil, start, end)
}

func Close() error {
	if storage == nil {
		return nil
	}
	return storage.Close()
}
