// Package metrics defines the instrumentation seam for paygate operations.
package metrics

import "time"

// Recorder receives operation counters and latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
