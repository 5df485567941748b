package metrics

import "time"

// Noop is the default recorder when metrics are disabled.
type Noop struct{}

func (Noop) IncCounter(string, map[string]string)                    {}
func (Noop) ObserveLatency(string, time.Duration, map[string]string) {}
