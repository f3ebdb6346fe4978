package grouping

import "time"

// Metrics принимает наблюдения о запусках. Реализация для Prometheus
// находится в infrastructure/metrics.
type Metrics interface {
	RecordRun(strategy string, duration time.Duration, students, groups int)
	RecordWarning(code WarningCode)
	RecordFailure(stage string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, time.Duration, int, int) {}
func (nopMetrics) RecordWarning(WarningCode)                 {}
func (nopMetrics) RecordFailure(string)                      {}
