package mission

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the outcome of one mission.
type Summary struct {
	MissionID     int
	Dispatched    int
	Completed     int
	Failed        int
	MeanLatency   time.Duration
	StdDevLatency time.Duration
	latencies     []float64
}

func (s *Summary) observe(d time.Duration) {
	s.Completed++
	s.latencies = append(s.latencies, d.Seconds())
}

// finalize computes the latency statistics.
func (s *Summary) finalize() {
	if len(s.latencies) == 0 {
		return
	}
	mean, std := stat.MeanStdDev(s.latencies, nil)
	s.MeanLatency = time.Duration(mean * float64(time.Second))
	if len(s.latencies) > 1 {
		s.StdDevLatency = time.Duration(std * float64(time.Second))
	}
}

func (s Summary) fields() map[string]any {
	return map[string]any{
		"mission_id":        s.MissionID,
		"dispatched":        s.Dispatched,
		"completed":         s.Completed,
		"failed":            s.Failed,
		"mean_latency_ms":   s.MeanLatency.Milliseconds(),
		"stddev_latency_ms": s.StdDevLatency.Milliseconds(),
	}
}
