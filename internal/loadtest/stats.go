package loadtest

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"
)

type Stats struct {
	mu    sync.Mutex
	tasks map[string]*taskStats
}

type taskStats struct {
	latencies []time.Duration
	failures  int
}

// Row is the aggregated view of one task.
type Row struct {
	Task     string
	Requests int
	Failures int
	Mean     time.Duration
	P95      time.Duration
	Max      time.Duration
}

func NewStats() *Stats {
	return &Stats{tasks: make(map[string]*taskStats)}
}

func (s *Stats) Record(name string, latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tasks[name]
	if !ok {
		ts = &taskStats{}
		s.tasks[name] = ts
	}
	ts.latencies = append(ts.latencies, latency)
	if err != nil {
		ts.failures++
	}
}

// Summary returns one row per task, sorted by task name.
func (s *Stats) Summary() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Row, 0, len(s.tasks))
	for name, ts := range s.tasks {
		sorted := make([]time.Duration, len(ts.latencies))
		copy(sorted, ts.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}

		row := Row{Task: name, Requests: len(sorted), Failures: ts.failures}
		if n := len(sorted); n > 0 {
			row.Mean = sum / time.Duration(n)
			row.Max = sorted[n-1]
			row.P95 = sorted[percentileIndex(n, 0.95)]
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Task < rows[j].Task })
	return rows
}

// percentileIndex uses the nearest-rank method.
func percentileIndex(n int, p float64) int {
	idx := int(float64(n)*p+0.999999) - 1
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

func (s *Stats) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tREQUESTS\tFAILURES\tMEAN\tP95\tMAX")
	for _, row := range s.Summary() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			row.Task, row.Requests, row.Failures,
			row.Mean.Round(time.Microsecond),
			row.P95.Round(time.Microsecond),
			row.Max.Round(time.Microsecond))
	}
	return tw.Flush()
}
