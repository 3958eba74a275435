package reporter

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/prometheus/procfs"

	"mercator-hq/pulse/pkg/sample"
)

// procStats is what the reporter reads from /proc.
type procStats struct {
	rss     float64
	threads float64
}

// ProcessReporter builds Process samples for one process.
type ProcessReporter struct {
	pid   int
	typ   string
	stats func(pid int) (procStats, error)
}

// NewProcessReporter creates a reporter for the current process. typ is
// reported as the process type label.
func NewProcessReporter(typ string) *ProcessReporter {
	return &ProcessReporter{
		pid:   os.Getpid(),
		typ:   typ,
		stats: readProcStats,
	}
}

// Collect returns a snapshot of the process. Failing to read /proc is not
// an error; runtime figures are used instead.
func (r *ProcessReporter) Collect() *sample.Process {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := &sample.Process{
		Type: r.typ,
		PID:  r.pid,

		HeapLiveSlots:         sample.Scalar(float64(mem.HeapObjects)),
		MajorGCCount:          sample.Scalar(float64(mem.NumGC)),
		TotalAllocatedObjects: sample.Scalar(float64(mem.Mallocs)),
	}

	stats, err := r.stats(r.pid)
	if err != nil {
		stats = procStats{
			rss:     float64(mem.Sys),
			threads: float64(pprof.Lookup("threadcreate").Count()),
		}
	}
	s.RSS = sample.Scalar(stats.rss)
	s.ThreadCount = sample.Scalar(stats.threads)

	return s
}

func readProcStats(pid int) (procStats, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procStats{}, fmt.Errorf("open procfs: %w", err)
	}
	proc, err := fs.Proc(pid)
	if err != nil {
		return procStats{}, fmt.Errorf("open process %d: %w", pid, err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return procStats{}, fmt.Errorf("read stat of process %d: %w", pid, err)
	}

	return procStats{
		rss:     float64(stat.ResidentMemory()),
		threads: float64(stat.NumThreads),
	}, nil
}
