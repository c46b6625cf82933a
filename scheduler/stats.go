package scheduler

// Snapshot is a point-in-time rendering of the scheduler's state, for a
// shell or test to display without reaching into scheduler internals.
type Snapshot struct {
	CurrentTime          float64
	CurrentProcess       *Process
	TotalContextSwitches int

	AbsoluteQueue []*Process
	Queues        [3][]*Process

	RecentEvents []Event
}

// Snapshot captures the scheduler's current state. Up to the last 10 events
// are included.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		CurrentTime:          s.currentTime,
		CurrentProcess:       s.currentProcess,
		TotalContextSwitches: s.totalContextSwitches,
		AbsoluteQueue:        s.absolute.list(),
	}
	for i := 0; i < 3; i++ {
		snap.Queues[i] = s.queues[i].list()
	}

	start := 0
	if len(s.events) > 10 {
		start = len(s.events) - 10
	}
	snap.RecentEvents = append(snap.RecentEvents, s.events[start:]...)
	return snap
}

// ProcessStats is one completed or pending process's final accounting.
type ProcessStats struct {
	Process    *Process
	Turnaround float64
	Waiting    float64
	Completed  bool
}

// FinalStats is the aggregate report after a simulation drains.
type FinalStats struct {
	Completed []ProcessStats
	Pending   []ProcessStats

	AverageTurnaround float64
	AverageWaiting    float64

	TotalContextSwitches int
	TotalEvents          int
}

// FinalStats computes the aggregate report over every process the scheduler
// has ever seen, whether or not the simulation has fully drained.
func (s *Scheduler) FinalStats() FinalStats {
	var fs FinalStats
	var totalTurnaround, totalWaiting float64

	for _, p := range s.allProcesses {
		if p.CompletionTime != nil {
			ps := ProcessStats{
				Process:    p,
				Turnaround: p.Turnaround(),
				Waiting:    p.Waiting(),
				Completed:  true,
			}
			fs.Completed = append(fs.Completed, ps)
			totalTurnaround += ps.Turnaround
			totalWaiting += ps.Waiting
		} else {
			fs.Pending = append(fs.Pending, ProcessStats{Process: p})
		}
	}

	if n := len(fs.Completed); n > 0 {
		fs.AverageTurnaround = totalTurnaround / float64(n)
		fs.AverageWaiting = totalWaiting / float64(n)
	}

	fs.TotalContextSwitches = s.totalContextSwitches
	fs.TotalEvents = len(s.events)
	return fs
}
