package main

import (
	"fmt"
	"io"

	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/scheduler"
)

// seedDemoProcesses populates the scheduler with seven named sample
// processes covering all three priority types, using only the scheduler's
// public AddProcess operation.
func seedDemoProcesses(s *scheduler.Scheduler) {
	s.AddProcess("System", 6.0, 0.0, 1, scheduler.Relative)
	s.AddProcess("Editor", 4.0, 1.0, 2, scheduler.Relative)
	s.AddProcess("Browser", 8.0, 2.0, 3, scheduler.Relative)
	s.AddProcess("Emergency", 3.0, 5.0, 1, scheduler.Absolute)
	s.AddProcess("Player", 5.0, 3.0, 2, scheduler.Dynamic)
	s.AddProcess("Calc", 2.0, 4.0, 1, scheduler.Dynamic)
	s.AddProcess("Download", 7.0, 6.0, 3, scheduler.Dynamic)
}

// runSchedDemo seeds the demo processes and drives the scheduler for steps
// ticks, printing a snapshot after each one and a final report at the end.
func runSchedDemo(steps int, out io.Writer) {
	s := scheduler.New(config.NewSchedulerOptions())
	seedDemoProcesses(s)

	for i := 0; i < steps && !s.Idle(); i++ {
		s.Step(0)
		snap := s.Snapshot()
		fmt.Fprintf(out, "t=%.1f current=%s switches=%d\n",
			snap.CurrentTime, currentName(snap.CurrentProcess), snap.TotalContextSwitches)
	}

	fs := s.FinalStats()
	fmt.Fprintln(out, "\n--- final statistics ---")
	for _, ps := range fs.Completed {
		fmt.Fprintf(out, "%-10s turnaround=%.1f waiting=%.1f dispatches=%d\n",
			ps.Process.Name, ps.Turnaround, ps.Waiting, ps.Process.TimesExecuted)
	}
	for _, ps := range fs.Pending {
		fmt.Fprintf(out, "%-10s (pending) remaining=%.1f\n", ps.Process.Name, ps.Process.RemainingTime)
	}
	fmt.Fprintf(out, "average turnaround=%.2f average waiting=%.2f context switches=%d\n",
		fs.AverageTurnaround, fs.AverageWaiting, fs.TotalContextSwitches)
}

func currentName(p *scheduler.Process) string {
	if p == nil {
		return "<idle>"
	}
	return p.Name
}
