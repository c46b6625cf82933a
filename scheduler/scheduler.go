package scheduler

import (
	"fmt"
	"math"

	"github.com/dargueta-edu/osemu/config"
)

// Event is one entry of the scheduler's event log.
type Event struct {
	Time    float64
	Message string
}

// Scheduler is a single-threaded MLFQ simulation. The caller drives it by
// calling Step or Run; there is no background goroutine and no concurrency
// within a Scheduler.
type Scheduler struct {
	opts config.SchedulerOptions

	queues   [3]*readyQueue
	absolute absoluteQueue

	allProcesses []*Process

	currentTime    float64
	currentProcess *Process
	pidCounter     int

	lastAgingTime float64

	totalContextSwitches int
	events               []Event
}

// New constructs a Scheduler from opts. Queue 2 always runs FCFS with an
// infinite quantum; queues 0 and 1 use opts.Quanta.
func New(opts config.SchedulerOptions) *Scheduler {
	return &Scheduler{
		opts: opts,
		queues: [3]*readyQueue{
			newReadyQueue(0, "RR"),
			newReadyQueue(1, "RR"),
			newReadyQueue(2, "FCFS"),
		},
		pidCounter: 1,
	}
}

func (s *Scheduler) log(format string, args ...any) {
	s.events = append(s.events, Event{Time: s.currentTime, Message: fmt.Sprintf(format, args...)})
}

// AddProcess creates and enqueues a new process. An arrival_time earlier
// than the scheduler's current_time clamps to current_time; adding to a
// full system never fails (there is no system capacity bound in this
// implementation).
func (s *Scheduler) AddProcess(name string, burst, arrival float64, relativePriority int, ptype PriorityType) *Process {
	if arrival < s.currentTime {
		arrival = s.currentTime
	}

	p := newProcess(s.pidCounter, name, burst, arrival, relativePriority, ptype)
	s.pidCounter++

	if ptype == Absolute {
		s.absolute.push(p)
	} else {
		s.queues[0].push(p)
	}
	s.allProcesses = append(s.allProcesses, p)
	s.log("added process %s (pid %d, %s)", p.Name, p.PID, ptype)
	return p
}

func (s *Scheduler) quantumFor(p *Process) float64 {
	if p.Type == Absolute {
		return math.Inf(1)
	}
	switch p.CurrentQueue {
	case 0:
		return s.opts.Quanta[0]
	case 1:
		return s.opts.Quanta[1]
	default:
		return math.Inf(1)
	}
}

// ageDynamicPriorities applies a once-per-simulated-second aging pass: READY
// processes drift toward priority 1 (favoring waiters), the RUNNING process
// drifts toward priority 10. Gated on a full 1.0 elapsed rather than
// catching up multiple seconds within one call.
func (s *Scheduler) ageDynamicPriorities() {
	if s.currentTime-s.lastAgingTime < 1.0 {
		return
	}
	for _, p := range s.allProcesses {
		if p.Type != Dynamic {
			continue
		}
		switch p.State {
		case Ready:
			p.DynamicPriority = max(1, p.DynamicPriority-1)
		case Running:
			p.DynamicPriority = min(10, p.DynamicPriority+1)
		}
	}
	s.lastAgingTime = s.currentTime
}

func (s *Scheduler) chargeWaitingTime(delta float64) {
	for _, p := range s.allProcesses {
		if p.State == Ready {
			p.WaitingTime += delta
		}
	}
}

// applyPreemption preempts the running process when the absolute queue is
// non-empty and the running process isn't itself absolute: it is returned
// to its queue and the absolute head begins running.
func (s *Scheduler) applyPreemption() {
	if s.absolute.empty() || s.currentProcess == nil {
		return
	}
	if s.currentProcess.Type == Absolute {
		return
	}

	preempted := s.currentProcess
	preempted.State = Ready
	preempted.QuantumUsed = 0
	s.queues[preempted.CurrentQueue].push(preempted)
	s.log("preempted %s (pid %d) for an absolute process", preempted.Name, preempted.PID)

	next := s.absolute.popFront()
	next.State = Running
	if next.StartTime == nil {
		t := s.currentTime
		next.StartTime = &t
	}
	next.TimesExecuted++
	s.currentProcess = next
	s.totalContextSwitches++
	s.log("absolute process %s (pid %d) begins running", next.Name, next.PID)
}

// selectNext chooses what runs next when current_process is nil: the
// absolute queue's head first, then the lowest non-empty ordinary queue.
func (s *Scheduler) selectNext() *Process {
	if !s.absolute.empty() {
		p := s.absolute.popFront()
		return p
	}
	for i := 0; i < 3; i++ {
		if !s.queues[i].empty() {
			return s.queues[i].pop()
		}
	}
	return nil
}

func (s *Scheduler) dispatch(p *Process) {
	p.State = Running
	if p.StartTime == nil {
		t := s.currentTime
		p.StartTime = &t
	}
	p.TimesExecuted++

	if p.Type == Dynamic {
		p.DynamicPriority = max(1, p.DynamicPriority-2)
	}

	s.currentProcess = p
	s.totalContextSwitches++
	s.log("dispatched %s (pid %d, queue %d)", p.Name, p.PID, p.CurrentQueue)
}

func (s *Scheduler) demote(p *Process) {
	if p.Type == Dynamic {
		p.DynamicPriority = min(10, p.DynamicPriority+1)
	}
	p.CurrentQueue++
	p.QuantumUsed = 0
	p.State = Ready
	s.queues[p.CurrentQueue].push(p)
	s.log("demoted %s (pid %d) to queue %d", p.Name, p.PID, p.CurrentQueue)
	s.currentProcess = nil
	s.totalContextSwitches++
}

// Step advances the simulation by delta units of simulated time: aging,
// waiting-time accounting, preemption, dispatch, execution, then
// termination or demotion. If delta is 0, the configured default time slice
// is used.
func (s *Scheduler) Step(delta float64) {
	if delta == 0 {
		delta = s.opts.TimeSlice
	}

	s.ageDynamicPriorities()
	s.chargeWaitingTime(delta)
	s.applyPreemption()

	if s.currentProcess == nil {
		next := s.selectNext()
		if next == nil {
			return // idle tick
		}
		s.dispatch(next)
	}

	p := s.currentProcess
	quantum := s.quantumFor(p)
	quantumRemaining := quantum - p.QuantumUsed
	exec := math.Min(delta, math.Min(quantumRemaining, p.RemainingTime))
	if exec < 0 {
		exec = 0
	}

	s.currentTime += exec
	p.RemainingTime -= exec
	p.QuantumUsed += exec
	p.TotalCPUTime += exec

	if p.RemainingTime <= 0 {
		p.State = Terminated
		t := s.currentTime
		p.CompletionTime = &t
		s.log("terminated %s (pid %d)", p.Name, p.PID)
		s.currentProcess = nil
		return
	}

	if p.Type != Absolute && p.CurrentQueue < 2 && p.QuantumUsed >= s.quantumFor(p) {
		s.demote(p)
	}
}

// Run calls Step n times with the configured default time slice.
func (s *Scheduler) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step(0)
	}
}

// Idle reports whether every queue, the absolute queue, and the current
// process slot are empty: the simulation has nothing left to do.
func (s *Scheduler) Idle() bool {
	if s.currentProcess != nil {
		return false
	}
	if !s.absolute.empty() {
		return false
	}
	for _, q := range s.queues {
		if !q.empty() {
			return false
		}
	}
	return true
}

// CurrentTime returns the simulation clock.
func (s *Scheduler) CurrentTime() float64 { return s.currentTime }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
