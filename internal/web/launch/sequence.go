// Package launch simulates the campaign launch: a setup checklist, a timed
// walk through the launch tasks, then an active campaign that can be
// paused and resumed. State lives in memory only and is lost on restart.
package launch

import (
	"errors"
	"sync"
	"time"

	"github.com/foxzi/coldreach/internal/metrics"
)

type Phase string

const (
	PhaseConfiguring Phase = "configuring"
	PhaseLaunching   Phase = "launching"
	PhaseActive      Phase = "active"
	PhasePaused      Phase = "paused"
)

var (
	ErrNotReady          = errors.New("launch checklist is not complete")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrBusy              = errors.New("a state change is already in progress")
)

// Tasks are the launch checklist items, in order
var Tasks = []string{
	"Verify sending account",
	"Review lead list",
	"Approve email sequence",
	"Confirm schedule",
}

// Delays between simulated steps
type Delays struct {
	Step   time.Duration
	Finish time.Duration
	Toggle time.Duration
}

// DefaultDelays match the dashboard animation
var DefaultDelays = Delays{
	Step:   1500 * time.Millisecond,
	Finish: 2 * time.Second,
	Toggle: time.Second,
}

// State is a snapshot of a Sequence
type State struct {
	Phase         Phase    `json:"phase"`
	TaskIndex     int      `json:"task_index"`
	Tasks         []string `json:"tasks"`
	Processing    bool     `json:"processing"`
	ReadyToLaunch bool     `json:"ready_to_launch"`
}

// Sequence is the launch state of one campaign. It is safe for
// concurrent use.
type Sequence struct {
	sched  Scheduler
	delays Delays
	n      int

	mu         sync.Mutex
	phase      Phase
	index      int
	processing bool
	pending    Timer
	gen        uint64
	stopped    bool
}

func NewSequence(sched Scheduler, delays Delays) *Sequence {
	return &Sequence{
		sched:  sched,
		delays: delays,
		n:      len(Tasks),
		phase:  PhaseConfiguring,
	}
}

// State returns the current snapshot
func (s *Sequence) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Sequence) stateLocked() State {
	return State{
		Phase:         s.phase,
		TaskIndex:     s.index,
		Tasks:         Tasks,
		Processing:    s.processing,
		ReadyToLaunch: s.index == s.n,
	}
}

// ReadyToLaunch reports whether every checklist item is done
func (s *Sequence) ReadyToLaunch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index == s.n
}

// CompleteTask ticks the next checklist item
func (s *Sequence) CompleteTask() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfiguring || s.index >= s.n {
		return s.stateLocked(), ErrInvalidTransition
	}
	s.index++
	return s.stateLocked(), nil
}

// Launch starts the timed walk through the tasks
func (s *Sequence) Launch() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.phase != PhaseConfiguring {
		return s.stateLocked(), ErrInvalidTransition
	}
	if s.index != s.n {
		return s.stateLocked(), ErrNotReady
	}

	s.phase = PhaseLaunching
	s.index = 0
	metrics.AddLaunches(1)
	s.scheduleLocked(s.delays.Step, s.advance)
	return s.stateLocked(), nil
}

// TogglePause flips Active and Paused after the toggle delay
func (s *Sequence) TogglePause() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || (s.phase != PhaseActive && s.phase != PhasePaused) {
		return s.stateLocked(), ErrInvalidTransition
	}
	if s.processing {
		return s.stateLocked(), ErrBusy
	}

	s.processing = true
	s.scheduleLocked(s.delays.Toggle, s.commitToggle)
	return s.stateLocked(), nil
}

// Stop cancels any pending step. No step runs after Stop returns.
func (s *Sequence) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.phase == PhaseLaunching {
		metrics.AddLaunches(-1)
	}
}

func (s *Sequence) scheduleLocked(d time.Duration, step func()) {
	s.gen++
	gen := s.gen
	s.pending = s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || s.gen != gen {
			return
		}
		s.pending = nil
		step()
	})
}

// advance runs with s.mu held
func (s *Sequence) advance() {
	s.index++
	if s.index < s.n {
		s.scheduleLocked(s.delays.Step, s.advance)
		return
	}
	s.scheduleLocked(s.delays.Finish, s.finish)
}

// finish runs with s.mu held
func (s *Sequence) finish() {
	s.phase = PhaseActive
	s.index = 0
	metrics.AddLaunches(-1)
}

// commitToggle runs with s.mu held
func (s *Sequence) commitToggle() {
	if s.phase == PhaseActive {
		s.phase = PhasePaused
	} else {
		s.phase = PhaseActive
	}
	s.processing = false
}
