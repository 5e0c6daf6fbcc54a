package launch

import "time"

// Scheduler runs f once after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler schedules on the runtime timer
var RealScheduler Scheduler = clock{}
