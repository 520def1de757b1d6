package connection

import "time"

// Scheduler runs a function once after a delay. The reconnect timer and
// request deadlines go through it so tests can drive them with a manual
// clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// Task is a scheduled function.
type Task interface {
	// Stop cancels the task. It reports whether the call prevented f from running.
	Stop() bool
}

// wallClock schedules on real time. *time.Timer satisfies Task.
type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}
