package transfer

import (
	"sync/atomic"
)

// Status is the service-visible state of the transfer workflow
type Status int32

const (
	StatusWaiting Status = iota
	StatusReady
	StatusError
)

// String returns the wire form of the status
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting for loading service"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// StatusCell is a process-wide status value safe for concurrent use.
// The zero value holds StatusWaiting.
type StatusCell struct {
	v atomic.Int32
}

// Load returns the current status
func (c *StatusCell) Load() Status {
	return Status(c.v.Load())
}

// Finish moves the cell from waiting to a terminal status. It returns false
// if the cell already holds a terminal status.
func (c *StatusCell) Finish(s Status) bool {
	if !s.Terminal() {
		return false
	}
	return c.v.CompareAndSwap(int32(StatusWaiting), int32(s))
}
