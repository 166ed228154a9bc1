package proc

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Status is the outcome of one child process.
type Status struct {
	PID int

	// Code is the exit code. A child killed by a signal reports 128+signal.
	Code int

	// Signal is the terminating signal, or 0 if the child exited.
	Signal syscall.Signal

	// Reaped is false when the handle had already been collected by another
	// waiter, in which case Code and Signal are unknown.
	Reaped bool
}

// Success reports whether the child exited with status zero.
func (s Status) Success() bool {
	return s.Reaped && s.Signal == 0 && s.Code == 0
}

func (s Status) String() string {
	switch {
	case !s.Reaped:
		return fmt.Sprintf("pid %d: already reaped", s.PID)
	case s.Signal != 0:
		return fmt.Sprintf("pid %d: killed by %v", s.PID, s.Signal)
	default:
		return fmt.Sprintf("pid %d: exit %d", s.PID, s.Code)
	}
}

// ExitStatus returns a status for a command that never produced a process,
// such as a program that could not be found.
func ExitStatus(code int) Status {
	return Status{Code: code, Reaped: true}
}

func fromWaitStatus(pid int, ws unix.WaitStatus) Status {
	st := Status{PID: pid, Reaped: true}
	switch {
	case ws.Exited():
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Signal = syscall.Signal(ws.Signal())
		st.Code = 128 + int(ws.Signal())
	}
	return st
}

// Wait blocks until pid terminates and reaps it.
//
// ECHILD means someone else already collected the child and is reported as
// success with Reaped unset. EINTR resumes the wait so the handle is still
// collected exactly once. Any other failure is returned.
func Wait(pid int) (Status, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, 0, nil)
		switch {
		case err == nil:
			return fromWaitStatus(wpid, ws), nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return Status{PID: pid}, nil
		default:
			return Status{PID: pid}, fmt.Errorf("wait for pid %d: %w", pid, err)
		}
	}
}
