package proc

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// JobState is the lifecycle state of a background job.
type JobState string

const (
	JobRunning JobState = "Running"
	JobDone    JobState = "Done"
)

// Job is a background child owned by the Reaper.
type Job struct {
	ID      int
	PID     int
	Command string
	Started time.Time
	State   JobState
	Status  Status
}

// Reaper collects background children without blocking. It only waits on
// handles registered through Track, so it never competes with a foreground
// Wait for the same process.
type Reaper struct {
	mu       sync.Mutex
	running  map[int]*Job
	finished []Job
	nextID   int
	kick     chan struct{}
	logger   *slog.Logger
}

// NewReaper returns an empty Reaper.
func NewReaper(logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{
		running: make(map[int]*Job),
		nextID:  1,
		kick:    make(chan struct{}, 1),
		logger:  logger,
	}
}

// Track hands pid to the reaper and returns the job record. A child that
// exited before Track was called is picked up by the drain Track schedules.
func (r *Reaper) Track(pid int, command string) Job {
	r.mu.Lock()
	job := &Job{
		ID:      r.nextID,
		PID:     pid,
		Command: command,
		Started: time.Now(),
		State:   JobRunning,
	}
	r.nextID++
	r.running[pid] = job
	r.mu.Unlock()

	r.logger.Debug("background job tracked", "job", job.ID, "pid", pid, "command", command)

	select {
	case r.kick <- struct{}{}:
	default:
	}
	return *job
}

// Drain reaps every tracked child that has terminated and returns them.
// Running children are left alone.
func (r *Reaper) Drain() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []Job
	for pid, job := range r.running {
		st, done, err := tryWait(pid)
		if err != nil {
			r.logger.Warn("background wait failed", "pid", pid, "error", err)
			continue
		}
		if !done {
			continue
		}
		job.State = JobDone
		job.Status = st
		delete(r.running, pid)
		r.finished = append(r.finished, *job)
		reaped = append(reaped, *job)
		r.logger.Debug("background job reaped", "job", job.ID, "pid", pid, "status", st.String())
	}
	sortJobs(reaped)
	return reaped
}

// Pending returns the jobs that have not been reaped yet, ordered by ID.
func (r *Reaper) Pending() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.running))
	for _, job := range r.running {
		out = append(out, *job)
	}
	sortJobs(out)
	return out
}

// Finished returns jobs reaped since the previous call and forgets them.
func (r *Reaper) Finished() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.finished
	r.finished = nil
	sortJobs(out)
	return out
}

// Kicked is signalled whenever a new job is tracked.
func (r *Reaper) Kicked() <-chan struct{} {
	return r.kick
}

func tryWait(pid int) (Status, bool, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		switch {
		case err == nil && wpid == 0:
			return Status{}, false, nil
		case err == nil:
			return fromWaitStatus(wpid, ws), true, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return Status{PID: pid}, true, nil
		default:
			return Status{}, false, err
		}
	}
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
}
