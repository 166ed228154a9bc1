package dispatch

import (
	"github.com/runger/minish/internal/argv"
	"github.com/runger/minish/internal/proc"
)

// runBackground starts seg with interrupts ignored and returns without
// waiting. The reaper owns the child from here on.
func (d *Dispatcher) runBackground(seg argv.Segment) (*Result, error) {
	pid, st, err := d.start(seg, proc.Background, d.files())
	if err != nil {
		return nil, err
	}

	res := &Result{Shape: argv.ShapeBackground}
	if pid == 0 {
		res.Statuses = []proc.Status{st}
		return res, nil
	}

	job := d.signals.Reaper().Track(pid, seg.String())
	res.Job = &job
	d.logger.Info("background job started", "job", job.ID, "pid", pid, "command", job.Command)
	return res, nil
}
