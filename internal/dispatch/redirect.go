package dispatch

import (
	"github.com/runger/minish/internal/argv"
	"github.com/runger/minish/internal/proc"
)

// runRedirect runs a single command with stdin read from plan.Target
// (ShapeInput) or stdout written to it (ShapeOutput).
func (d *Dispatcher) runRedirect(plan argv.Plan) (*Result, error) {
	open, install := proc.OpenInput, proc.Files.WithStdin
	if plan.Shape == argv.ShapeOutput {
		open, install = proc.OpenOutput, proc.Files.WithStdout
	}

	res := &Result{Shape: plan.Shape}

	fd, err := open(plan.Target)
	if err != nil {
		// The command fails, the shell does not.
		d.report(err)
		res.Statuses = []proc.Status{proc.ExitStatus(1)}
		return res, nil
	}

	pid, st, err := d.start(plan.Segments[0], proc.Foreground, install(d.files(), fd))
	if cerr := proc.CloseFD(fd); cerr != nil {
		d.logger.Warn("closing redirection target", "path", plan.Target, "error", cerr)
	}
	if err != nil {
		return nil, err
	}
	if pid != 0 {
		st, err = d.wait(pid)
	}
	res.Statuses = []proc.Status{st}
	return res, err
}
