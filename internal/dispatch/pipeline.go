package dispatch

import (
	"errors"
	"fmt"

	"github.com/runger/minish/internal/argv"
	"github.com/runger/minish/internal/proc"
)

// runPipeline connects len(segs) commands with len(segs)-1 pipes and waits
// for all of them.
func (d *Dispatcher) runPipeline(segs []argv.Segment) (*Result, error) {
	pipes := make([]*proc.Pipe, 0, len(segs)-1)
	for i := 0; i < len(segs)-1; i++ {
		p, err := proc.NewPipe()
		if err != nil {
			if cerr := proc.ClosePipes(pipes); cerr != nil {
				d.logger.Warn("closing pipes", "error", cerr)
			}
			err = fmt.Errorf("create pipe: %w", err)
			d.report(err)
			return nil, err
		}
		pipes = append(pipes, p)
	}

	res := &Result{Shape: argv.ShapePipeline, Statuses: make([]proc.Status, len(segs))}
	pids := make([]int, len(segs))

	var forkErr error
	for i, seg := range segs {
		files := d.files()
		if i > 0 {
			files = files.WithStdin(pipes[i-1].R)
		}
		if i < len(segs)-1 {
			files = files.WithStdout(pipes[i].W)
		}

		pid, st, err := d.start(seg, proc.Foreground, files)
		if err != nil {
			// Stop launching; the stages already running are still waited for.
			forkErr = err
			res.Statuses = res.Statuses[:i]
			break
		}
		pids[i] = pid
		res.Statuses[i] = st
	}

	// The parent holds no end for I/O. Keeping any open would hide EOF from
	// the readers.
	if err := proc.ClosePipes(pipes); err != nil {
		d.logger.Warn("closing pipes", "error", err)
	}

	var waitErrs []error
	for i := range res.Statuses {
		if pids[i] == 0 {
			continue
		}
		st, err := d.wait(pids[i])
		if err != nil {
			waitErrs = append(waitErrs, err)
		}
		res.Statuses[i] = st
	}

	if forkErr != nil {
		return res, forkErr
	}
	return res, errors.Join(waitErrs...)
}
