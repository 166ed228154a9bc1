// Package dispatch runs a tokenized command line as one of five execution
// shapes: simple, background, input redirection, output redirection or
// pipeline.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/runger/minish/internal/argv"
	"github.com/runger/minish/internal/proc"
)

// DefaultMaxStages is the pipeline width used when none is configured.
const DefaultMaxStages = 10

// Launcher starts a program without waiting for it.
type Launcher interface {
	Launch(args []string, d proc.Disposition, files proc.Files) (int, error)
}

// Stdio holds the shell's own standard files, inherited by every child
// unless a redirection or pipe replaces one of them.
type Stdio struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// DefaultStdio returns the process's standard files.
func DefaultStdio() Stdio {
	return Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Options configures a Dispatcher.
type Options struct {
	// MaxStages bounds pipeline width. Zero means DefaultMaxStages.
	MaxStages int

	// Stdio defaults to DefaultStdio when any field is nil.
	Stdio Stdio

	Logger *slog.Logger

	// Launcher overrides the process launcher, mostly for tests.
	Launcher Launcher
}

// Result describes what a dispatch ran.
type Result struct {
	Shape argv.Shape

	// Statuses has one entry per foreground command, in stage order.
	// Commands that could not be started carry a status with PID 0.
	Statuses []proc.Status

	// Job is set for background commands that were started.
	Job *proc.Job
}

// ExitCode is the status of the last foreground command, 0 when nothing ran
// in the foreground.
func (r *Result) ExitCode() int {
	if r == nil || len(r.Statuses) == 0 {
		return 0
	}
	return r.Statuses[len(r.Statuses)-1].Code
}

// Dispatcher classifies command lines and runs them.
type Dispatcher struct {
	signals   *proc.Signals
	launcher  Launcher
	maxStages int
	stdio     Stdio
	logger    *slog.Logger
}

// New returns a Dispatcher. signals must come from proc.Setup and stay
// active for as long as the Dispatcher is used.
func New(signals *proc.Signals, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	stdio := opts.Stdio
	def := DefaultStdio()
	if stdio.In == nil {
		stdio.In = def.In
	}
	if stdio.Out == nil {
		stdio.Out = def.Out
	}
	if stdio.Err == nil {
		stdio.Err = def.Err
	}

	maxStages := opts.MaxStages
	if maxStages == 0 {
		maxStages = DefaultMaxStages
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = proc.NewLauncher(signals, logger)
	}

	return &Dispatcher{
		signals:   signals,
		launcher:  launcher,
		maxStages: maxStages,
		stdio:     stdio,
		logger:    logger,
	}
}

// Dispatch runs one command line. A nil error means every command the line
// asked for was attempted and every foreground child was waited for; it
// says nothing about exit codes. Errors are shell-level faults such as a
// malformed line, a failed pipe or fork, or a failed wait. They have
// already been reported on the shell's stderr when Dispatch returns.
func (d *Dispatcher) Dispatch(args []string) (*Result, error) {
	plan, err := argv.Classify(argv.Vector(args), d.maxStages)
	if err != nil {
		d.report(err)
		return nil, err
	}
	if plan.Empty() {
		return &Result{Shape: plan.Shape}, nil
	}

	d.logger.Debug("dispatch", "shape", plan.Shape.String(), "stages", len(plan.Segments))

	switch plan.Shape {
	case argv.ShapeBackground:
		return d.runBackground(plan.Segments[0])
	case argv.ShapePipeline:
		return d.runPipeline(plan.Segments)
	case argv.ShapeInput, argv.ShapeOutput:
		return d.runRedirect(plan)
	default:
		return d.runSimple(plan.Segments[0])
	}
}

func (d *Dispatcher) files() proc.Files {
	return proc.StdFiles(d.stdio.In, d.stdio.Out, d.stdio.Err)
}

func (d *Dispatcher) runSimple(seg argv.Segment) (*Result, error) {
	res := &Result{Shape: argv.ShapeSimple}

	pid, st, err := d.start(seg, proc.Foreground, d.files())
	if err != nil {
		return nil, err
	}
	if pid != 0 {
		st, err = d.wait(pid)
	}
	res.Statuses = []proc.Status{st}
	return res, err
}

// start launches seg. A program that cannot be started is reported and
// comes back as a finished status with pid 0, the same as a child that
// exited immediately. Only a refused fork is an error.
func (d *Dispatcher) start(seg argv.Segment, disp proc.Disposition, files proc.Files) (int, proc.Status, error) {
	pid, err := d.launcher.Launch(seg.Args(), disp, files)

	var launchErr *proc.LaunchError
	switch {
	case errors.As(err, &launchErr):
		d.report(launchErr)
		return 0, proc.ExitStatus(launchErr.Code), nil
	case err != nil:
		err = fmt.Errorf("fork: %w", err)
		d.report(err)
		return 0, proc.Status{}, err
	}
	return pid, proc.Status{}, nil
}

func (d *Dispatcher) wait(pid int) (proc.Status, error) {
	st, err := proc.Wait(pid)
	if err != nil {
		d.report(err)
		return st, err
	}
	d.logger.Debug("child finished", "pid", pid, "code", st.Code, "reaped", st.Reaped)
	return st, nil
}

// report prints a diagnostic the way a shell's perror would.
func (d *Dispatcher) report(err error) {
	fmt.Fprintf(d.stdio.Err, "minish: %v\n", err)
	d.logger.Warn("dispatch error", "error", err)
}
