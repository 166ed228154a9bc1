// Package repl reads command lines, tokenizes them and hands them to the
// dispatcher. It owns the few builtins that must run inside the shell
// process and reports background job progress between prompts.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/shlex"

	"github.com/runger/minish/internal/dispatch"
	"github.com/runger/minish/internal/proc"
)

// Exit statuses the shell assigns itself.
const (
	StatusFailure = 1
	StatusUsage   = 2
)

// Dispatcher runs one tokenized command line.
type Dispatcher interface {
	Dispatch(args []string) (*dispatch.Result, error)
}

// Jobs exposes the background job table.
type Jobs interface {
	Pending() []proc.Job
	Finished() []proc.Job
}

// Options configures a REPL.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Prompt is printed before each line when Interactive is set.
	Prompt      string
	ColorPrompt bool
	Interactive bool

	// AnnounceJobs prints "[N] pid" on launch and "[N] Done cmd" once the
	// job has been reaped.
	AnnounceJobs bool

	Logger *slog.Logger
}

// REPL is the shell's read-eval-print loop.
type REPL struct {
	in         *bufio.Reader
	out        io.Writer
	errOut     io.Writer
	dispatcher Dispatcher
	jobs       Jobs
	prompt     string
	announce   bool
	interact   bool
	logger     *slog.Logger

	lastStatus int
	exitStatus int
	exiting    bool
}

// New returns a REPL that runs commands through d and reports jobs from
// jobs. jobs may be nil when there is no background support.
func New(d Dispatcher, jobs Jobs, opts Options) *REPL {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	prompt := opts.Prompt
	if opts.Interactive && opts.ColorPrompt {
		prompt = stylePrompt(opts.Out, prompt)
	}

	return &REPL{
		in:         bufio.NewReader(opts.In),
		out:        opts.Out,
		errOut:     opts.Err,
		dispatcher: d,
		jobs:       jobs,
		prompt:     prompt,
		announce:   opts.AnnounceJobs,
		interact:   opts.Interactive,
		logger:     logger,
	}
}

// LastStatus is the status of the most recent command line.
func (r *REPL) LastStatus() int {
	return r.lastStatus
}

// Run reads and evaluates lines until end of input or the exit builtin.
// It returns the status the shell should exit with.
func (r *REPL) Run() (int, error) {
	for {
		r.announceFinished()
		if r.interact {
			fmt.Fprint(r.out, r.prompt)
		}

		line, err := r.in.ReadString('\n')
		if line != "" {
			r.Eval(line)
			if r.exiting {
				return r.exitStatus, nil
			}
		}
		if errors.Is(err, io.EOF) {
			if r.interact {
				fmt.Fprintln(r.out)
			}
			return r.lastStatus, nil
		}
		if err != nil {
			return r.lastStatus, fmt.Errorf("read command line: %w", err)
		}
	}
}

// Eval runs a single command line and returns its status.
func (r *REPL) Eval(line string) int {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(r.errOut, "minish: syntax error: %v\n", err)
		r.lastStatus = StatusUsage
		return r.lastStatus
	}
	if len(args) == 0 {
		return r.lastStatus
	}

	if b, ok := builtins[args[0]]; ok && !isSpecialLine(args) {
		r.lastStatus = b(r, args[1:])
		return r.lastStatus
	}

	res, err := r.dispatcher.Dispatch(args)
	switch {
	case res != nil && len(res.Statuses) > 0:
		r.lastStatus = res.ExitCode()
	case err != nil:
		// Already reported by the dispatcher.
		r.lastStatus = StatusFailure
	default:
		r.lastStatus = 0
	}

	if res != nil && res.Job != nil && r.announce {
		fmt.Fprintf(r.errOut, "[%d] %d\n", res.Job.ID, res.Job.PID)
	}
	return r.lastStatus
}

// Exiting reports whether the exit builtin has run.
func (r *REPL) Exiting() (int, bool) {
	return r.exitStatus, r.exiting
}

func (r *REPL) announceFinished() {
	if r.jobs == nil {
		return
	}
	for _, job := range r.jobs.Finished() {
		r.logger.Info("background job finished", "job", job.ID, "pid", job.PID, "status", job.Status.String())
		if r.announce {
			fmt.Fprintln(r.errOut, FormatDone(job))
		}
	}
}

// FormatDone renders the line printed once a background job is reaped.
func FormatDone(job proc.Job) string {
	state := "Done"
	switch {
	case job.Status.Signal != 0:
		state = "Killed (" + job.Status.Signal.String() + ")"
	case job.Status.Code != 0:
		state = fmt.Sprintf("Exit %d", job.Status.Code)
	}
	return fmt.Sprintf("[%d] %s %s", job.ID, state, job.Command)
}

// isSpecialLine reports whether a line that starts with a builtin name
// also uses a shell symbol. Such lines go to the dispatcher so "jobs | wc"
// behaves like any other pipeline.
func isSpecialLine(args []string) bool {
	for _, a := range args[1:] {
		switch strings.TrimSpace(a) {
		case "&", "<", ">", "|":
			return true
		}
	}
	return false
}
