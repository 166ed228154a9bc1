package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sys/execabs"
	"golang.org/x/sys/unix"
)

// Disposition decides how a child treats the interrupt signal and who reaps it.
type Disposition int

const (
	// Foreground children die on interrupt and are waited for by the caller.
	Foreground Disposition = iota
	// Background children ignore interrupt and are reaped by the Reaper.
	Background
)

func (d Disposition) String() string {
	if d == Background {
		return "background"
	}
	return "foreground"
}

// Exit codes used for commands that never started.
const (
	ExitCannotExecute = 126
	ExitNotFound      = 127
)

// ErrForkResources is returned when the kernel refuses to create a process.
var ErrForkResources = errors.New("cannot create process")

// LaunchError means the program could not be started. It is a property of
// the command, not of the shell: callers report it and record Code as the
// command's exit status.
type LaunchError struct {
	Name string
	Code int
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Files is the descriptor table installed as a child's stdin, stdout and stderr.
type Files struct {
	Stdin  uintptr
	Stdout uintptr
	Stderr uintptr
}

// StdFiles builds a descriptor table from open files.
func StdFiles(stdin, stdout, stderr *os.File) Files {
	return Files{Stdin: stdin.Fd(), Stdout: stdout.Fd(), Stderr: stderr.Fd()}
}

// WithStdin returns a copy of f reading from fd.
func (f Files) WithStdin(fd int) Files {
	f.Stdin = uintptr(fd)
	return f
}

// WithStdout returns a copy of f writing to fd.
func (f Files) WithStdout(fd int) Files {
	f.Stdout = uintptr(fd)
	return f
}

// Launcher starts external programs.
type Launcher struct {
	signals *Signals
	logger  *slog.Logger

	// Test seams.
	lookPath func(string) (string, error)
	forkExec func(string, []string, *syscall.ProcAttr) (int, error)
}

// NewLauncher returns a Launcher bound to the process-wide signal setup.
func NewLauncher(signals *Signals, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{
		signals:  signals,
		logger:   logger,
		lookPath: execabs.LookPath,
		forkExec: syscall.ForkExec,
	}
}

// Launch starts args[0], searched for in PATH, with args as its argument
// vector and files as its standard descriptors. It returns as soon as the
// program has replaced the forked child; it never waits.
//
// A program that cannot be found or executed yields a *LaunchError. Running
// out of process slots or descriptors yields ErrForkResources.
func (l *Launcher) Launch(args []string, d Disposition, files Files) (int, error) {
	if len(args) == 0 {
		return 0, &LaunchError{Code: ExitNotFound, Err: errors.New("empty command")}
	}

	path, err := l.lookPath(args[0])
	if err != nil {
		code := ExitNotFound
		if errors.Is(err, fs.ErrPermission) {
			code = ExitCannotExecute
		}
		return 0, &LaunchError{Name: args[0], Code: code, Err: unwrapExecError(err)}
	}

	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{files.Stdin, files.Stdout, files.Stderr},
		Sys:   &syscall.SysProcAttr{},
	}

	var pid int
	start := func() error {
		var err error
		pid, err = l.forkExec(path, args, attr)
		return err
	}

	if d == Background {
		err = l.signals.withInterruptIgnored(start)
	} else {
		err = start()
	}
	if err != nil {
		if isResourceErr(err) {
			return 0, fmt.Errorf("%w: %v", ErrForkResources, err)
		}
		return 0, &LaunchError{Name: args[0], Code: ExitCannotExecute, Err: err}
	}

	l.logger.Debug("process launched", "pid", pid, "path", path, "disposition", d.String())
	return pid, nil
}

func isResourceErr(err error) bool {
	for _, errno := range []error{unix.EAGAIN, unix.ENOMEM, unix.EMFILE, unix.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// unwrapExecError strips the *exec.Error wrapper so messages read
// "name: executable file not found in $PATH" rather than repeating the name.
func unwrapExecError(err error) error {
	var execErr *execabs.Error
	if errors.As(err, &execErr) {
		return execErr.Err
	}
	return err
}
