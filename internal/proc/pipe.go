package proc

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Pipe is one interprocess channel. Both ends are close-on-exec, so a child
// only keeps the end installed in its descriptor table.
type Pipe struct {
	R int
	W int
}

// NewPipe creates a pipe with both ends marked close-on-exec.
func NewPipe() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("pipe2", err)
	}
	return &Pipe{R: fds[0], W: fds[1]}, nil
}

// Close closes whichever ends are still open. It is safe to call twice.
func (p *Pipe) Close() error {
	var errs []error
	if p.R >= 0 {
		errs = append(errs, closeFD(p.R))
		p.R = -1
	}
	if p.W >= 0 {
		errs = append(errs, closeFD(p.W))
		p.W = -1
	}
	return errors.Join(errs...)
}

// ClosePipes closes every end of every pipe.
func ClosePipes(pipes []*Pipe) error {
	var errs []error
	for _, p := range pipes {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// OpenInput opens path read-only for use as a child's standard input.
func OpenInput(path string) (int, error) {
	return openFD(path, unix.O_RDONLY, 0)
}

// OpenOutput creates or truncates path, owner read/write only, for use as a
// child's standard output.
func OpenOutput(path string) (int, error) {
	return openFD(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0o600)
}

// CloseFD closes a descriptor returned by OpenInput or OpenOutput.
func CloseFD(fd int) error {
	return closeFD(fd)
}

func openFD(path string, flags int, mode uint32) (int, error) {
	for {
		fd, err := unix.Open(path, flags|unix.O_CLOEXEC, mode)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return -1, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return fd, nil
	}
}

func closeFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
