package proc

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Signals is the process-wide signal setup every launch depends on. While
// it is active the shell survives interrupts, foreground children inherit
// the default interrupt action, and terminated background children are
// reaped as soon as SIGCHLD arrives.
//
// Only one Signals should be active at a time; Setup changes dispositions
// for the whole process.
type Signals struct {
	// mu serializes interrupt disposition changes around background forks.
	mu sync.Mutex

	intr   chan os.Signal
	chld   chan os.Signal
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	reaper *Reaper
	logger *slog.Logger
}

// Setup installs the interrupt and child-termination handlers and starts the
// reaper loop. Go installs its handlers with SA_RESTART, so slow system
// calls interrupted by SIGCHLD are restarted.
func Setup(logger *slog.Logger) *Signals {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Signals{
		intr:   make(chan os.Signal, 1),
		chld:   make(chan os.Signal, 1),
		stop:   make(chan struct{}),
		reaper: NewReaper(logger),
		logger: logger,
	}

	// Catching (not ignoring) SIGINT keeps the shell alive while letting exec
	// reset the action to default in foreground children.
	signal.Notify(s.intr, os.Interrupt)
	signal.Notify(s.chld, unix.SIGCHLD)

	s.wg.Add(1)
	go s.loop()

	logger.Debug("signal handlers installed")
	return s
}

// Reaper returns the reaper owned by this setup.
func (s *Signals) Reaper() *Reaper {
	return s.reaper
}

// Stop removes the handlers and stops the reaper loop after a final drain.
func (s *Signals) Stop() {
	s.once.Do(func() {
		signal.Stop(s.intr)
		signal.Stop(s.chld)
		close(s.stop)
		s.wg.Wait()
		s.reaper.Drain()
	})
}

func (s *Signals) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.intr:
			s.logger.Debug("interrupt ignored by shell")
		case <-s.chld:
			s.reaper.Drain()
		case <-s.reaper.Kicked():
			s.reaper.Drain()
		}
	}
}

// withInterruptIgnored runs fn with SIGINT ignored so that a child forked by
// fn keeps the ignored disposition across exec.
func (s *Signals) withInterruptIgnored(fn func() error) error {
	if s == nil {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	signal.Ignore(os.Interrupt)
	defer signal.Notify(s.intr, os.Interrupt)
	return fn()
}
