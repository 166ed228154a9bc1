package repl

import (
	"os"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/minish/internal/dispatch"
	"github.com/runger/minish/internal/proc"
)

var testSignals *proc.Signals

func TestMain(m *testing.M) {
	testSignals = proc.Setup(nil)
	code := m.Run()
	testSignals.Stop()
	os.Exit(code)
}

type session struct {
	console *expect.Console
	done    chan int
}

// startSession runs a real REPL and dispatcher on a pseudo-terminal.
func startSession(t *testing.T) *session {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	console, err := expect.NewConsole(expect.WithDefaultTimeout(5 * time.Second))
	require.NoError(t, err)
	tty := console.Tty()

	d := dispatch.New(testSignals, dispatch.Options{
		Stdio: dispatch.Stdio{In: tty, Out: tty, Err: tty},
	})
	r := New(d, testSignals.Reaper(), Options{
		In:           tty,
		Out:          tty,
		Err:          tty,
		Prompt:       "minish> ",
		Interactive:  true,
		AnnounceJobs: true,
	})

	s := &session{console: console, done: make(chan int, 1)}
	go func() {
		status, _ := r.Run()
		s.done <- status
	}()

	t.Cleanup(func() {
		console.Tty().Close()
		console.Close()
	})

	_, err = console.ExpectString("minish> ")
	require.NoError(t, err)
	return s
}

// run sends line and waits for want. The terminal echoes input, so want
// should be something only the command's output contains.
func (s *session) run(t *testing.T, line, want string) {
	t.Helper()
	_, err := s.console.SendLine(line)
	require.NoError(t, err)
	_, err = s.console.ExpectString(want)
	require.NoError(t, err, "waiting for %q after %q", want, line)
}

func (s *session) exit(t *testing.T, line string) int {
	t.Helper()
	_, err := s.console.SendLine(line)
	require.NoError(t, err)
	select {
	case status := <-s.done:
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
		return -1
	}
}

func TestIsTerminal(t *testing.T) {
	console, err := expect.NewConsole()
	require.NoError(t, err)
	defer console.Close()

	assert.True(t, IsTerminal(console.Tty().Fd()))

	f, err := os.CreateTemp(t.TempDir(), "plain")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f.Fd()))
}

func TestConsole_SimpleAndPipeline(t *testing.T) {
	s := startSession(t)

	s.run(t, "sh -c 'echo $((6*7))'", "42")
	s.run(t, "echo piped | tr a-z A-Z", "PIPED")
	assert.Equal(t, 0, s.exit(t, "exit"))
}

func TestConsole_MissingProgramKeepsShellAlive(t *testing.T) {
	s := startSession(t)

	s.run(t, "echo still here | tr a-z A-Z", "STILL HERE")
	s.run(t, "minish-no-such-program", "minish: minish-no-such-program:")
	s.run(t, "echo alive | tr a-z A-Z", "ALIVE")
	s.run(t, "minish-no-such-program", "minish: minish-no-such-program:")
	assert.Equal(t, proc.ExitNotFound, s.exit(t, "exit"))
}

func TestConsole_BackgroundJob(t *testing.T) {
	s := startSession(t)

	_, err := s.console.SendLine("sleep 0.2 &")
	require.NoError(t, err)
	_, err = s.console.Expect(expect.RegexpPattern(`\[\d+\] \d+`))
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	s.run(t, "", "Done sleep 0.2")
	assert.Equal(t, 4, s.exit(t, "exit 4"))
}

func TestConsole_Redirection(t *testing.T) {
	s := startSession(t)
	out := t.TempDir() + "/out.txt"

	s.run(t, "echo saved > "+out, "minish> ")
	s.run(t, "cat < "+out, "saved")
	assert.Equal(t, 0, s.exit(t, "exit"))
}
