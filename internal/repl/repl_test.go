package repl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/minish/internal/argv"
	"github.com/runger/minish/internal/dispatch"
	"github.com/runger/minish/internal/proc"
)

// fakeDispatcher records every line and answers from a queue.
type fakeDispatcher struct {
	lines   [][]string
	results []*dispatch.Result
	errs    []error
}

func (f *fakeDispatcher) Dispatch(args []string) (*dispatch.Result, error) {
	f.lines = append(f.lines, args)
	var res *dispatch.Result
	var err error
	if len(f.results) > 0 {
		res, f.results = f.results[0], f.results[1:]
	}
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if res == nil && err == nil {
		res = &dispatch.Result{Statuses: []proc.Status{{Code: 0, Reaped: true}}}
	}
	return res, err
}

type fakeJobs struct {
	pending  []proc.Job
	finished []proc.Job
}

func (f *fakeJobs) Pending() []proc.Job { return f.pending }

func (f *fakeJobs) Finished() []proc.Job {
	out := f.finished
	f.finished = nil
	return out
}

func newTestREPL(input string, d Dispatcher, jobs Jobs) (*REPL, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := New(d, jobs, Options{
		In:           strings.NewReader(input),
		Out:          &out,
		Err:          &errOut,
		Prompt:       "$ ",
		AnnounceJobs: true,
	})
	return r, &out, &errOut
}

func TestEval_TokenizesWithQuotes(t *testing.T) {
	d := &fakeDispatcher{}
	r, _, _ := newTestREPL("", d, nil)

	r.Eval(`grep "two words" 'single quoted' plain\ escaped | wc -l`)

	require.Len(t, d.lines, 1)
	assert.Equal(t, []string{"grep", "two words", "single quoted", "plain escaped", "|", "wc", "-l"}, d.lines[0])
}

func TestEval_BlankAndCommentLines(t *testing.T) {
	d := &fakeDispatcher{}
	r, _, _ := newTestREPL("", d, nil)

	assert.Equal(t, 0, r.Eval("   \n"))
	assert.Equal(t, 0, r.Eval("# just a comment"))
	assert.Empty(t, d.lines)
}

func TestEval_SyntaxError(t *testing.T) {
	d := &fakeDispatcher{}
	r, _, errOut := newTestREPL("", d, nil)

	assert.Equal(t, StatusUsage, r.Eval(`echo "unterminated`))
	assert.Empty(t, d.lines)
	assert.Contains(t, errOut.String(), "minish: syntax error")
}

func TestEval_Status(t *testing.T) {
	tests := []struct {
		name string
		res  *dispatch.Result
		err  error
		want int
	}{
		{
			name: "success",
			res:  &dispatch.Result{Statuses: []proc.Status{{Code: 0}}},
			want: 0,
		},
		{
			name: "last stage wins",
			res:  &dispatch.Result{Statuses: []proc.Status{{Code: 0}, {Code: 4}}},
			want: 4,
		},
		{
			name: "not found",
			res:  &dispatch.Result{Statuses: []proc.Status{proc.ExitStatus(proc.ExitNotFound)}},
			want: proc.ExitNotFound,
		},
		{
			name: "dispatch failure",
			err:  argv.ErrTooManyStages,
			want: StatusFailure,
		},
		{
			name: "partial pipeline with fork failure",
			res:  &dispatch.Result{Statuses: []proc.Status{{Code: 9}}},
			err:  proc.ErrForkResources,
			want: 9,
		},
		{
			name: "background",
			res:  &dispatch.Result{Shape: argv.ShapeBackground, Job: &proc.Job{ID: 1, PID: 100}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{results: []*dispatch.Result{tt.res}, errs: []error{tt.err}}
			r, _, _ := newTestREPL("", d, nil)

			assert.Equal(t, tt.want, r.Eval("cmd"))
			assert.Equal(t, tt.want, r.LastStatus())
		})
	}
}

func TestEval_AnnouncesBackgroundJob(t *testing.T) {
	d := &fakeDispatcher{results: []*dispatch.Result{
		{Shape: argv.ShapeBackground, Job: &proc.Job{ID: 3, PID: 4242, Command: "sleep 10"}},
	}}
	r, _, errOut := newTestREPL("", d, nil)

	r.Eval("sleep 10 &")
	assert.Equal(t, "[3] 4242\n", errOut.String())
}

func TestEval_BuiltinWithSymbolsGoesToDispatcher(t *testing.T) {
	d := &fakeDispatcher{}
	r, _, _ := newTestREPL("", d, nil)

	r.Eval("jobs | wc -l")
	r.Eval("exit &")

	require.Len(t, d.lines, 2)
	_, exiting := r.Exiting()
	assert.False(t, exiting)
}

func TestRun_AnnouncesFinishedJobs(t *testing.T) {
	jobs := &fakeJobs{finished: []proc.Job{
		{ID: 1, Command: "true", State: proc.JobDone},
		{ID: 2, Command: "false", State: proc.JobDone, Status: proc.Status{Code: 1}},
		{ID: 3, Command: "sleep 100", State: proc.JobDone, Status: proc.Status{Code: 130, Signal: syscall.SIGINT}},
	}}
	r, _, errOut := newTestREPL("", &fakeDispatcher{}, jobs)

	status, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[1] Done true", lines[0])
	assert.Equal(t, "[2] Exit 1 false", lines[1])
	assert.Equal(t, "[3] Killed (interrupt) sleep 100", lines[2])
}

func TestRun_QuietJobs(t *testing.T) {
	jobs := &fakeJobs{finished: []proc.Job{{ID: 1, Command: "true"}}}
	var errOut bytes.Buffer
	r := New(&fakeDispatcher{}, jobs, Options{
		In:  strings.NewReader(""),
		Out: &bytes.Buffer{},
		Err: &errOut,
	})

	_, err := r.Run()
	require.NoError(t, err)
	assert.Empty(t, errOut.String())
}

func TestRun_ReturnsLastStatusAtEOF(t *testing.T) {
	d := &fakeDispatcher{results: []*dispatch.Result{
		{Statuses: []proc.Status{{Code: 0}}},
		{Statuses: []proc.Status{{Code: 5}}},
	}}
	r, out, _ := newTestREPL("true\nfalse", d, nil)

	status, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, 5, status)
	assert.Len(t, d.lines, 2, "a final line without newline still runs")
	assert.Empty(t, out.String(), "no prompt when not interactive")
}

func TestRun_InteractivePrompt(t *testing.T) {
	var out bytes.Buffer
	r := New(&fakeDispatcher{}, nil, Options{
		In:          strings.NewReader("true\n"),
		Out:         &out,
		Err:         &bytes.Buffer{},
		Prompt:      "$ ",
		Interactive: true,
	})

	_, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, "$ $ \n", out.String())
}

func TestRun_ExitStopsReading(t *testing.T) {
	d := &fakeDispatcher{}
	r, _, _ := newTestREPL("exit 3\necho never\n", d, nil)

	status, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, status)
	assert.Empty(t, d.lines)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestRun_ReadError(t *testing.T) {
	r := New(&fakeDispatcher{}, nil, Options{In: failingReader{}, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})

	_, err := r.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read command line")
}

func TestBuiltinExit(t *testing.T) {
	tests := []struct {
		line    string
		want    int
		exiting bool
	}{
		{"exit", 7, true}, // inherits the previous status
		{"exit 0", 0, true},
		{"exit 300", 300 & 0xff, true},
		{"exit nope", StatusUsage, true},
		{"exit 1 2", StatusFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r, _, _ := newTestREPL("", &fakeDispatcher{}, nil)
			r.lastStatus = 7

			r.Eval(tt.line)
			status, exiting := r.Exiting()
			assert.Equal(t, tt.exiting, exiting)
			if exiting {
				assert.Equal(t, tt.want, status)
			} else {
				assert.Equal(t, tt.want, r.LastStatus())
			}
		})
	}
}

func TestBuiltinCd(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	r, _, errOut := newTestREPL("", &fakeDispatcher{}, nil)

	assert.Equal(t, 0, r.Eval("cd "+dir))
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, dir, wd)

	assert.Equal(t, StatusFailure, r.Eval("cd "+filepath.Join(dir, "missing")))
	assert.Contains(t, errOut.String(), "minish: cd:")

	assert.Equal(t, StatusFailure, r.Eval("cd a b"))

	t.Setenv("HOME", dir)
	require.NoError(t, os.Chdir(orig))
	assert.Equal(t, 0, r.Eval("cd"))
	wd, err = os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, dir, wd)
}

func TestBuiltinJobs(t *testing.T) {
	jobs := &fakeJobs{pending: []proc.Job{
		{ID: 1, PID: 11, Command: "sleep 5", State: proc.JobRunning},
		{ID: 4, PID: 44, Command: "yes", State: proc.JobRunning},
	}}
	r, out, _ := newTestREPL("", &fakeDispatcher{}, jobs)

	assert.Equal(t, 0, r.Eval("jobs"))
	assert.Equal(t, "[1] Running  11 sleep 5\n[4] Running  44 yes\n", out.String())
}

func TestFormatDone(t *testing.T) {
	assert.Equal(t, "[2] Done ls -l", FormatDone(proc.Job{ID: 2, Command: "ls -l"}))
	assert.Equal(t, "[2] Exit 127 nope", FormatDone(proc.Job{ID: 2, Command: "nope", Status: proc.Status{Code: 127}}))
}
