package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minish.log")
	var sb strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&sb, `{"msg":"line %d","pad":"%s"}`+"\n", i, strings.Repeat("x", 100))
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func TestTailLogs_LastLines(t *testing.T) {
	// Enough lines to span several 4 KiB chunks.
	path := writeLog(t, 200)

	var out bytes.Buffer
	require.NoError(t, tailLogs(&out, path, 60))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 60)
	assert.Contains(t, lines[0], `"line 141"`)
	assert.Contains(t, lines[59], `"line 200"`)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}"), "line split across chunks: %q", line)
	}
}

func TestTailLogs_MoreThanAvailable(t *testing.T) {
	path := writeLog(t, 3)

	var out bytes.Buffer
	require.NoError(t, tailLogs(&out, path, 50))
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestTailLogs_EmptyAndZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	var out bytes.Buffer
	require.NoError(t, tailLogs(&out, path, 10))
	assert.Equal(t, "Log file is empty.\n", out.String())

	out.Reset()
	require.NoError(t, tailLogs(&out, path, 0))
	assert.Empty(t, out.String())
}

func TestReadChunkLines_ReadsActualBytesOnShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var offset int64 = 12
	lines, rest, err := readChunkLines(f, &offset, 4096, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"line1", "line2"}, lines)
	assert.Empty(t, rest)
	assert.Zero(t, offset)
}

func TestCollectTailLines_PropagatesReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	_ = f.Close() // force read error

	_, err = collectTailLines(f, 6, 1)
	assert.Error(t, err)
}

func TestFollowLogs(t *testing.T) {
	path := writeLog(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, &out, path) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Following")
	}, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("{\"msg\":\"appended\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "appended")
	}, 2*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), `"line 1"`, "existing lines are skipped")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestResolveLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	orig := configPath
	t.Cleanup(func() { configPath = orig })

	configPath = filepath.Join(dir, "missing.yaml")
	got, err := resolveLogFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "minish", "logs", "minish.log"), got)

	configPath = filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  file: /var/tmp/shell.log\n"), 0o644))
	got, err = resolveLogFile()
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/shell.log", got)
}
