package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/minish/internal/config"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View shell logs",
	Long: `View the minish structured log file.

By default, shows the last 50 lines of the log file.
Use --follow to continuously monitor new log entries.

Examples:
  minish logs              # Show last 50 lines
  minish logs -f           # Follow log output
  minish logs --lines=100  # Show last 100 lines`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	logFile, err := resolveLogFile()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "No log file found at: %s\n", logFile)
		fmt.Fprintln(out, "minish writes it on its first run.")
		return nil
	}

	if logsFollow {
		return followLogs(cmd.Context(), out, logFile)
	}

	return tailLogs(out, logFile, logsLines)
}

// resolveLogFile returns log.file from the config, or the default path.
func resolveLogFile() (string, error) {
	paths := config.DefaultPaths()
	path := configPath
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Log.File != "" {
		return cfg.Log.File, nil
	}
	return paths.LogFile(), nil
}

func tailLogs(out io.Writer, filename string, n int) error {
	// Validate n to prevent panic on negative capacity
	if n <= 0 {
		return nil
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		fmt.Fprintln(out, "Log file is empty.")
		return nil
	}

	lines, err := collectTailLines(f, size, n)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

// collectTailLines reads f backwards from size until it has the last n
// lines.
func collectTailLines(f io.ReaderAt, size int64, n int) ([]string, error) {
	const bufSize = int64(4096)

	lines := make([]string, 0, n)
	offset := size
	remainder := "" // Carry partial line fragment between chunks

	for len(lines) < n && offset > 0 {
		chunkLines, rest, err := readChunkLines(f, &offset, bufSize, remainder)
		if err != nil {
			return nil, err
		}
		remainder = rest

		// Prepend lines
		for i := len(chunkLines) - 1; i >= 0 && len(lines) < n; i-- {
			if chunkLines[i] != "" || len(lines) > 0 {
				lines = append([]string{chunkLines[i]}, lines...)
			}
		}
	}

	if remainder != "" && len(lines) < n {
		lines = append([]string{remainder}, lines...)
	}
	return lines, nil
}

// readChunkLines reads the chunk that ends at *offset, moves *offset back
// and returns its complete lines plus the leading fragment, which may
// continue in the previous chunk.
func readChunkLines(f io.ReaderAt, offset *int64, bufSize int64, remainder string) ([]string, string, error) {
	readSize := bufSize
	if *offset < bufSize {
		readSize = *offset
	}
	*offset -= readSize

	buf := make([]byte, readSize)
	nread, err := f.ReadAt(buf, *offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("failed to read log file: %w", err)
	}

	chunkLines := splitLines(string(buf[:nread]) + remainder)
	if *offset > 0 && len(chunkLines) > 0 {
		return chunkLines[1:], chunkLines[0], nil
	}
	return chunkLines, "", nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func followLogs(ctx context.Context, out io.Writer, filename string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following %s (Ctrl+C to stop)...\n", filename)
	fmt.Fprintln(out)

	reader := bufio.NewReader(f)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Print any partial fragment before waiting
				if line != "" {
					fmt.Fprint(out, line)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			return fmt.Errorf("error reading log: %w", err)
		}

		fmt.Fprint(out, line)
	}
}
