package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/runger/minish/internal/config"
	"github.com/runger/minish/internal/dispatch"
	"github.com/runger/minish/internal/logging"
	"github.com/runger/minish/internal/proc"
	"github.com/runger/minish/internal/repl"
)

type shellOptions struct {
	configPath string
	command    string
	hasCommand bool

	stdin  *os.File
	stdout *os.File
	stderr *os.File
}

// runShell starts a shell session and returns the status the process
// should exit with.
func runShell(opts shellOptions) (int, error) {
	paths := config.DefaultPaths()
	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = paths.ConfigFile()
	}

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return 1, fmt.Errorf("failed to load config: %w", err)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = paths.LogFile()
	}
	logger, closeLog, err := logging.NewFile(logFile, logging.ParseLevel(cfg.Log.Level))
	if err != nil && cfg.Log.File != "" {
		fmt.Fprintf(opts.stderr, "minish: logging disabled: %v\n", err)
	}
	defer closeLog()

	interactive := !opts.hasCommand && repl.IsTerminal(opts.stdin.Fd())
	logging.LogStartup(logger, logging.StartupInfo{
		Version:     Version,
		ConfigPath:  cfgPath,
		Interactive: interactive,
		MaxStages:   cfg.Shell.MaxPipelineStages,
		PID:         os.Getpid(),
	})

	signals := proc.Setup(logger)
	defer signals.Stop()

	d := dispatch.New(signals, dispatch.Options{
		MaxStages: cfg.Shell.MaxPipelineStages,
		Stdio:     dispatch.Stdio{In: opts.stdin, Out: opts.stdout, Err: opts.stderr},
		Logger:    logger,
	})
	r := repl.New(d, signals.Reaper(), repl.Options{
		In:           opts.stdin,
		Out:          opts.stdout,
		Err:          opts.stderr,
		Prompt:       cfg.Shell.Prompt,
		ColorPrompt:  cfg.Shell.ColorPrompt,
		Interactive:  interactive,
		AnnounceJobs: cfg.Shell.AnnounceJobs && interactive,
		Logger:       logger,
	})

	if opts.hasCommand {
		status := r.Eval(opts.command)
		if code, exiting := r.Exiting(); exiting {
			status = code
		}
		logging.LogShutdown(logger, "command finished", status)
		return status, nil
	}

	status, err := r.Run()
	reason := "end of input"
	if err != nil {
		reason = "read error"
		logger.Error("reading commands", slog.Any("error", err))
	}
	logging.LogShutdown(logger, reason, status)
	return status, err
}
