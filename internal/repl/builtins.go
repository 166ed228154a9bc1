package repl

import (
	"fmt"
	"os"
	"strconv"
)

type builtin func(r *REPL, args []string) int

var builtins = map[string]builtin{
	"cd":   builtinCd,
	"exit": builtinExit,
	"jobs": builtinJobs,
}

func builtinCd(r *REPL, args []string) int {
	var dir string
	switch len(args) {
	case 0:
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(r.errOut, "minish: cd: %v\n", err)
			return StatusFailure
		}
		dir = home
	case 1:
		dir = args[0]
	default:
		fmt.Fprintln(r.errOut, "minish: cd: too many arguments")
		return StatusFailure
	}

	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(r.errOut, "minish: cd: %v\n", err)
		return StatusFailure
	}
	r.logger.Debug("changed directory", "dir", dir)
	return 0
}

func builtinExit(r *REPL, args []string) int {
	status := r.lastStatus
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(r.errOut, "minish: exit: %s: numeric argument required\n", args[0])
			status = StatusUsage
			break
		}
		status = n & 0xff
	default:
		fmt.Fprintln(r.errOut, "minish: exit: too many arguments")
		return StatusFailure
	}

	r.exiting = true
	r.exitStatus = status
	return status
}

func builtinJobs(r *REPL, args []string) int {
	if r.jobs == nil {
		return 0
	}
	for _, job := range r.jobs.Pending() {
		fmt.Fprintf(r.out, "[%d] %-8s %d %s\n", job.ID, job.State, job.PID, job.Command)
	}
	return 0
}
