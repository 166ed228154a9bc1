package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	commandLine string
)

var rootCmd = &cobra.Command{
	Use:   "minish",
	Short: "a minimal interactive shell",
	Long: `minish - a minimal interactive shell
  - simple commands, cmd &, cmd < file, cmd > file
  - pipelines: a | b | c`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := runShell(shellOptions{
			configPath: configPath,
			command:    commandLine,
			hasCommand: cmd.Flags().Changed("command"),
			stdin:      os.Stdin,
			stdout:     os.Stdout,
			stderr:     os.Stderr,
		})
		if err != nil {
			return err
		}
		if status != 0 {
			return &ExitError{Code: status}
		}
		return nil
	},
}

// ExitError carries the status of the last command out of Execute.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error from Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "minish: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.Flags().StringVarP(&commandLine, "command", "c", "", "run one command line and exit with its status")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/minish/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}
