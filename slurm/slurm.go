// Package slurm runs the Slurm command line programs (sinfo, srun,
// sbatch, squeue, scancel) on behalf of slurmconf.
package slurm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Slurm CLI commands
const (
	SInfoName   = "sinfo"
	SRunName    = "srun"
	SBatchName  = "sbatch"
	SQueueName  = "squeue"
	SCancelName = "scancel"
)

var (
	ErrNoNodes         = errors.New("no nodes to dispatch to")
	ErrSkipped         = errors.New("skipped after earlier failure")
	ErrInvalidHostlist = errors.New("invalid hostlist expression")
	ErrInvalidMode     = errors.New("invalid dispatch mode")
)

// CommandError is returned when a Slurm program fails.
type CommandError struct {
	Prog   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v (%q)", e.Prog, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Prog, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CLI runs Slurm programs found in PATH.
type CLI struct {
	Logger logrus.FieldLogger
	// Timeout applies to each program run; zero means none.
	Timeout time.Duration

	// (for testing) if non-nil, call stubCommand() instead of
	// exec.CommandContext() when running slurm command line programs.
	stubCommand func(ctx context.Context, prog string, args ...string) *exec.Cmd
}

func NewCLI(logger logrus.FieldLogger) *CLI {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CLI{Logger: logger}
}

func (cli *CLI) command(ctx context.Context, prog string, args ...string) *exec.Cmd {
	if f := cli.stubCommand; f != nil {
		return f(ctx, prog, args...)
	}
	return exec.CommandContext(ctx, prog, args...)
}

// run executes prog and returns its stdout. Stderr is logged and, on
// failure, attached to the returned *CommandError.
func (cli *CLI) run(ctx context.Context, prog string, args []string) ([]byte, error) {
	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}
	cmd := cli.command(ctx, prog, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	errTrim := strings.TrimSpace(stderr.String())
	log := cli.Logger.WithFields(logrus.Fields{
		"prog":    prog,
		"args":    args,
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	})
	if errTrim != "" {
		log = log.WithField("stderr", errTrim)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timeout: %w", ctx.Err())
		}
		log.WithError(err).Warn("command failed")
		return stdout.Bytes(), &CommandError{Prog: prog, Args: args, Stderr: errTrim, Err: err}
	}
	log.Debug("command finished")
	return stdout.Bytes(), nil
}
