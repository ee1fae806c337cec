package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
	"github.com/ehein6/slurm-scripts/slurm"
)

// ProbeAlias runs the probe command directly, so the binary can be
// installed where the get_slurm_conf helper used to live.
const ProbeAlias = "get_slurm_conf"

var parser = flags.NewNamedParser("slurmconf", flags.PassDoubleDash|flags.IgnoreUnknown)

// Cancelled on SIGINT/SIGTERM; commands run their Slurm programs under it.
var rootCtx = context.Background()

func printHelp(parser *flags.Parser) {
	// Print help for active command
	if cmd := activeCommand(); cmd != nil {
		root := parser.Command
		parser.Command = cmd
		defer func() { parser.Command = root }()
	}
	var b bytes.Buffer
	parser.WriteHelp(&b)
	fmt.Println(b.String())
}

// activeCommand returns the innermost active (sub)command.
func activeCommand() *flags.Command {
	cmd := parser.Command.Active
	for cmd != nil && cmd.Active != nil {
		cmd = cmd.Active
	}
	return cmd
}

// optionSet reports whether a long option of the active command was
// given on the command line.
func optionSet(long string) bool {
	cmd := activeCommand()
	if cmd == nil {
		return false
	}
	opt := cmd.FindOptionByLongName(long)
	return opt != nil && opt.IsSet()
}

func main() {
	var cancel context.CancelFunc
	rootCtx, cancel = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := logger.Init(); err != nil {
		logger.DebugPrintf("log file disabled: %v", err)
	}
	code := run(os.Args)
	cancel()
	os.Exit(code)
}

func run(osArgs []string) int {
	var err error
	args := osArgs[1:]
	if filepath.Base(osArgs[0]) == ProbeAlias {
		args = append([]string{"probe"}, args...)
	}
	// a previous run leaves its command chain active
	for cmd := parser.Command; cmd != nil; {
		next := cmd.Active
		cmd.Active = nil
		cmd = next
	}
	// IgnoreUnknown would pass a root --help through as an unknown command
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		err = core.CreateHelpErr()
	} else if _, err = parser.ParseArgs(args); err == nil {
		return 0
	}
	switch flagsErr := err.(type) {
	case *flags.Error:
		if flagsErr.Type == flags.ErrHelp ||
			flagsErr.Type == flags.ErrCommandRequired ||
			flagsErr.Type == flags.ErrRequired {
			printHelp(parser)
			return 0
		} else if flagsErr.Type == flags.ErrUnknownCommand {
			fmt.Fprintf(os.Stderr, "%v\n\n", flagsErr.Message)
			printHelp(parser)
			return 1
		} else if flagsErr.Type == flags.ErrMarshal {
			fmt.Fprintln(os.Stderr, "Invalid syntax")
			printHelp(parser)
			return 1
		}
		fmt.Fprintln(os.Stderr, flagsErr.Error())
		return 1
	default:
		fmt.Fprintln(os.Stderr, err.Error())
		var derr *slurm.DispatchError
		if errors.As(err, &derr) {
			return 2
		}
		return 1
	}
}
