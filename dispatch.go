package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
	"github.com/ehein6/slurm-scripts/slurm"
)

type DispatchCommand struct {
	Config      ProfileOptions       `group:"Profile Options"`
	Selection   NodeSelectionOptions `group:"Node Selection"`
	Mode        string               `short:"m" long:"mode" description:"launch with srun (wait for output) or sbatch (submit)" choice:"srun" choice:"sbatch"`
	Background  bool                 `short:"b" long:"background" description:"dispatch to all nodes concurrently"`
	Parallel    int                  `short:"j" long:"parallel" description:"maximum concurrent launches with --background (0: all nodes)"`
	FailFast    bool                 `short:"e" long:"fail-fast" description:"stop dispatching after the first failure"`
	Helper      string               `long:"helper" description:"helper command run on each node (default: this program's probe command)"`
	JobName     string               `short:"J" long:"job-name" description:"Slurm job name"`
	ConfFile    string               `short:"c" long:"conf-file" description:"configuration file passed to the helper"`
	Interfaces  []string             `short:"i" long:"interface" description:"network interface for the default helper's NodeAddr (repeatable)"`
	MetricsFile string               `long:"metrics-file" description:"write dispatch metrics in node_exporter textfile format"`
}

var dispatchCommand DispatchCommand

// applyDispatchOptions overrides the profile with the options given
// explicitly on the command line.
func (x *DispatchCommand) applyDispatchOptions(p core.Profile) core.Profile {
	if optionSet("mode") {
		p.Mode = x.Mode
	}
	if optionSet("background") {
		p.Background = x.Background
	}
	if optionSet("parallel") {
		p.Parallel = x.Parallel
	}
	if optionSet("fail-fast") {
		p.FailFast = x.FailFast
	}
	if optionSet("helper") {
		p.Helper = x.Helper
	}
	if optionSet("job-name") {
		p.JobName = x.JobName
	}
	if optionSet("conf-file") {
		p.ConfFile = x.ConfFile
	}
	if optionSet("interface") {
		p.Interfaces = x.Interfaces
	}
	return p
}

// slurmArgs normalises the profile's Slurm options followed by the ones
// from the command line. Options that would break one-job-per-node
// dispatch are dropped with a warning.
func slurmArgs(mode slurm.Mode, p core.Profile, args []string) ([]string, error) {
	extra := append(append([]string(nil), p.SlurmArgs...), args...)
	normalized, dropped, err := slurm.NormalizeArgs(string(mode), extra)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		logger.WarningPrintf("WARNING: %d unsupported %s options ignored: %s",
			len(dropped), mode, slurm.OptionList(dropped))
	}
	// Nodes from a partition filter are dispatched in that partition
	if p.Partition != "" && !hasOption(normalized, "--partition") {
		normalized = append(normalized, "--partition="+p.Partition)
	}
	return normalized, nil
}

func hasOption(args []string, long string) bool {
	for _, arg := range args {
		if arg == long || strings.HasPrefix(arg, long+"=") {
			return true
		}
	}
	return false
}

func (x *DispatchCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	profile, err := loadProfile(x.Config, &x.Selection)
	if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	profile = x.applyDispatchOptions(profile)

	mode, err := slurm.ParseMode(profile.Mode)
	if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	extra, err := slurmArgs(mode, profile, args)
	if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	helper, err := helperCommand(profile)
	if err != nil {
		return errors.New("dispatch: helper: " + err.Error())
	}
	cli, err := newCLI(profile)
	if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	nodes, err := selectNodes(rootCtx, cli, profile, x.Selection)
	if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	logger.InfoPrintf("dispatching to %d nodes: %s", len(nodes), slurm.CompressHostlist(nodes))

	dispatcher := &slurm.Dispatcher{
		CLI:        cli,
		Logger:     logger.Logger(),
		Background: profile.Background,
		Parallel:   profile.Parallel,
		FailFast:   profile.FailFast,
	}
	if x.MetricsFile != "" {
		dispatcher.Metrics = slurm.NewMetrics()
	}
	results, err := dispatcher.Run(rootCtx, nodes, slurm.Request{
		Mode:      mode,
		Helper:    helper,
		ConfFile:  profile.ConfFile,
		JobName:   profile.JobName,
		ExtraArgs: extra,
	})
	printResults(mode, results)

	if dispatcher.Metrics != nil {
		if merr := dispatcher.Metrics.WriteTextfile(x.MetricsFile); merr != nil {
			logger.ErrorPrintf("dispatch: metrics: %v", merr)
		}
	}
	var derr *slurm.DispatchError
	if errors.As(err, &derr) {
		return fmt.Errorf("dispatch: %w", derr)
	} else if err != nil {
		return errors.New("dispatch: " + err.Error())
	}
	return nil
}

func printResults(mode slurm.Mode, results []slurm.Result) {
	for _, res := range results {
		switch {
		case res.Err == slurm.ErrSkipped:
			continue
		case res.Err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Node, res.Err)
		case mode == slurm.ModeSbatch:
			fmt.Printf("Submitted batch job %s on %s\n", res.JobID, res.Node)
		default:
			os.Stdout.Write(res.Output)
		}
	}
}

func init() {
	parser.AddCommand("dispatch",
		"Run the helper on every node",
		"The dispatch command runs the configuration helper on each selected node "+
			"with srun, or submits it with sbatch. Options not recognised here, "+
			"or given after --, are passed on to srun/sbatch.",
		&dispatchCommand)
}
