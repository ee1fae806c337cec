package main

import (
	"context"
	"errors"
	"os"

	"github.com/google/shlex"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
	"github.com/ehein6/slurm-scripts/slurm"
)

type ProfileOptions struct {
	Help    bool   `short:"h" long:"help" description:"Show this help message"`
	Profile string `short:"P" long:"profile" description:"profile from the config file (default: selected with 'profile use', else default)"`
	Timeout string `long:"timeout" description:"timeout for each Slurm command, e.g. 30s or 10m"`
	Debug   bool   `short:"v" long:"verbose" description:"debug logging"`
}

type NodeSelectionOptions struct {
	Partition  string   `short:"p" long:"partition" description:"only nodes in this partition"`
	Responding bool     `short:"r" long:"responding" description:"only nodes that are responding"`
	States     []string `short:"t" long:"states" description:"only nodes in this state (repeatable)"`
	NodeList   string   `short:"w" long:"nodelist" description:"use this hostlist instead of asking sinfo"`
}

// loadProfile applies the command line on top of the selected profile.
// Only options given explicitly override the profile.
func loadProfile(opts ProfileOptions, sel *NodeSelectionOptions) (core.Profile, error) {
	if opts.Debug {
		logger.SetLevel(logger.SLURMCONF_DEBUG_LOGGING)
	}
	p, err := core.LoadProfile(opts.Profile)
	if err != nil {
		return p, err
	}
	if optionSet("timeout") {
		p.Timeout = opts.Timeout
	}
	if sel != nil {
		if optionSet("partition") {
			p.Partition = sel.Partition
		}
		if optionSet("responding") {
			p.Responding = sel.Responding
		}
		if optionSet("states") {
			p.States = sel.States
		}
	}
	logger.DebugObj("profile", p)
	return p, nil
}

func newCLI(p core.Profile) (*slurm.CLI, error) {
	timeout, err := p.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	cli := slurm.NewCLI(logger.Logger())
	cli.Timeout = timeout
	return cli, nil
}

// selectNodes expands an explicit hostlist or asks sinfo.
func selectNodes(ctx context.Context, cli *slurm.CLI, p core.Profile, sel NodeSelectionOptions) ([]string, error) {
	if sel.NodeList != "" {
		return slurm.ExpandHostlist(sel.NodeList)
	}
	return cli.Nodes(ctx, slurm.NodeFilter{
		Partition:  p.Partition,
		Responding: p.Responding,
		States:     p.States,
	})
}

// helperCommand splits the profile's helper command. The default is this
// executable's probe command, with the profile's interfaces.
func helperCommand(p core.Profile) ([]string, error) {
	if p.Helper != "" {
		helper, err := shlex.Split(p.Helper)
		if err != nil {
			return nil, err
		}
		if len(helper) == 0 {
			return nil, errors.New("empty helper command")
		}
		return helper, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	helper := []string{exe, "probe"}
	for _, iface := range p.Interfaces {
		helper = append(helper, "--interface="+iface)
	}
	return helper, nil
}
