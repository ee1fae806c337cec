package main

import (
	"errors"
	"fmt"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
	"github.com/ehein6/slurm-scripts/probe"
)

type ProbeCommand struct {
	Help       bool     `short:"h" long:"help" description:"Show this help message"`
	Interfaces []string `short:"i" long:"interface" description:"network interface for NodeAddr, in order of preference (default: eno1, eno2)"`
	ProcPath   string   `long:"proc" description:"procfs mount point" default:"/proc"`
	Quiet      bool     `short:"q" long:"quiet" description:"do not print the line when appending to a file"`
	Args       struct {
		ConfFile string `positional-arg-name:"conf-file" description:"append the NodeName line to this file"`
	} `positional-args:"true"`
}

var probeCommand ProbeCommand

func (x *ProbeCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	if len(args) > 0 {
		return fmt.Errorf("probe: unexpected argument %q", args[0])
	}
	prober, err := probe.New(x.ProcPath, x.Interfaces, logger.Logger())
	if err != nil {
		return err
	}
	node, err := prober.Probe(rootCtx)
	if err != nil {
		return err
	}
	line := node.String()
	if x.Args.ConfFile == "" || !x.Quiet {
		fmt.Println(line)
	}
	if x.Args.ConfFile != "" {
		if err := probe.AppendLine(x.Args.ConfFile, line); err != nil {
			return errors.New("probe: " + err.Error())
		}
		logger.InfoPrintf("appended %s to %s", node.NodeName, x.Args.ConfFile)
	}
	return nil
}

func init() {
	parser.AddCommand("probe",
		"Print this node's NodeName line",
		"The probe command detects the CPU topology, memory, short host name and "+
			"address of the local node and prints its slurm.conf NodeName line. "+
			"With a conf-file argument the line is also appended to that file.",
		&probeCommand)
}
