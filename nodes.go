package main

import (
	"errors"
	"fmt"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/slurm"
)

type NodesCommand struct {
	Config    ProfileOptions       `group:"Profile Options"`
	Selection NodeSelectionOptions `group:"Node Selection"`
	Compact   bool                 `short:"c" long:"compact" description:"print a single hostlist expression"`
}

var nodesCommand NodesCommand

func (x *NodesCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	if len(args) > 0 {
		return fmt.Errorf("nodes: unexpected argument %q", args[0])
	}
	profile, err := loadProfile(x.Config, &x.Selection)
	if err != nil {
		return errors.New("nodes: " + err.Error())
	}
	cli, err := newCLI(profile)
	if err != nil {
		return errors.New("nodes: " + err.Error())
	}
	nodes, err := selectNodes(rootCtx, cli, profile, x.Selection)
	if err != nil {
		return errors.New("nodes: " + err.Error())
	}
	if x.Compact {
		fmt.Println(slurm.CompressHostlist(nodes))
		return nil
	}
	for _, node := range nodes {
		fmt.Println(node)
	}
	return nil
}

func init() {
	parser.AddCommand("nodes",
		"List nodes",
		"List the nodes sinfo reports, optionally filtered by partition, responsiveness and state.",
		&nodesCommand)
}
