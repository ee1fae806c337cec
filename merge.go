package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
)

type MergeCommand struct {
	Help   bool   `short:"h" long:"help" description:"Show this help message"`
	Output string `short:"o" long:"output" description:"write the merged lines to this file instead of stdout"`
	Args   struct {
		Files []string `positional-arg-name:"file" description:"files with NodeName lines (- for stdin)"`
	} `positional-args:"true" required:"1"`
}

var mergeCommand MergeCommand

func readConfFile(name string) ([]core.NodeConf, error) {
	if name == "-" {
		return core.ReadNodeConfs(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	confs, err := core.ReadNodeConfs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return confs, nil
}

// writeNodeConfs writes a header comment followed by one line per node.
func writeNodeConfs(out io.Writer, confs []core.NodeConf) error {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "# %d nodes, generated by slurmconf on %s\n",
		len(confs), time.Now().Format(time.RFC3339))
	for _, n := range confs {
		fmt.Fprintln(w, n.String())
	}
	return w.Flush()
}

// writeNodeConfFile replaces path with the node lines, reporting
// errors from Close as well.
func writeNodeConfFile(path string, confs []core.NodeConf) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeNodeConfs(f, confs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (x *MergeCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	var all []core.NodeConf
	for _, name := range x.Args.Files {
		confs, err := readConfFile(name)
		if err != nil {
			return errors.New("merge: " + err.Error())
		}
		all = append(all, confs...)
	}
	merged := core.MergeNodeConfs(all)

	var err error
	if x.Output != "" {
		err = writeNodeConfFile(x.Output, merged)
	} else {
		err = writeNodeConfs(os.Stdout, merged)
	}
	if err != nil {
		return errors.New("merge: " + err.Error())
	}

	cpus, mem := 0, uint64(0)
	for _, n := range merged {
		cpus += n.CPUs
		mem += uint64(n.RealMemory)
	}
	logger.InfoPrintf("merged %d lines into %d nodes: %s CPUs, %s memory",
		len(all), len(merged), humanize.Comma(int64(cpus)), humanize.IBytes(mem*1024*1024))
	return nil
}

func init() {
	parser.AddCommand("merge",
		"Merge NodeName lines",
		"The merge command reads the NodeName lines collected from the nodes, keeps the "+
			"last line for each node and prints them sorted by node name.",
		&mergeCommand)
}
