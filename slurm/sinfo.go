package slurm

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// NodeFilter selects the nodes sinfo reports.
type NodeFilter struct {
	Partition  string
	Responding bool
	States     []string
}

// Args returns the sinfo arguments listing one node name per line.
func (f NodeFilter) Args() []string {
	args := []string{"--noheader", "--Node", "--format=%N"}
	if f.Partition != "" {
		args = append(args, "--partition="+f.Partition)
	}
	if f.Responding {
		args = append(args, "--responding")
	}
	if len(f.States) > 0 {
		args = append(args, "--states="+strings.Join(f.States, ","))
	}
	return args
}

// Nodes lists the nodes matching filter.
func (cli *CLI) Nodes(ctx context.Context, filter NodeFilter) ([]string, error) {
	out, err := cli.run(ctx, SInfoName, filter.Args())
	if err != nil {
		return nil, err
	}
	nodes, err := ParseNodeList(out)
	if err != nil {
		return nil, err
	}
	cli.Logger.WithField("partition", filter.Partition).Debugf("sinfo returned %d nodes", len(nodes))
	return nodes, nil
}

// ParseNodeList parses sinfo output: one node name or hostlist
// expression per line. Duplicates are dropped (a node is listed once
// per partition it belongs to); first-seen order is kept.
func ParseNodeList(out []byte) ([]string, error) {
	var nodes []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			hosts, err := ExpandHostlist(field)
			if err != nil {
				return nil, err
			}
			for _, host := range hosts {
				if !seen[host] {
					seen[host] = true
					nodes = append(nodes, host)
				}
			}
		}
	}
	return nodes, scanner.Err()
}
