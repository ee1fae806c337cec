package slurm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Job is one squeue entry.
type Job struct {
	ID       string
	State    string
	NodeList string
}

// Jobs lists the caller's queued and running jobs named name.
func (cli *CLI) Jobs(ctx context.Context, name string) ([]Job, error) {
	out, err := cli.run(ctx, SQueueName, []string{"--noheader", "--me", "--name=" + name, "--format=%i|%T|%N"})
	if err != nil {
		return nil, err
	}
	return ParseJobs(out)
}

// ParseJobs parses "%i|%T|%N" squeue output.
func ParseJobs(out []byte) ([]Job, error) {
	var jobs []Job
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 3 {
			return nil, fmt.Errorf("squeue: unexpected output line %q", line)
		}
		jobs = append(jobs, Job{ID: fields[0], State: fields[1], NodeList: fields[2]})
	}
	return jobs, scanner.Err()
}
