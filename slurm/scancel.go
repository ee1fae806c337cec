package slurm

import (
	"context"
)

// Cancel removes pending jobs named name. With force, running jobs are
// cancelled too. scancel exits 0 when nothing matches.
func (cli *CLI) Cancel(ctx context.Context, name string, force bool) error {
	states := []string{"PENDING"}
	if force {
		states = append(states, "RUNNING")
	}
	for _, state := range states {
		if _, err := cli.run(ctx, SCancelName, []string{"--me", "--name=" + name, "--state=" + state}); err != nil {
			return err
		}
	}
	return nil
}
