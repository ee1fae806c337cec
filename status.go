package main

import (
	"errors"
	"fmt"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/logger"
)

type JobOptions struct {
	JobName string `short:"J" long:"job-name" description:"Slurm job name (default: from the profile)"`
}

type StatusCommand struct {
	Config   ProfileOptions `group:"Profile Options"`
	Job      JobOptions     `group:"Job Options"`
	NoHeader bool           `short:"n" long:"no-header" description:"do not print the table header"`
}

type CancelCommand struct {
	Config ProfileOptions `group:"Profile Options"`
	Job    JobOptions     `group:"Job Options"`
	Force  bool           `short:"f" long:"force" description:"cancel running jobs as well as pending ones"`
}

var statusCommand StatusCommand
var cancelCommand CancelCommand

func jobName(p core.Profile, opts JobOptions) string {
	if optionSet("job-name") {
		return opts.JobName
	}
	return p.JobName
}

func (x *StatusCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	profile, err := loadProfile(x.Config, nil)
	if err != nil {
		return errors.New("status: " + err.Error())
	}
	cli, err := newCLI(profile)
	if err != nil {
		return errors.New("status: " + err.Error())
	}
	jobs, err := cli.Jobs(rootCtx, jobName(profile, x.Job))
	if err != nil {
		return errors.New("status: " + err.Error())
	}
	table := [][]string{{"JOBID", "STATE", "NODELIST"}}
	for _, job := range jobs {
		table = append(table, []string{job.ID, job.State, job.NodeList})
	}
	core.PrintTable(table, x.NoHeader)
	return nil
}

func (x *CancelCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	profile, err := loadProfile(x.Config, nil)
	if err != nil {
		return errors.New("cancel: " + err.Error())
	}
	cli, err := newCLI(profile)
	if err != nil {
		return errors.New("cancel: " + err.Error())
	}
	name := jobName(profile, x.Job)
	if err := cli.Cancel(rootCtx, name, x.Force); err != nil {
		return errors.New("cancel: " + err.Error())
	}
	logger.InfoPrintf("cancelled %s jobs", name)
	if !x.Force {
		fmt.Println("Cancelled pending " + name + " jobs")
	} else {
		fmt.Println("Cancelled " + name + " jobs")
	}
	return nil
}

func init() {
	parser.AddCommand("status",
		"List dispatch jobs",
		"The status command lists your queued and running jobs with the dispatch job name.",
		&statusCommand)
	parser.AddCommand("cancel",
		"Cancel dispatch jobs",
		"The cancel command cancels your pending jobs with the dispatch job name; "+
			"with --force running jobs are cancelled too.",
		&cancelCommand)
}
