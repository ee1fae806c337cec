package slurm

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/juju/gnuflag"
)

// Option descriptions
const (
	accountDesc       = `Charge resources used by this job to specified account.`
	partitionDesc     = `Request a specific partition for the resource allocation. Each node is still named explicitly; the partition must contain it.`
	timeDesc          = `Set a limit on the total run time of the job allocation. Acceptable time formats include "minutes", "minutes:seconds", "hours:minutes:seconds", "days-hours", "days-hours:minutes" and "days-hours:minutes:seconds".`
	qosDesc           = `Request a quality of service for the job.`
	reservationDesc   = `Allocate resources for the job from the named reservation.`
	constraintDesc    = `Nodes can have features assigned to them by the Slurm administrator. Users can specify which of these features are required by their job using the constraint option.`
	memDesc           = `Specify the real memory required per node. Default units are megabytes. Different units can be specified using the suffix [K|M|G|T].`
	memPerCPUDesc     = `Minimum memory required per usable allocated CPU.`
	cpusPerTaskDesc   = `Request that ncpus be allocated per process.`
	exclusiveDesc     = `The job allocation can not share nodes with other running jobs.`
	oversubscribeDesc = `The job allocation can over-subscribe resources with other running jobs.`
	chdirDesc         = `Set the working directory of the batch script or job step before it is executed.`
	outputDesc        = `Instruct Slurm to connect the batch script's standard output directly to the file name specified in the "filename pattern".`
	errorDesc         = `Instruct Slurm to connect the batch script's standard error directly to the file name specified in the "filename pattern".`
	commentDesc       = `An arbitrary comment.`
	waitDesc          = `Do not exit until the submitted job terminates.`
	nodesDesc         = `Request that a minimum of minnodes nodes be allocated to this job.`
	ntasksDesc        = `Specify the number of tasks to run.`
	nodelistDesc      = `Request a specific list of hosts.`
	excludeDesc       = `Explicitly exclude certain nodes from the resources granted to the job.`
	jobNameDesc       = `Specify a name for the job allocation.`
	arrayDesc         = `Submit a job array, multiple jobs to be executed with identical parameters.`
	wrapDesc          = `Sbatch will wrap the specified command string in a simple "sh" shell script.`
	parsableDesc      = `Outputs only the job id number and the cluster name if present.`
)

// Slurm uses Short and Long command line options
// Save both with golang flag
type gnuFlag struct {
	Short string
	Long  string
	Value interface{}
}

// Use map to set command line options. map key is the same as Long option
type gnuFlags map[string]gnuFlag

type optionSpec struct {
	short string
	long  string
	bool  bool
	desc  string
	// only accepted by this program; empty means srun and sbatch
	only string
}

// Options recognised in extra srun/sbatch arguments, in the order they
// are passed on.
var optionSpecs = []optionSpec{
	{short: "A", long: "account", desc: accountDesc},
	{short: "p", long: "partition", desc: partitionDesc},
	{short: "t", long: "time", desc: timeDesc},
	{short: "q", long: "qos", desc: qosDesc},
	{long: "reservation", desc: reservationDesc},
	{short: "C", long: "constraint", desc: constraintDesc},
	{long: "mem", desc: memDesc},
	{long: "mem-per-cpu", desc: memPerCPUDesc},
	{short: "c", long: "cpus-per-task", desc: cpusPerTaskDesc},
	{long: "exclusive", bool: true, desc: exclusiveDesc},
	{short: "s", long: "oversubscribe", bool: true, desc: oversubscribeDesc},
	{short: "D", long: "chdir", desc: chdirDesc},
	{short: "o", long: "output", desc: outputDesc},
	{short: "e", long: "error", desc: errorDesc},
	{long: "comment", desc: commentDesc},
	{short: "W", long: "wait", bool: true, desc: waitDesc, only: SBatchName},
	// set per node by the dispatcher
	{short: "N", long: "nodes", desc: nodesDesc},
	{short: "n", long: "ntasks", desc: ntasksDesc},
	{short: "w", long: "nodelist", desc: nodelistDesc},
	{short: "x", long: "exclude", desc: excludeDesc},
	{short: "J", long: "job-name", desc: jobNameDesc},
	{short: "a", long: "array", desc: arrayDesc},
	{long: "wrap", desc: wrapDesc},
	{long: "parsable", bool: true, desc: parsableDesc},
}

// List of supported Slurm options
// map[string]struct{} enables querying supported options using:
// _, ok := supportedArgs(prog)["<option>"]
func supportedArgs(prog string) map[string]struct{} {
	supported := map[string]struct{}{}
	for _, spec := range optionSpecs {
		switch spec.long {
		case "nodes", "ntasks", "nodelist", "exclude", "job-name", "array", "wrap", "parsable":
			continue
		}
		if spec.only != "" && spec.only != prog {
			continue
		}
		supported[spec.long] = struct{}{}
	}
	return supported
}

// Check if either Long or Short flag is used
func lookupGnuArg(name string, spec gnuFlags) (string, error) {
	for k, v := range spec {
		// map key is the same as Long option
		if name == k || (v.Short != "" && name == v.Short) {
			return k, nil
		}
	}
	return "", errors.New("unable to parse arguments")
}

func parseSlurmArgs(prog string, args []string) (gnuFlags, *flag.FlagSet, error) {
	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	options := make(gnuFlags)
	for _, spec := range optionSpecs {
		var value interface{}
		if spec.bool {
			if spec.short != "" {
				value = setFlagBool(flags, spec.short, spec.long, false, spec.desc)
			} else {
				value = flags.Bool(spec.long, false, spec.desc)
			}
		} else {
			if spec.short != "" {
				value = setFlagString(flags, spec.short, spec.long, "", spec.desc)
			} else {
				value = flags.String(spec.long, "", spec.desc)
			}
		}
		options[spec.long] = gnuFlag{
			Short: spec.short,
			Long:  spec.long,
			Value: value,
		}
	}

	if err := flags.Parse(true, args); err != nil {
		return nil, &flag.FlagSet{}, fmt.Errorf("%s: cannot process flags: %w", prog, err)
	}
	return options, flags, nil
}

// NormalizeArgs parses extra srun/sbatch options given in short or long
// form and returns the supported ones as "--long=value" (or "--long")
// plus the names of the options that were dropped.
func NormalizeArgs(prog string, args []string) (normalized, dropped []string, err error) {
	if len(args) == 0 {
		return nil, nil, nil
	}
	options, flags, err := parseSlurmArgs(prog, args)
	if err != nil {
		return nil, nil, err
	}
	if flags.NArg() > 0 {
		return nil, nil, fmt.Errorf("%s: unexpected argument %q", prog, flags.Args()[0])
	}
	// Go through set flags
	set := make(map[string]struct{})
	flags.Visit(func(f *flag.Flag) {
		key, err := lookupGnuArg(f.Name, options)
		if err != nil {
			return
		}
		set[key] = struct{}{}
	})
	supported := supportedArgs(prog)
	for _, spec := range optionSpecs {
		if _, ok := set[spec.long]; !ok {
			continue
		}
		if _, ok := supported[spec.long]; !ok {
			dropped = append(dropped, spec.long)
			continue
		}
		switch v := options[spec.long].Value.(type) {
		case *bool:
			if *v {
				normalized = append(normalized, "--"+spec.long)
			}
		case *string:
			normalized = append(normalized, "--"+spec.long+"="+*v)
		}
	}
	return normalized, dropped, nil
}

// Slurm support Short and Long command line options
// Register both with the same Golang flag
func setFlagString(flags *flag.FlagSet, short, long, value, usage string) *string {
	flagVar := flags.String(short, value, usage)
	flags.StringVar(flagVar, long, value, usage)
	return flagVar
}

func setFlagBool(flags *flag.FlagSet, short, long string, value bool, usage string) *bool {
	flagVar := flags.Bool(short, value, usage)
	flags.BoolVar(flagVar, long, value, usage)
	return flagVar
}

// OptionList formats option names as "--a --b" for warnings.
func OptionList(names []string) string {
	opts := make([]string, len(names))
	for i, name := range names {
		opts[i] = "--" + name
	}
	return strings.Join(opts, " ")
}
