package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ehein6/slurm-scripts/core"
	"github.com/ehein6/slurm-scripts/slurm"
)

type ProfileConfigFlags struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
}

type ProfileCommand struct {
	Config ProfileConfigFlags `group:"Configuration Options"`
	List   ProfileListCommand `command:"list"`
	Show   ProfileShowCommand `command:"show"`
	Use    ProfileUseCommand  `command:"use"`
	Set    ProfileSetCommand  `command:"set"`
}

type ProfileListCommand struct {
	Config ProfileConfigFlags `group:"Configuration Options" hidden:"true"`
}

type ProfileShowCommand struct {
	Config ProfileConfigFlags `group:"Configuration Options" hidden:"true"`
	Args   struct {
		Name string `positional-arg-name:"name" description:"profile name (default: selected profile)"`
	} `positional-args:"true"`
}

type ProfileUseCommand struct {
	Config ProfileConfigFlags `group:"Configuration Options" hidden:"true"`
	Args   struct {
		Name string `positional-arg-name:"name" description:"profile name"`
	} `positional-args:"true" required:"1"`
}

type ProfileSetCommand struct {
	Config     ProfileConfigFlags `group:"Configuration Options" hidden:"true"`
	Reset      bool               `long:"reset" description:"start from an empty profile instead of the stored one"`
	Partition  string             `short:"p" long:"partition" description:"sinfo partition filter"`
	Responding bool               `short:"r" long:"responding" description:"only responding nodes"`
	States     []string           `short:"t" long:"states" description:"sinfo state filter (repeatable)"`
	Mode       string             `short:"m" long:"mode" description:"srun or sbatch" choice:"srun" choice:"sbatch"`
	Background bool               `short:"b" long:"background" description:"dispatch concurrently"`
	Parallel   int                `short:"j" long:"parallel" description:"maximum concurrent launches"`
	FailFast   bool               `short:"e" long:"fail-fast" description:"stop after the first failure"`
	Helper     string             `long:"helper" description:"helper command"`
	ConfFile   string             `short:"c" long:"conf-file" description:"configuration file passed to the helper"`
	JobName    string             `short:"J" long:"job-name" description:"Slurm job name"`
	Timeout    string             `long:"timeout" description:"timeout for each Slurm command"`
	Interfaces []string           `short:"i" long:"interface" description:"network interface for NodeAddr (repeatable)"`
	Args       struct {
		Name string `positional-arg-name:"name" description:"profile name"`
	} `positional-args:"true" required:"1"`
}

var profileCommand ProfileCommand

func (x *ProfileCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	return nil
}

func (x *ProfileListCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	config, err := core.ReadConfig()
	if err != nil {
		return errors.New("profile: " + err.Error())
	}
	target, _ := core.ReadConfigTarget()
	for _, name := range config.Names() {
		if name == target {
			fmt.Println("* " + name)
		} else {
			fmt.Println("  " + name)
		}
	}
	return nil
}

func (x *ProfileShowCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	profile, err := core.LoadProfile(x.Args.Name)
	if err != nil {
		return errors.New("profile: " + err.Error())
	}
	out, err := json.MarshalIndent(profile, "", "	")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (x *ProfileUseCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	config, err := core.ReadConfig()
	if err != nil {
		return errors.New("profile: " + err.Error())
	}
	if _, ok := config[x.Args.Name]; !ok && x.Args.Name != core.DefaultProfile {
		return errors.New("profile: " + x.Args.Name + " profile does not exist")
	}
	return core.WriteConfigTarget(x.Args.Name)
}

// apply sets the profile fields given on the command line. Remaining
// arguments are stored as extra Slurm options.
func (x *ProfileSetCommand) apply(p core.Profile, args []string) (core.Profile, error) {
	if optionSet("partition") {
		p.Partition = x.Partition
	}
	if optionSet("responding") {
		p.Responding = x.Responding
	}
	if optionSet("states") {
		p.States = x.States
	}
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
	if optionSet("conf-file") {
		p.ConfFile = x.ConfFile
	}
	if optionSet("job-name") {
		p.JobName = x.JobName
	}
	if optionSet("timeout") {
		p.Timeout = x.Timeout
	}
	if optionSet("interface") {
		p.Interfaces = x.Interfaces
	}
	if _, err := p.TimeoutDuration(); err != nil {
		return p, err
	}
	if len(args) > 0 {
		mode, err := slurm.ParseMode(p.Mode)
		if err != nil {
			return p, err
		}
		if _, _, err := slurm.NormalizeArgs(string(mode), args); err != nil {
			return p, err
		}
		p.SlurmArgs = args
	}
	return p, nil
}

func (x *ProfileSetCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	config, err := core.ReadConfig()
	if err != nil {
		return errors.New("profile: " + err.Error())
	}
	profile := config[x.Args.Name]
	if x.Reset {
		profile = core.Profile{}
	}
	profile, err = x.apply(profile, args)
	if err != nil {
		return errors.New("profile: " + err.Error())
	}
	config[x.Args.Name] = profile
	return core.WriteConfig(config)
}

func init() {
	parser.AddCommand("profile",
		"Dispatch profiles",
		"The profile command manages named sets of dispatch options in the "+
			"slurmconf config file and selects the one used by default",
		&profileCommand)
}
