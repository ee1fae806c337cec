package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ghodss/yaml"
)

const (
	ConfigPath      = "/.config/slurmconf/"
	ConfigFilename  = "config.json"
	TargetFilename  = "target"
	ConfigFilePerms = 0600
	ConfigEnv       = "SLURMCONF_CONFIG"
	DefaultProfile  = "default"
)

// Default constants
const (
	DefaultJobName = "slurmconf"
	DefaultMode    = "srun"
)

var DefaultInterfaces = []string{"eno1", "eno2"}

// Layout for config file (JSON or YAML)
/*
{
	"default": {
		"partition": "compute",
		"responding": true,
		"mode": "sbatch",
		"background": true,
		"helper": "/shared/bin/slurmconf probe",
		"conf_file": "/shared/slurm.conf.nodes"
	}
}
*/
type Profile struct {
	Partition  string   `json:"partition,omitempty"`
	Responding bool     `json:"responding,omitempty"`
	States     []string `json:"states,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Background bool     `json:"background,omitempty"`
	Parallel   int      `json:"parallel,omitempty"`
	FailFast   bool     `json:"fail_fast,omitempty"`
	Helper     string   `json:"helper,omitempty"`
	ConfFile   string   `json:"conf_file,omitempty"`
	JobName    string   `json:"job_name,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
	SlurmArgs  []string `json:"slurm_args,omitempty"`
}

type Config map[string]Profile

// NewProfile returns the built-in defaults.
func NewProfile() Profile {
	return Profile{
		Mode:       DefaultMode,
		JobName:    DefaultJobName,
		Interfaces: append([]string(nil), DefaultInterfaces...),
	}
}

// Merge returns p with every non-zero field of other applied on top.
func (p Profile) Merge(other Profile) Profile {
	if other.Partition != "" {
		p.Partition = other.Partition
	}
	if other.Responding {
		p.Responding = true
	}
	if len(other.States) > 0 {
		p.States = other.States
	}
	if other.Mode != "" {
		p.Mode = other.Mode
	}
	if other.Background {
		p.Background = true
	}
	if other.Parallel != 0 {
		p.Parallel = other.Parallel
	}
	if other.FailFast {
		p.FailFast = true
	}
	if other.Helper != "" {
		p.Helper = other.Helper
	}
	if other.ConfFile != "" {
		p.ConfFile = other.ConfFile
	}
	if other.JobName != "" {
		p.JobName = other.JobName
	}
	if other.Timeout != "" {
		p.Timeout = other.Timeout
	}
	if len(other.Interfaces) > 0 {
		p.Interfaces = other.Interfaces
	}
	if len(other.SlurmArgs) > 0 {
		p.SlurmArgs = other.SlurmArgs
	}
	return p
}

// TimeoutDuration parses Timeout; an empty value means no timeout.
func (p Profile) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", p.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: negative", p.Timeout)
	}
	return d, nil
}

// Names returns the profile names in sorted order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fileExist(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// ConfigFile returns the config file path: SLURMCONF_CONFIG if set,
// otherwise ${HOME}/.config/slurmconf/config.json.
func ConfigFile() string {
	if env := os.Getenv(ConfigEnv); len(env) > 0 {
		return env
	}
	return os.Getenv("HOME") + ConfigPath + ConfigFilename
}

func targetFile() string {
	return filepath.Join(filepath.Dir(ConfigFile()), TargetFilename)
}

// ReadConfig reads the config file. A missing file is an empty Config.
func ReadConfig() (Config, error) {
	filename := ConfigFile()
	if !fileExist(filename) {
		return Config{}, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	if config == nil {
		config = Config{}
	}
	return config, nil
}

func WriteConfig(config Config) error {
	configFile := ConfigFile()
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return err
	}
	file, err := json.MarshalIndent(config, "", "	")
	if err != nil {
		return err
	}
	// Ensure config file uses proper permissions
	if fileExist(configFile) {
		if err := os.Chmod(configFile, ConfigFilePerms); err != nil {
			return err
		}
	}
	return os.WriteFile(configFile, append(file, '\n'), ConfigFilePerms)
}

// ReadConfigTarget returns the profile selected with WriteConfigTarget.
func ReadConfigTarget() (string, error) {
	data, err := os.ReadFile(targetFile())
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(string(data))
	if target == "" {
		return "", errors.New("empty profile target")
	}
	return target, nil
}

func WriteConfigTarget(name string) error {
	target := targetFile()
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(name+"\n"), ConfigFilePerms)
}

// LoadProfile resolves a profile by name. An empty name selects the
// target profile, then "default". Defaults from NewProfile are applied
// underneath. Naming a profile that does not exist is an error; the
// implicit default profile may be absent.
func LoadProfile(name string) (Profile, error) {
	config, err := ReadConfig()
	if err != nil {
		return Profile{}, err
	}
	explicit := name != ""
	if !explicit {
		if target, err := ReadConfigTarget(); err == nil {
			name = target
			explicit = true
		} else {
			name = DefaultProfile
		}
	}
	profile, ok := config[name]
	if !ok && explicit && name != DefaultProfile {
		return Profile{}, fmt.Errorf("profile %q does not exist", name)
	}
	return NewProfile().Merge(profile), nil
}
