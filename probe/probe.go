// Package probe inspects the local node and produces its slurm.conf
// NodeName line.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ehein6/slurm-scripts/core"
)

const (
	DefaultProcPath = procfs.DefaultMountPoint
	UnknownAddr     = "0.0.0.0"
)

// Topology is the CPU layout of a node.
type Topology struct {
	CPUs    int `json:"cpus"`
	Cores   int `json:"cores"`
	Sockets int `json:"sockets"`
}

func (t Topology) ThreadsPerCore() int {
	if t.Cores == 0 {
		return 0
	}
	return t.CPUs / t.Cores
}

func (t Topology) CoresPerSocket() int {
	if t.Sockets == 0 {
		return 0
	}
	return t.Cores / t.Sockets
}

// Prober collects the facts for one node. The function fields default to
// the real system and are replaced in tests.
type Prober struct {
	Logger     logrus.FieldLogger
	FS         procfs.FS
	Interfaces []string

	Lscpu         func(ctx context.Context) ([]byte, error)
	Hostname      func() (string, error)
	InterfaceAddr func(name string) (string, error)
}

func New(procPath string, interfaces []string, logger logrus.FieldLogger) (*Prober, error) {
	if procPath == "" {
		procPath = DefaultProcPath
	}
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if len(interfaces) == 0 {
		interfaces = core.DefaultInterfaces
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Prober{
		Logger:        logger,
		FS:            fs,
		Interfaces:    interfaces,
		Lscpu:         runLscpu,
		Hostname:      os.Hostname,
		InterfaceAddr: interfaceAddr,
	}, nil
}

func runLscpu(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "lscpu", "--parse=cpu,core,socket").Output()
}

// Probe returns the NodeName line facts for this node.
func (p *Prober) Probe(ctx context.Context) (core.NodeConf, error) {
	topo, err := p.CPUTopology(ctx)
	if err != nil {
		return core.NodeConf{}, err
	}
	hostname, err := p.ShortHostname()
	if err != nil {
		return core.NodeConf{}, err
	}
	mem, err := p.MemoryMB()
	if err != nil {
		return core.NodeConf{}, err
	}
	n := core.NodeConf{
		NodeName:       hostname,
		NodeAddr:       p.Address(),
		CPUs:           topo.CPUs,
		ThreadsPerCore: topo.ThreadsPerCore(),
		CoresPerSocket: topo.CoresPerSocket(),
		Sockets:        topo.Sockets,
		RealMemory:     mem,
		State:          core.NodeStateUnknown,
	}
	p.Logger.WithFields(logrus.Fields{
		"node":   n.NodeName,
		"cpus":   n.CPUs,
		"memory": humanize.IBytes(uint64(mem) * 1024 * 1024),
	}).Debug("probed node")
	return n, nil
}

// CPUTopology uses lscpu, falling back to /proc/cpuinfo.
func (p *Prober) CPUTopology(ctx context.Context) (Topology, error) {
	out, err := p.Lscpu(ctx)
	if err == nil {
		return ParseLscpu(out)
	}
	p.Logger.WithError(err).Debug("lscpu failed, reading cpuinfo")
	infos, cerr := p.FS.CPUInfo()
	if cerr != nil {
		return Topology{}, fmt.Errorf("probe: lscpu: %v; cpuinfo: %w", err, cerr)
	}
	return TopologyFromCPUInfo(infos)
}

// ParseLscpu parses "lscpu --parse=cpu,core,socket" output. Each count is
// the highest id seen plus one.
func ParseLscpu(out []byte) (Topology, error) {
	maxID := [3]int{-1, -1, -1}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return Topology{}, fmt.Errorf("probe: unexpected lscpu line %q", line)
		}
		for col := 0; col < 3; col++ {
			// offline CPUs have empty core and socket columns
			if fields[col] == "" {
				continue
			}
			id, err := strconv.Atoi(fields[col])
			if err != nil {
				return Topology{}, fmt.Errorf("probe: unexpected lscpu line %q", line)
			}
			if id > maxID[col] {
				maxID[col] = id
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Topology{}, err
	}
	if maxID[0] < 0 {
		return Topology{}, errors.New("probe: no CPUs in lscpu output")
	}
	return Topology{CPUs: maxID[0] + 1, Cores: maxID[1] + 1, Sockets: maxID[2] + 1}, nil
}

// TopologyFromCPUInfo counts logical CPUs, distinct (physical id, core id)
// pairs and distinct physical ids.
func TopologyFromCPUInfo(infos []procfs.CPUInfo) (Topology, error) {
	if len(infos) == 0 {
		return Topology{}, errors.New("probe: no CPUs in cpuinfo")
	}
	sockets := map[string]bool{}
	cores := map[string]bool{}
	for _, info := range infos {
		sockets[info.PhysicalID] = true
		cores[info.PhysicalID+"/"+info.CoreID] = true
	}
	return Topology{CPUs: len(infos), Cores: len(cores), Sockets: len(sockets)}, nil
}

// MemoryMB returns MemTotal in MB, or 0 when the kernel does not report it.
func (p *Prober) MemoryMB() (int, error) {
	mi, err := p.FS.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("probe: meminfo: %w", err)
	}
	if mi.MemTotal == nil {
		return 0, nil
	}
	return int(*mi.MemTotal / 1024), nil
}

// ShortHostname is the host name up to the first dot.
func (p *Prober) ShortHostname() (string, error) {
	name, err := p.Hostname()
	if err != nil {
		return "", fmt.Errorf("probe: hostname: %w", err)
	}
	name, _, _ = strings.Cut(strings.TrimSpace(name), ".")
	if name == "" {
		return "", errors.New("probe: empty hostname")
	}
	return name, nil
}

// Address returns the first IPv4 address found on the configured
// interfaces, in order. Interfaces that do not exist are skipped.
func (p *Prober) Address() string {
	for _, name := range p.Interfaces {
		addr, err := p.InterfaceAddr(name)
		if err != nil {
			p.Logger.WithError(err).WithField("interface", name).Debug("skipping interface")
			continue
		}
		if addr != "" {
			return addr
		}
	}
	return UnknownAddr
}

func interfaceAddr(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", nil
}

// AppendLine appends line to path while holding an exclusive flock, so
// nodes writing the same shared file do not interleave.
func AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("probe: lock %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if _, err := f.WriteString(strings.TrimRight(line, "\n") + "\n"); err != nil {
		return err
	}
	return f.Sync()
}
