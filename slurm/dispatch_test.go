package slurm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&DispatchSuite{})

type DispatchSuite struct{}

// nodeArg returns the --nodelist value of an srun/sbatch command line.
func nodeArg(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "--nodelist=") {
			return strings.TrimPrefix(arg, "--nodelist=")
		}
	}
	return ""
}

func (s *DispatchSuite) TestCommand(c *check.C) {
	req := Request{
		Mode:      ModeSrun,
		Helper:    []string{"/shared/get_slurm_conf", "--interface=ib0"},
		ConfFile:  "/shared/nodes.conf",
		JobName:   "slurmconf",
		ExtraArgs: []string{"--account=acct"},
	}
	prog, args := req.Command("n1")
	c.Check(prog, check.Equals, "srun")
	c.Check(args, check.DeepEquals, []string{
		"--nodes=1", "--ntasks=1", "--nodelist=n1", "--job-name=slurmconf", "--account=acct",
		"/shared/get_slurm_conf", "--interface=ib0", "/shared/nodes.conf"})

	req.Mode = ModeSbatch
	req.ConfFile = "/shared/my nodes.conf"
	prog, args = req.Command("n2")
	c.Check(prog, check.Equals, "sbatch")
	c.Check(args, check.DeepEquals, []string{
		"--parsable", "--nodes=1", "--ntasks=1", "--nodelist=n2", "--job-name=slurmconf", "--account=acct",
		`--wrap=/shared/get_slurm_conf --interface=ib0 '/shared/my nodes.conf'`})
}

func (s *DispatchSuite) TestParseMode(c *check.C) {
	for in, want := range map[string]Mode{"": ModeSrun, "srun": ModeSrun, " SBATCH ": ModeSbatch} {
		mode, err := ParseMode(in)
		c.Check(err, check.IsNil)
		c.Check(mode, check.Equals, want)
	}
	_, err := ParseMode("salloc")
	c.Check(errors.Is(err, ErrInvalidMode), check.Equals, true)
}

func (s *DispatchSuite) TestParseJobID(c *check.C) {
	for out, want := range map[string]string{
		"12345\n":         "12345",
		"12345;cluster\n": "12345",
		"678_1":           "678_1",
	} {
		id, err := ParseJobID([]byte(out))
		c.Check(err, check.IsNil)
		c.Check(id, check.Equals, want)
	}
	for _, out := range []string{"", "Submitted batch job x1\n"} {
		_, err := ParseJobID([]byte(out))
		c.Check(err, check.NotNil, check.Commentf("%q", out))
	}
}

func (s *DispatchSuite) TestShellJoin(c *check.C) {
	c.Check(ShellJoin([]string{"a", "b c", "it's", ""}), check.Equals, `a 'b c' 'it'\''s' ''`)
}

func (s *DispatchSuite) TestForeground(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		return "echo NodeName=" + nodeArg(args)
	})
	d := &Dispatcher{CLI: cli}
	results, err := d.Run(context.Background(), []string{"n1", "n2", "n3"}, Request{Helper: []string{"probe"}})
	c.Assert(err, check.IsNil)
	c.Assert(results, check.HasLen, 3)
	for i, node := range []string{"n1", "n2", "n3"} {
		c.Check(results[i].Node, check.Equals, node)
		c.Check(results[i].Err, check.IsNil)
		c.Check(string(results[i].Output), check.Equals, "NodeName="+node+"\n")
	}
	calls := stub.recorded()
	c.Assert(calls, check.HasLen, 3)
	c.Check(calls[0].prog, check.Equals, "srun")
	c.Check(nodeArg(calls[2].args), check.Equals, "n3")
}

func (s *DispatchSuite) TestContinueAfterFailure(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		if nodeArg(args) == "n2" {
			return "echo >&2 'srun: error: n2: node is down'; exit 1"
		}
		return "echo ok"
	})
	d := &Dispatcher{CLI: cli}
	results, err := d.Run(context.Background(), []string{"n1", "n2", "n3"}, Request{Helper: []string{"probe"}})
	var derr *DispatchError
	c.Assert(errors.As(err, &derr), check.Equals, true)
	c.Check(derr.Failed, check.DeepEquals, []string{"n2"})
	c.Check(derr.Skipped, check.HasLen, 0)
	c.Check(derr.Total, check.Equals, 3)
	c.Check(err, check.ErrorMatches, `1 of 3 nodes failed: n2`)
	c.Check(results[2].Err, check.IsNil)
	c.Check(stub.recorded(), check.HasLen, 3)
}

func (s *DispatchSuite) TestFailFast(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		if nodeArg(args) == "n2" {
			return "exit 1"
		}
		return "echo ok"
	})
	d := &Dispatcher{CLI: cli, FailFast: true}
	results, err := d.Run(context.Background(), []string{"n1", "n2", "n3", "n4"}, Request{Helper: []string{"probe"}})
	var derr *DispatchError
	c.Assert(errors.As(err, &derr), check.Equals, true)
	c.Check(derr.Failed, check.DeepEquals, []string{"n2"})
	c.Check(derr.Skipped, check.DeepEquals, []string{"n3", "n4"})
	c.Check(err, check.ErrorMatches, `1 of 4 nodes failed: n2 \(2 skipped: n\[3-4\]\)`)
	c.Check(results[2].Err, check.Equals, ErrSkipped)
	c.Check(stub.recorded(), check.HasLen, 2)
}

func (s *DispatchSuite) TestBackgroundParallel(c *check.C) {
	events := filepath.Join(c.MkDir(), "events")
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		return "echo start >>" + events + "; sleep 0.2; echo end >>" + events + "; echo " + nodeArg(args)
	})
	nodes := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	d := &Dispatcher{CLI: cli, Background: true, Parallel: 2}
	start := time.Now()
	results, err := d.Run(context.Background(), nodes, Request{Helper: []string{"probe"}})
	c.Assert(err, check.IsNil)
	c.Check(time.Since(start) >= 600*time.Millisecond, check.Equals, true)
	for i, node := range nodes {
		c.Check(string(results[i].Output), check.Equals, node+"\n")
	}

	buf, err := os.ReadFile(events)
	c.Assert(err, check.IsNil)
	running, peak := 0, 0
	for _, ev := range strings.Fields(string(buf)) {
		if ev == "start" {
			running++
		} else {
			running--
		}
		if running > peak {
			peak = running
		}
	}
	c.Check(peak, check.Equals, 2)
}

func (s *DispatchSuite) TestBackgroundUnbounded(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		return "sleep 0.3; echo " + nodeArg(args)
	})
	nodes := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8"}
	d := &Dispatcher{CLI: cli, Background: true}
	start := time.Now()
	_, err := d.Run(context.Background(), nodes, Request{Helper: []string{"probe"}})
	c.Assert(err, check.IsNil)
	c.Check(time.Since(start) < 2*time.Second, check.Equals, true)
	c.Check(stub.recorded(), check.HasLen, len(nodes))
}

func (s *DispatchSuite) TestBackgroundFailFast(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		if nodeArg(args) == "n1" {
			return "exit 1"
		}
		return "sleep 0.2"
	})
	nodes := []string{"n1", "n2", "n3", "n4", "n5"}
	d := &Dispatcher{CLI: cli, Background: true, Parallel: 1, FailFast: true}
	_, err := d.Run(context.Background(), nodes, Request{Helper: []string{"probe"}})
	var derr *DispatchError
	c.Assert(errors.As(err, &derr), check.Equals, true)
	c.Check(derr.Failed, check.DeepEquals, []string{"n1"})
	c.Check(derr.Skipped, check.DeepEquals, []string{"n2", "n3", "n4", "n5"})
}

func (s *DispatchSuite) TestSbatch(c *check.C) {
	var stub stubCLI
	nextID := 100
	cli := stub.cli(c, func(prog string, args []string) string {
		c.Check(prog, check.Equals, "sbatch")
		c.Check(args[0], check.Equals, "--parsable")
		nextID++
		return "echo '" + strconv.Itoa(nextID) + ";cluster'"
	})
	metrics := NewMetrics()
	d := &Dispatcher{CLI: cli, Metrics: metrics}
	results, err := d.Run(context.Background(), []string{"n1", "n2"}, Request{Mode: ModeSbatch, Helper: []string{"probe"}})
	c.Assert(err, check.IsNil)
	c.Check(results[0].JobID, check.Equals, "101")
	c.Check(results[1].JobID, check.Equals, "102")
	c.Check(testutil.ToFloat64(metrics.dispatched.WithLabelValues("sbatch", "success")), check.Equals, 2.0)
	c.Check(testutil.ToFloat64(metrics.nodes), check.Equals, 2.0)
}

func (s *DispatchSuite) TestMetricsTextfile(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		if nodeArg(args) == "n1" {
			return "exit 1"
		}
		return "true"
	})
	metrics := NewMetrics()
	d := &Dispatcher{CLI: cli, Metrics: metrics, FailFast: true}
	_, err := d.Run(context.Background(), []string{"n1", "n2"}, Request{Helper: []string{"probe"}})
	c.Check(err, check.NotNil)
	c.Check(testutil.ToFloat64(metrics.dispatched.WithLabelValues("srun", "failure")), check.Equals, 1.0)
	c.Check(testutil.ToFloat64(metrics.dispatched.WithLabelValues("srun", "skipped")), check.Equals, 1.0)

	path := filepath.Join(c.MkDir(), "slurmconf.prom")
	c.Assert(metrics.WriteTextfile(path), check.IsNil)
	buf, err := os.ReadFile(path)
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Matches, `(?ms).*slurmconf_dispatched_total\{mode="srun",result="failure"\} 1.*`)
}

func (s *DispatchSuite) TestNoNodes(c *check.C) {
	d := &Dispatcher{CLI: NewCLI(testLogger())}
	_, err := d.Run(context.Background(), nil, Request{Helper: []string{"probe"}})
	c.Check(err, check.Equals, ErrNoNodes)
	_, err = d.Run(context.Background(), []string{"n1"}, Request{})
	c.Check(err, check.ErrorMatches, `.*empty helper.*`)
}

func (s *DispatchSuite) TestCancelledContext(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string { return "true" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Dispatcher{CLI: cli}).Run(ctx, []string{"n1", "n2"}, Request{Helper: []string{"probe"}})
	var derr *DispatchError
	c.Assert(errors.As(err, &derr), check.Equals, true)
	c.Check(derr.Skipped, check.DeepEquals, []string{"n1", "n2"})
	c.Check(stub.recorded(), check.HasLen, 0)
}
