package slurm

import (
	"context"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&SqueueSuite{})

type SqueueSuite struct{}

func (s *SqueueSuite) TestJobs(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		return `printf '101|RUNNING|n1\n102|PENDING|\n'`
	})
	jobs, err := cli.Jobs(context.Background(), "slurmconf")
	c.Assert(err, check.IsNil)
	c.Check(jobs, check.DeepEquals, []Job{
		{ID: "101", State: "RUNNING", NodeList: "n1"},
		{ID: "102", State: "PENDING", NodeList: ""},
	})
	calls := stub.recorded()
	c.Assert(calls, check.HasLen, 1)
	c.Check(calls[0].prog, check.Equals, "squeue")
	c.Check(calls[0].args, check.DeepEquals, []string{"--noheader", "--me", "--name=slurmconf", "--format=%i|%T|%N"})
}

func (s *SqueueSuite) TestParseJobsError(c *check.C) {
	_, err := ParseJobs([]byte("101 RUNNING n1\n"))
	c.Check(err, check.ErrorMatches, `squeue: unexpected output line .*`)
}

func (s *SqueueSuite) TestCancel(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string { return "true" })
	c.Assert(cli.Cancel(context.Background(), "slurmconf", false), check.IsNil)
	c.Assert(cli.Cancel(context.Background(), "slurmconf", true), check.IsNil)
	calls := stub.recorded()
	c.Assert(calls, check.HasLen, 3)
	c.Check(calls[0].prog, check.Equals, "scancel")
	c.Check(calls[0].args, check.DeepEquals, []string{"--me", "--name=slurmconf", "--state=PENDING"})
	c.Check(calls[2].args, check.DeepEquals, []string{"--me", "--name=slurmconf", "--state=RUNNING"})
}

func (s *SqueueSuite) TestCancelError(c *check.C) {
	var stub stubCLI
	cli := stub.cli(c, func(prog string, args []string) string {
		return "echo >&2 'scancel: error: Invalid job state'; exit 1"
	})
	err := cli.Cancel(context.Background(), "slurmconf", true)
	c.Check(err, check.ErrorMatches, `scancel: .*Invalid job state.*`)
	c.Check(stub.recorded(), check.HasLen, 1)
}
