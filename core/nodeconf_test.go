package core

import (
	"bytes"
	"sort"
	"strings"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&NodeConfSuite{})

type NodeConfSuite struct{}

const sampleLine = "NodeName=n1 NodeAddr=10.0.0.1 CPUs=64 ThreadsPerCore=2 CoresPerSocket=16 Sockets=2 RealMemory=257000 State=UNKNOWN"

func (s *NodeConfSuite) TestString(c *check.C) {
	n := NodeConf{
		NodeName:       "n1",
		NodeAddr:       "10.0.0.1",
		CPUs:           64,
		ThreadsPerCore: 2,
		CoresPerSocket: 16,
		Sockets:        2,
		RealMemory:     257000,
	}
	c.Check(n.String(), check.Equals, sampleLine)
}

func (s *NodeConfSuite) TestParse(c *check.C) {
	n, err := ParseNodeConf(sampleLine + " Feature=gpu Weight=10")
	c.Assert(err, check.IsNil)
	c.Check(n.NodeName, check.Equals, "n1")
	c.Check(n.CPUs, check.Equals, 64)
	c.Check(n.RealMemory, check.Equals, 257000)
	c.Check(n.State, check.Equals, NodeStateUnknown)
	c.Check(n.Extra, check.DeepEquals, []KeyValue{{"Feature", "gpu"}, {"Weight", "10"}})
	c.Check(n.String(), check.Equals, sampleLine+" Feature=gpu Weight=10")
}

func (s *NodeConfSuite) TestParseErrors(c *check.C) {
	for _, trial := range []struct {
		line string
		err  string
	}{
		{"", `.*empty line`},
		{"CPUs=4 NodeName=n1", `.*does not start with NodeName=`},
		{"NodeName=n1 CPUs=four", `.*CPUs: "four" is not an integer`},
		{"NodeName=n1 garbage", `.*expected Key=Value, got "garbage"`},
		{"NodeName= CPUs=4", `.*empty NodeName`},
	} {
		_, err := ParseNodeConf(trial.line)
		c.Check(err, check.ErrorMatches, trial.err, check.Commentf("%q", trial.line))
	}
}

func (s *NodeConfSuite) TestRead(c *check.C) {
	input := strings.Join([]string{
		"# generated",
		"",
		"PartitionName=batch Nodes=ALL",
		"NodeName=n2 CPUs=8",
		"  NodeName=n1 CPUs=4  ",
	}, "\n")
	confs, err := ReadNodeConfs(strings.NewReader(input))
	c.Assert(err, check.IsNil)
	c.Assert(confs, check.HasLen, 2)
	c.Check(confs[0].NodeName, check.Equals, "n2")
	c.Check(confs[1].CPUs, check.Equals, 4)
}

func (s *NodeConfSuite) TestReadLineNumber(c *check.C) {
	_, err := ReadNodeConfs(bytes.NewBufferString("NodeName=n1\n\nNodeName=n2 Sockets=x\n"))
	pe, ok := err.(*ParseError)
	c.Assert(ok, check.Equals, true)
	c.Check(pe.Line, check.Equals, 3)
	c.Check(err, check.ErrorMatches, `parse error at line 3 .*`)
}

func (s *NodeConfSuite) TestMerge(c *check.C) {
	merged := MergeNodeConfs([]NodeConf{
		{NodeName: "n10", CPUs: 1},
		{NodeName: "n2", CPUs: 1},
		{NodeName: "n10", CPUs: 2},
		{NodeName: "gpu1", CPUs: 1},
	})
	var names []string
	for _, n := range merged {
		names = append(names, n.NodeName)
	}
	c.Check(names, check.DeepEquals, []string{"gpu1", "n2", "n10"})
	c.Check(merged[2].CPUs, check.Equals, 2)
}

func (s *NodeConfSuite) TestNaturalLess(c *check.C) {
	names := []string{"n10", "n9", "n01", "n1", "m100", "n2a", "n"}
	sort.Slice(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
	c.Check(names, check.DeepEquals, []string{"m100", "n", "n1", "n01", "n2a", "n9", "n10"})
}
