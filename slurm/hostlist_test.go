package slurm

import (
	"errors"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&HostlistSuite{})

type HostlistSuite struct{}

func (s *HostlistSuite) TestExpand(c *check.C) {
	for _, trial := range []struct {
		expr  string
		hosts []string
	}{
		{"node1", []string{"node1"}},
		{"node[1-3]", []string{"node1", "node2", "node3"}},
		{"node[01-03,7]", []string{"node01", "node02", "node03", "node7"}},
		{"gpu1,cpu[8-9]", []string{"gpu1", "cpu8", "cpu9"}},
		{"rack[1-2]-n[1-2]", []string{"rack1-n1", "rack1-n2", "rack2-n1", "rack2-n2"}},
		{"n[098-101]", []string{"n098", "n099", "n100", "n101"}},
		{" a , b ", []string{"a", "b"}},
		{"", nil},
	} {
		hosts, err := ExpandHostlist(trial.expr)
		c.Check(err, check.IsNil, check.Commentf("%q", trial.expr))
		c.Check(hosts, check.DeepEquals, trial.hosts, check.Commentf("%q", trial.expr))
	}
}

func (s *HostlistSuite) TestExpandInvalid(c *check.C) {
	for _, expr := range []string{
		"node[1-3",
		"node1-3]",
		"node[[1-2]]",
		"node[3-1]",
		"node[a-b]",
		"node[1,,2]",
		"node[0-70000]",
		"node[0-40000,0-40000]",
		"node[0-9223372036854775807]",
	} {
		_, err := ExpandHostlist(expr)
		c.Check(errors.Is(err, ErrInvalidHostlist), check.Equals, true, check.Commentf("%q: %v", expr, err))
	}
}

func (s *HostlistSuite) TestCompress(c *check.C) {
	c.Check(CompressHostlist([]string{"n1", "n2", "n3", "n5", "gpu01", "login"}), check.Equals, "gpu01,login,n[1-3,5]")
	c.Check(CompressHostlist([]string{"n03", "n01", "n02", "n02"}), check.Equals, "n[01-03]")
	c.Check(CompressHostlist([]string{"n1", "n01"}), check.Equals, "n01,n1")
	c.Check(CompressHostlist(nil), check.Equals, "")
}

func (s *HostlistSuite) TestCompressMixedWidth(c *check.C) {
	c.Check(CompressHostlist([]string{"n08", "n09", "n10", "n11"}), check.Equals, "n[08-11]")
	c.Check(CompressHostlist([]string{"n10", "n09", "n5", "n100"}), check.Equals, "n[09-10],n[5,100]")
	hosts, err := ExpandHostlist("n[08-11]")
	c.Assert(err, check.IsNil)
	c.Check(CompressHostlist(hosts), check.Equals, "n[08-11]")
}

func (s *HostlistSuite) TestRoundTrip(c *check.C) {
	hosts, err := ExpandHostlist("a[1-4,9],b[001-003]")
	c.Assert(err, check.IsNil)
	c.Check(CompressHostlist(hosts), check.Equals, "a[1-4,9],b[001-003]")
}

func (s *HostlistSuite) TestExpandLargeBounds(c *check.C) {
	done := make(chan struct{})
	var hosts []string
	var err error
	go func() {
		defer close(done)
		hosts, err = ExpandHostlist("n[9223372036854775806-9223372036854775807]")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.Fatal("expansion did not terminate")
	}
	c.Assert(err, check.IsNil)
	c.Check(hosts, check.DeepEquals, []string{"n9223372036854775806", "n9223372036854775807"})
}
