package core

import (
	"bytes"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&TableSuite{})

type TableSuite struct{}

func (s *TableSuite) TestWriteTable(c *check.C) {
	table := [][]string{
		{"JOBID", "STATE", "NODELIST"},
		{"101", "RUNNING", "n1"},
		{"1002", "PENDING", ""},
	}
	var buf bytes.Buffer
	WriteTable(&buf, table, false)
	c.Check(buf.String(), check.Equals,
		"JOBID  STATE    NODELIST\n"+
			"101    RUNNING  n1\n"+
			"1002   PENDING  \n")

	buf.Reset()
	WriteTable(&buf, table, true)
	c.Check(buf.String(), check.Equals, "101   RUNNING  n1\n1002  PENDING  \n")
}
