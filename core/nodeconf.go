package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const NodeStateUnknown = "UNKNOWN"

// NodeConf is one NodeName line of slurm.conf.
type NodeConf struct {
	NodeName       string `json:"node_name"`
	NodeAddr       string `json:"node_addr"`
	CPUs           int    `json:"cpus"`
	ThreadsPerCore int    `json:"threads_per_core"`
	CoresPerSocket int    `json:"cores_per_socket"`
	Sockets        int    `json:"sockets"`
	RealMemory     int    `json:"real_memory"`
	State          string `json:"state"`
	// Keys other than the ones above, in input order
	Extra []KeyValue `json:"extra,omitempty"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (n NodeConf) String() string {
	state := n.State
	if state == "" {
		state = NodeStateUnknown
	}
	line := fmt.Sprintf("NodeName=%s NodeAddr=%s CPUs=%d ThreadsPerCore=%d CoresPerSocket=%d Sockets=%d RealMemory=%d State=%s",
		n.NodeName, n.NodeAddr, n.CPUs, n.ThreadsPerCore, n.CoresPerSocket, n.Sockets, n.RealMemory, state)
	for _, kv := range n.Extra {
		line += " " + kv.Key + "=" + kv.Value
	}
	return line
}

// ParseError reports a malformed NodeName line.
type ParseError struct {
	Line    int
	Content string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d (%s): %s", e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("parse error (%s): %s", e.Content, e.Reason)
}

// ParseNodeConf parses a "NodeName=... Key=Value ..." line.
func ParseNodeConf(line string) (NodeConf, error) {
	var n NodeConf
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return n, &ParseError{Content: line, Reason: "empty line"}
	}
	for i, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return n, &ParseError{Content: line, Reason: "expected Key=Value, got " + strconv.Quote(field)}
		}
		if i == 0 && key != "NodeName" {
			return n, &ParseError{Content: line, Reason: "line does not start with NodeName="}
		}
		var err error
		switch key {
		case "NodeName":
			n.NodeName = value
		case "NodeAddr":
			n.NodeAddr = value
		case "CPUs":
			n.CPUs, err = strconv.Atoi(value)
		case "ThreadsPerCore":
			n.ThreadsPerCore, err = strconv.Atoi(value)
		case "CoresPerSocket":
			n.CoresPerSocket, err = strconv.Atoi(value)
		case "Sockets":
			n.Sockets, err = strconv.Atoi(value)
		case "RealMemory":
			n.RealMemory, err = strconv.Atoi(value)
		case "State":
			n.State = value
		default:
			n.Extra = append(n.Extra, KeyValue{Key: key, Value: value})
		}
		if err != nil {
			return n, &ParseError{Content: line, Reason: fmt.Sprintf("%s: %q is not an integer", key, value)}
		}
	}
	if n.NodeName == "" {
		return n, &ParseError{Content: line, Reason: "empty NodeName"}
	}
	return n, nil
}

// ReadNodeConfs reads NodeName lines from r. Blank lines, comments and
// lines that are not NodeName definitions are ignored.
func ReadNodeConfs(r io.Reader) ([]NodeConf, error) {
	var confs []NodeConf
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.HasPrefix(line, "NodeName=") {
			continue
		}
		n, err := ParseNodeConf(line)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Line = lineno
			}
			return confs, err
		}
		confs = append(confs, n)
	}
	return confs, scanner.Err()
}

// MergeNodeConfs drops duplicate node names (the last one wins) and
// sorts the result by node name, comparing digit runs numerically.
func MergeNodeConfs(confs []NodeConf) []NodeConf {
	byName := make(map[string]NodeConf, len(confs))
	for _, n := range confs {
		byName[n.NodeName] = n
	}
	merged := make([]NodeConf, 0, len(byName))
	for _, n := range byName {
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool {
		return NaturalLess(merged[i].NodeName, merged[j].NodeName)
	})
	return merged
}

// NaturalLess orders "n2" before "n10".
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			da, ra := leadingDigits(a)
			db, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(da) != len(db) {
				return len(da) < len(db)
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
