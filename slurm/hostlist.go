package slurm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxHostlistSize bounds the number of names one expression may expand to.
const MaxHostlistSize = 1 << 16

// ExpandHostlist expands a Slurm hostlist expression such as
// "node[01-03,7],gpu1" into individual host names.
func ExpandHostlist(expr string) ([]string, error) {
	var hosts []string
	items, err := splitHostlist(expr)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		expanded, err := expandHost(item, MaxHostlistSize-len(hosts))
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// splitHostlist splits on commas outside brackets.
func splitHostlist(expr string) ([]string, error) {
	var items []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '[':
			depth++
			if depth > 1 {
				return nil, fmt.Errorf("%w: nested brackets in %q", ErrInvalidHostlist, expr)
			}
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalidHostlist, expr)
			}
		case ',':
			if depth == 0 {
				items = appendItem(items, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalidHostlist, expr)
	}
	return appendItem(items, expr[start:]), nil
}

func appendItem(items []string, item string) []string {
	if item = strings.TrimSpace(item); item != "" {
		items = append(items, item)
	}
	return items
}

// expandHost expands every bracket group in name; several groups give
// the cartesian product.
func expandHost(name string, limit int) ([]string, error) {
	open := strings.IndexByte(name, '[')
	if open < 0 {
		if limit < 1 {
			return nil, fmt.Errorf("%w: more than %d hosts", ErrInvalidHostlist, MaxHostlistSize)
		}
		return []string{name}, nil
	}
	end := strings.IndexByte(name[open:], ']')
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalidHostlist, name)
	}
	end += open
	prefix, suffix := name[:open], name[end+1:]
	values, err := expandRanges(name[open+1:end])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidHostlist, name, err)
	}
	var hosts []string
	for _, v := range values {
		rest, err := expandHost(v+suffix, limit-len(hosts))
		if err != nil {
			return nil, err
		}
		for _, r := range rest {
			hosts = append(hosts, prefix+r)
		}
	}
	return hosts, nil
}

// expandRanges expands "01-03,7" to 01 02 03 7, keeping the zero padding
// of each lower bound.
func expandRanges(spec string) ([]string, error) {
	var values []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty range")
		}
		lo, hi, isRange := strings.Cut(part, "-")
		loN, err := strconv.Atoi(lo)
		if err != nil || loN < 0 {
			return nil, fmt.Errorf("bad range bound %q", lo)
		}
		if !isRange {
			if len(values) >= MaxHostlistSize {
				return nil, fmt.Errorf("more than %d values in %q", MaxHostlistSize, spec)
			}
			values = append(values, lo)
			continue
		}
		hiN, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("bad range bound %q", hi)
		}
		if hiN < loN {
			return nil, fmt.Errorf("reversed range %q", part)
		}
		// hiN-loN cannot overflow: both bounds are non-negative
		span := hiN - loN
		if span >= MaxHostlistSize-len(values) {
			return nil, fmt.Errorf("range %q too large", part)
		}
		width := len(lo)
		for k := 0; k <= span; k++ {
			values = append(values, fmt.Sprintf("%0*d", width, loN+k))
		}
	}
	return values, nil
}

type hostGroup struct {
	prefix string
	width  int
	nums   []int
}

// CompressHostlist is the inverse of ExpandHostlist for names with a
// single trailing number: "n1 n2 n3 n5 gpu01 login" gives
// "gpu01,login,n[1-3,5]".
func CompressHostlist(names []string) string {
	type numbered struct {
		prefix, digits string
		n              int
	}
	var (
		plain   []string
		entries []numbered
		padded  = map[string]map[int]bool{}
		seen    = map[string]bool{}
	)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		i := len(name)
		for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
			i--
		}
		digits := name[i:]
		n, err := strconv.Atoi(digits)
		if digits == "" || err != nil {
			plain = append(plain, name)
			continue
		}
		entries = append(entries, numbered{name[:i], digits, n})
		if digits[0] == '0' && len(digits) > 1 {
			if padded[name[:i]] == nil {
				padded[name[:i]] = map[int]bool{}
			}
			padded[name[:i]][len(digits)] = true
		}
	}

	groups := map[string]*hostGroup{}
	for _, e := range entries {
		// "n01" and "n1" only share a group when neither is zero padded,
		// but "n10" joins "n08" since both are two digits wide
		width := 0
		if padded[e.prefix][len(e.digits)] {
			width = len(e.digits)
		}
		key := fmt.Sprintf("%s\x00%d", e.prefix, width)
		g, ok := groups[key]
		if !ok {
			g = &hostGroup{prefix: e.prefix, width: width}
			groups[key] = g
		}
		g.nums = append(g.nums, e.n)
	}
	var out []string
	out = append(out, plain...)
	for _, g := range groups {
		out = append(out, g.String())
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func (g *hostGroup) format(n int) string {
	return fmt.Sprintf("%0*d", g.width, n)
}

func (g *hostGroup) String() string {
	sort.Ints(g.nums)
	if len(g.nums) == 1 {
		return g.prefix + g.format(g.nums[0])
	}
	var ranges []string
	start, prev := g.nums[0], g.nums[0]
	flush := func() {
		if start == prev {
			ranges = append(ranges, g.format(start))
		} else {
			ranges = append(ranges, g.format(start)+"-"+g.format(prev))
		}
	}
	for _, n := range g.nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return g.prefix + "[" + strings.Join(ranges, ",") + "]"
}
