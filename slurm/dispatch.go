package slurm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode selects how the helper is launched on each node.
type Mode string

const (
	// ModeSrun runs the helper as an interactive job step and captures
	// its output.
	ModeSrun Mode = SRunName
	// ModeSbatch submits the helper as a batch job and captures the
	// job id.
	ModeSbatch Mode = SBatchName
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSrun, ModeSbatch:
		return m, nil
	case "":
		return ModeSrun, nil
	}
	return "", fmt.Errorf("%w %q (want %s or %s)", ErrInvalidMode, s, ModeSrun, ModeSbatch)
}

// Request describes the job launched on every node.
type Request struct {
	Mode Mode
	// Helper command and its arguments
	Helper []string
	// Passed to the helper as its last argument when not empty
	ConfFile  string
	JobName   string
	ExtraArgs []string
}

func (r Request) helperArgs() []string {
	args := append([]string(nil), r.Helper...)
	if r.ConfFile != "" {
		args = append(args, r.ConfFile)
	}
	return args
}

// Command returns the program and arguments that run the helper on node.
func (r Request) Command(node string) (string, []string) {
	args := []string{"--nodes=1", "--ntasks=1", "--nodelist=" + node}
	if r.JobName != "" {
		args = append(args, "--job-name="+r.JobName)
	}
	args = append(args, r.ExtraArgs...)
	if r.Mode == ModeSbatch {
		args = append([]string{"--parsable"}, args...)
		args = append(args, "--wrap="+ShellJoin(r.helperArgs()))
		return SBatchName, args
	}
	return SRunName, append(args, r.helperArgs()...)
}

// Result is the outcome of dispatching to one node.
type Result struct {
	Node     string
	JobID    string
	Output   []byte
	Err      error
	Duration time.Duration
}

// DispatchError reports the nodes that failed or were never started.
type DispatchError struct {
	Failed  []string
	Skipped []string
	Total   int
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%d of %d nodes failed", len(e.Failed), e.Total)
	if len(e.Failed) > 0 {
		msg += ": " + CompressHostlist(e.Failed)
	}
	if len(e.Skipped) > 0 {
		msg += fmt.Sprintf(" (%d skipped: %s)", len(e.Skipped), CompressHostlist(e.Skipped))
	}
	return msg
}

// Dispatcher launches a Request on a list of nodes.
type Dispatcher struct {
	CLI    *CLI
	Logger logrus.FieldLogger
	// Run nodes concurrently instead of one after another
	Background bool
	// Maximum concurrent launches in background mode; 0 means all nodes
	Parallel int
	// Stop launching after the first failure
	FailFast bool
	// Optional; observed after every launch
	Metrics *Metrics
}

// Run dispatches req to every node. Results are in node order. When any
// node fails the error is a *DispatchError.
func (d *Dispatcher) Run(ctx context.Context, nodes []string, req Request) ([]Result, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	if len(req.Helper) == 0 {
		return nil, fmt.Errorf("dispatch: empty helper command")
	}
	if req.Mode == "" {
		req.Mode = ModeSrun
	}
	if d.Metrics != nil {
		d.Metrics.nodes.Set(float64(len(nodes)))
	}
	// Closed on the first failure in FailFast mode. Launches already
	// running are left to finish.
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() {
		if d.FailFast {
			stopOnce.Do(func() { close(stop) })
		}
	}
	stopped := func() bool {
		select {
		case <-stop:
			return true
		default:
			return ctx.Err() != nil
		}
	}

	results := make([]Result, len(nodes))
	for i, node := range nodes {
		results[i] = Result{Node: node, Err: ErrSkipped}
	}
	if d.Background {
		d.runBackground(ctx, stop, stopped, halt, nodes, req, results)
	} else {
		for i, node := range nodes {
			if stopped() {
				break
			}
			results[i] = d.launch(ctx, node, req)
			if results[i].Err != nil {
				halt()
			}
		}
	}

	var derr DispatchError
	derr.Total = len(nodes)
	for _, res := range results {
		switch {
		case res.Err == ErrSkipped:
			derr.Skipped = append(derr.Skipped, res.Node)
			if d.Metrics != nil {
				d.Metrics.observe(req.Mode, res)
			}
		case res.Err != nil:
			derr.Failed = append(derr.Failed, res.Node)
		}
	}
	if len(derr.Failed) > 0 || len(derr.Skipped) > 0 {
		return results, &derr
	}
	return results, nil
}

func (d *Dispatcher) runBackground(ctx context.Context, stop <-chan struct{}, stopped func() bool, halt func(), nodes []string, req Request, results []Result) {
	parallel := d.Parallel
	if parallel <= 0 || parallel > len(nodes) {
		parallel = len(nodes)
	}
	runSemaphore := make(chan bool, parallel)
	var wg sync.WaitGroup
	for i, node := range nodes {
		select {
		case runSemaphore <- true:
		case <-stop:
		case <-ctx.Done():
		}
		if stopped() {
			break
		}
		wg.Add(1)
		go func(i int, node string) {
			defer wg.Done()
			defer func() { <-runSemaphore }()
			results[i] = d.launch(ctx, node, req)
			if results[i].Err != nil {
				halt()
			}
		}(i, node)
	}
	wg.Wait()
}

func (d *Dispatcher) launch(ctx context.Context, node string, req Request) Result {
	prog, args := req.Command(node)
	log := d.logger().WithFields(logrus.Fields{"node": node, "mode": req.Mode})
	log.Debugf("launching %s %s", prog, strings.Join(args, " "))
	start := time.Now()
	out, err := d.CLI.run(ctx, prog, args)
	res := Result{Node: node, Output: out, Err: err, Duration: time.Since(start)}
	if err == nil && req.Mode == ModeSbatch {
		res.JobID, res.Err = ParseJobID(out)
	}
	if res.Err != nil {
		log.WithError(res.Err).Warn("dispatch failed")
	} else if res.JobID != "" {
		log.WithField("job", res.JobID).Info("submitted")
	} else {
		log.Info("finished")
	}
	if d.Metrics != nil {
		d.Metrics.observe(req.Mode, res)
	}
	return res
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return d.CLI.Logger
}

// ParseJobID parses "sbatch --parsable" output: "12345" or
// "12345;cluster".
func ParseJobID(out []byte) (string, error) {
	lines := strings.Fields(string(out))
	if len(lines) == 0 {
		return "", fmt.Errorf("empty sbatch output")
	}
	line := lines[len(lines)-1]
	id, _, _ := strings.Cut(line, ";")
	if id == "" || strings.Trim(id, "0123456789_") != "" {
		return "", fmt.Errorf("cannot parse job id from sbatch output %q", line)
	}
	return id, nil
}

// ShellJoin quotes args for sh.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./=:,+@%") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
