// Package report emits incremental ("next") and terminal ("end") task
// results back over the control channel. Under performance mode pure
// per-case results are buffered in memory and flushed as the terminal
// message's case list, so a large test suite costs one message instead
// of thousands.
package report

import (
	"fmt"
	"sync"

	"github.com/programme-lv/judgehost/api"
)

// Sender puts one framed message on the control channel
type Sender interface {
	Send(msg any) error
}

// Reporter creates per-task reporters bound to one control channel
type Reporter struct {
	sender      Sender
	performance bool
	scrub       []string
}

// New wires a reporter to sender. scrubPrefixes are local filesystem
// path prefixes redacted from all free-text fields before a message
// leaves the process.
func New(sender Sender, performance bool, scrubPrefixes ...string) *Reporter {
	return &Reporter{
		sender:      sender,
		performance: performance,
		scrub:       scrubPrefixes,
	}
}

// Task returns the reporter for one dispatched task, bound to its
// request id.
func (r *Reporter) Task(rid string) *TaskReporter {
	return &TaskReporter{rid: rid, r: r}
}

// TaskReporter reports results of a single task. Exactly one terminal
// report is allowed; a second End is an error.
type TaskReporter struct {
	rid string
	r   *Reporter

	mu    sync.Mutex
	cases []api.CaseResult
	agg   aggregate
	ended bool
}

// aggregate remembers the latest top-level fields seen on buffered
// partials so batching does not silently drop them
type aggregate struct {
	status    *int32
	score     *int32
	timeMs    *int64
	memoryKiB *int64
	progress  *float64
}

// Next reports an incremental result. In performance mode a pure
// per-case result (case set, no compiler text, no message) is buffered
// instead of sent.
func (t *TaskReporter) Next(res api.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return fmt.Errorf("task %s already reported its terminal result", t.rid)
	}
	if t.r.performance && pureCase(res) {
		c := *res.Case
		c.Message = t.r.scrubText(c.Message)
		t.cases = append(t.cases, c)
		t.agg.update(res)
		return nil
	}

	return t.r.sender.Send(api.NewNext(t.rid, t.r.scrubbed(res)))
}

// End reports the terminal result, flushing any buffered per-case
// results into its case list.
func (t *TaskReporter) End(res api.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return fmt.Errorf("task %s already reported its terminal result", t.rid)
	}
	t.ended = true

	if len(t.cases) > 0 {
		res.Cases = append(t.cases, res.Cases...)
		t.cases = nil
	}
	t.agg.fill(&res)

	return t.r.sender.Send(api.NewEnd(t.rid, t.r.scrubbed(res)))
}

func pureCase(res api.Result) bool {
	return res.Case != nil && res.CompilerText == "" && res.Message == ""
}

func (a *aggregate) update(res api.Result) {
	if res.Status != nil {
		a.status = res.Status
	}
	if res.Score != nil {
		a.score = res.Score
	}
	if res.TimeMs != nil {
		a.timeMs = res.TimeMs
	}
	if res.MemoryKiB != nil {
		a.memoryKiB = res.MemoryKiB
	}
	if res.Progress != nil {
		a.progress = res.Progress
	}
}

// fill copies remembered aggregates into the terminal result where the
// terminal call did not supply its own
func (a *aggregate) fill(res *api.Result) {
	if res.Status == nil {
		res.Status = a.status
	}
	if res.Score == nil {
		res.Score = a.score
	}
	if res.TimeMs == nil {
		res.TimeMs = a.timeMs
	}
	if res.MemoryKiB == nil {
		res.MemoryKiB = a.memoryKiB
	}
	if res.Progress == nil {
		res.Progress = a.progress
	}
}
