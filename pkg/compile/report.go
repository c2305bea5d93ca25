package compile

import (
	"fmt"
	"sort"
	"sync"
)

// Diagnostic records a non-fatal per-function note (e.g. dropped
// unreachable blocks) surfaced alongside a successful Result.
type Diagnostic struct {
	Function string
	Message  string
}

// Failure records a fatal per-function compilation error, keeping the
// function name alongside the error so a batch report can list which
// functions failed without aborting the rest of the batch (spec §7's
// policy: the driver, not the mid-end, decides whether to continue).
type Failure struct {
	Function string
	Err      error
}

// Report collects the results of compiling a batch of functions,
// guarded by a mutex the way pkg/result.Table guards its rule slice —
// workers add results and failures concurrently, and a snapshot
// accessor returns a stable, sorted copy.
type Report struct {
	mu          sync.Mutex
	results     []*Result
	failures    []Failure
	diagnostics []Diagnostic
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// AddResult records a successful compilation, plus a diagnostic for
// every block Compile dropped as unreachable.
func (r *Report) AddResult(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	for _, idx := range res.Dropped {
		r.diagnostics = append(r.diagnostics, Diagnostic{
			Function: res.Name,
			Message:  fmt.Sprintf("dropped unreachable block %d before dominance analysis", idx),
		})
	}
}

// AddFailure records a fatal compilation error for a function.
func (r *Report) AddFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Function: name, Err: err})
}

// Results returns a copy of the completed results, sorted by function
// name for deterministic output regardless of completion order.
func (r *Report) Results() []*Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Result, len(r.results))
	copy(out, r.results)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Failures returns a copy of the recorded failures, sorted by
// function name.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	sort.Slice(out, func(i, j int) bool { return out[i].Function < out[j].Function })
	return out
}

// Diagnostics returns a copy of the recorded non-fatal diagnostics.
func (r *Report) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

// Len returns the number of successfully compiled functions.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}
