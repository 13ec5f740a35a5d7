// Package report accumulates check results for one diagnostic run.
// The run context replaces the shared mutable pass/fail counters of a
// shell-script workflow: steps append results, the final summary is an
// immutable value, and the process exit code derives from it.
package report

import (
	"encoding/json"
	"io"
)

// Status of a single check.
type Status string

const (
	Pass Status = "pass"
	Fail Status = "fail"
	Skip Status = "skip"
	Info Status = "info" // context lines; counted in no bucket
)

// Result is one check's outcome.
type Result struct {
	Status  Status `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Run collects results in the order checks execute.
type Run struct {
	results []Result
}

func New() *Run {
	return &Run{}
}

func (r *Run) Add(res Result) {
	r.results = append(r.results, res)
}

func (r *Run) Pass(name, message string) { r.Add(Result{Status: Pass, Name: name, Message: message}) }
func (r *Run) Skip(name, message string) { r.Add(Result{Status: Skip, Name: name, Message: message}) }
func (r *Run) Info(name, message string) { r.Add(Result{Status: Info, Name: name, Message: message}) }

func (r *Run) Fail(name, message, detail string) {
	r.Add(Result{Status: Fail, Name: name, Message: message, Detail: detail})
}

// Results returns a copy; the run itself stays append-only.
func (r *Run) Results() []Result {
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Run) count(s Status) int {
	n := 0
	for _, res := range r.results {
		if res.Status == s {
			n++
		}
	}
	return n
}

func (r *Run) Passed() int  { return r.count(Pass) }
func (r *Run) Failed() int  { return r.count(Fail) }
func (r *Run) Skipped() int { return r.count(Skip) }

// Ok reports whether the run had no failures.
func (r *Run) Ok() bool { return r.Failed() == 0 }

// Summary is the immutable JSON form of a finished run.
type Summary struct {
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Results []Result `json:"results"`
}

func (r *Run) Summary() Summary {
	return Summary{
		Passed:  r.Passed(),
		Failed:  r.Failed(),
		Skipped: r.Skipped(),
		Results: r.Results(),
	}
}

// WriteJSON renders the summary for automation consumers.
func (r *Run) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Summary())
}
