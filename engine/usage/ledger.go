// Package usage tracks model token consumption and spend for one pipeline
// run. The ledger is an explicit accumulator passed to whatever makes model
// calls; nothing in this package is process-global.
package usage

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Call is the accounting footprint of one model call.
type Call struct {
	Op               string
	Model            string
	PromptTokens     int
	CompletionTokens int
	NativeTokens     int
	Cost             float64
	CostEstimated    bool
}

// Ledger accumulates usage across a run. Safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	calls          int
	failedCalls    int
	estimatedCosts int
	nativeTokens   int
	promptTokens   int
	outputTokens   int
	totalCost      float64
	callsByOp      map[string]int
	failedByOp     map[string]int
	costByMake     map[string]float64
	codesByMake    map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		callsByOp:   make(map[string]int),
		failedByOp:  make(map[string]int),
		costByMake:  make(map[string]float64),
		codesByMake: make(map[string]int),
	}
}

// Record adds one call's footprint.
func (l *Ledger) Record(c Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.callsByOp[c.Op]++
	l.promptTokens += c.PromptTokens
	l.outputTokens += c.CompletionTokens
	l.nativeTokens += c.NativeTokens
	l.totalCost += c.Cost
	if c.CostEstimated {
		l.estimatedCosts++
	}
}

// RecordFailure counts one failed external call for op. Failed calls have
// no usage footprint; they exist so the run report shows what was lost.
func (l *Ledger) RecordFailure(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failedCalls++
	l.failedByOp[op]++
}

// AddCodes attributes accepted codes and their cost share to a make.
func (l *Ledger) AddCodes(makeID string, n int, cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.codesByMake[makeID] += n
	l.costByMake[makeID] += cost
}

// Calls returns the total number of recorded calls.
func (l *Ledger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// TotalCost returns the accumulated spend in USD.
func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalCost
}

// FailedCalls returns the total number of failed external calls.
func (l *Ledger) FailedCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failedCalls
}

// Totals returns (calls, native tokens, cost) for persistence.
func (l *Ledger) Totals() (int, int, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.nativeTokens, l.totalCost
}

// CodesByMake returns a copy of the per-make accepted code counts.
func (l *Ledger) CodesByMake() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.codesByMake))
	for k, v := range l.codesByMake {
		out[k] = v
	}
	return out
}

// WriteSummary renders the run summary tables to w.
func (l *Ledger) WriteSummary(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Model Usage")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"API calls", l.calls},
		{"Failed calls", l.failedCalls},
		{"Prompt tokens", l.promptTokens},
		{"Completion tokens", l.outputTokens},
		{"Native tokens", l.nativeTokens},
		{"Total cost (USD)", fmt.Sprintf("%.4f", l.totalCost)},
		{"Calls with estimated cost", l.estimatedCosts},
	})
	t.Render()

	opSet := make(map[string]bool, len(l.callsByOp)+len(l.failedByOp))
	for op := range l.callsByOp {
		opSet[op] = true
	}
	for op := range l.failedByOp {
		opSet[op] = true
	}
	ops := make([]string, 0, len(opSet))
	for op := range opSet {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	if len(ops) > 0 {
		ot := table.NewWriter()
		ot.SetOutputMirror(w)
		ot.SetTitle("Calls by Operation")
		ot.AppendHeader(table.Row{"Operation", "Calls", "Failed"})
		for _, op := range ops {
			ot.AppendRow(table.Row{op, l.callsByOp[op], l.failedByOp[op]})
		}
		ot.Render()
	}

	makes := make([]string, 0, len(l.codesByMake))
	for m := range l.codesByMake {
		makes = append(makes, m)
	}
	sort.Strings(makes)
	if len(makes) > 0 {
		mt := table.NewWriter()
		mt.SetOutputMirror(w)
		mt.SetTitle("Codes by Make")
		mt.AppendHeader(table.Row{"Make", "Codes", "Cost (USD)"})
		for _, m := range makes {
			mt.AppendRow(table.Row{m, l.codesByMake[m], fmt.Sprintf("%.4f", l.costByMake[m])})
		}
		mt.Render()
	}
}
