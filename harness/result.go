// Package harness runs the external commands a benchmark depends on
// (clone, clean, compile) and holds the per-project measurement result.
package harness

import (
	"time"

	"github.com/weiihann/compilebench/project"
)

// Result holds the timed rounds of one project, earliest round first.
type Result struct {
	Project project.Project
	Rounds  []time.Duration
}

// Seconds returns each round truncated to whole seconds.
func (r Result) Seconds() []int64 {
	secs := make([]int64, len(r.Rounds))
	for i, d := range r.Rounds {
		secs[i] = int64(d / time.Second)
	}

	return secs
}
