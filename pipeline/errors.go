package pipeline

import (
	"fmt"

	"github.com/weiihann/compilebench/project"
)

// AcquisitionError reports a failed clone. It aborts the run.
type AcquisitionError struct {
	Project project.Project
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Project.Show(), e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// WarmupError reports a failed warmup compile. It is logged and never
// aborts the run.
type WarmupError struct {
	Project project.Project
	Err     error
}

func (e *WarmupError) Error() string {
	return fmt.Sprintf("warm up %s: %v", e.Project.Show(), e.Err)
}

func (e *WarmupError) Unwrap() error { return e.Err }

// Steps of a measured round.
const (
	StepClean   = "clean"
	StepCompile = "compile"
)

// MeasurementError reports a clean or compile failure inside a timed round.
// It aborts the run.
type MeasurementError struct {
	Project project.Project
	Round   int
	Step    string
	Err     error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("measure %s round %d %s: %v",
		e.Project.Show(), e.Round, e.Step, e.Err)
}

func (e *MeasurementError) Unwrap() error { return e.Err }
