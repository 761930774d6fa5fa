package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/project"
)

// event is one executor call; start and end are positions in a global
// sequence shared by all calls.
type event struct {
	dir   string
	kind  string
	start int64
	end   int64
}

// fakeExecutor records calls, tracks peak concurrency and fails calls
// selected by failOn.
type fakeExecutor struct {
	delay  time.Duration
	failOn func(dir, kind string, nth int) error

	seq      atomic.Int64
	inFlight atomic.Int32
	peak     atomic.Int32

	mu     sync.Mutex
	counts map[string]int
	events []event
}

func (f *fakeExecutor) Run(_ context.Context, dir string, args []string) error {
	kind := args[len(args)-1]
	start := f.seq.Add(1)

	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[dir+" "+kind]++
	nth := f.counts[dir+" "+kind]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	var err error
	if f.failOn != nil {
		err = f.failOn(dir, kind, nth)
	}

	f.inFlight.Add(-1)
	end := f.seq.Add(1)

	f.mu.Lock()
	f.events = append(f.events, event{dir: dir, kind: kind, start: start, end: end})
	f.mu.Unlock()

	return err
}

func (f *fakeExecutor) calls(kind string) []event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []event
	for _, e := range f.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}

	return out
}

type fakeCloner struct {
	mu     sync.Mutex
	cloned []string
	err    error
}

func (c *fakeCloner) Clone(_ context.Context, p project.Project) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cloned = append(c.cloned, p.Show())
	if c.err != nil {
		return c.err
	}

	return os.MkdirAll(p.Root(), 0o755)
}

// checkedOut returns n projects whose roots exist under a temp dir.
func checkedOut(t *testing.T, n int) []project.Project {
	t.Helper()

	base := t.TempDir()
	projects := make([]project.Project, n)

	for i := range projects {
		name := string(rune('a' + i))
		projects[i] = project.MustNew("org", name, base,
			[]string{"compile"}, []string{"clean"}, false)
		require.NoError(t, os.Mkdir(projects[i].Root(), 0o755))
	}

	return projects
}

func newPipeline(t *testing.T, cfg Config, exec harness.Executor, cloner harness.Cloner) *Pipeline {
	t.Helper()

	p, err := New(cfg, exec, cloner, nil)
	require.NoError(t, err)

	return p
}

func TestNewRejectsBadConfig(t *testing.T) {
	exec := &fakeExecutor{}

	_, err := New(Config{Measure: true, Rounds: 0}, exec, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Measure: true, Rounds: 1}, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Clone: true, Measure: true, Rounds: 1}, exec, nil, nil)
	assert.Error(t, err)

	p, err := New(Config{Measure: false, Rounds: 0}, exec, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWarmupParallelism, p.cfg.WarmupParallelism)
}

func TestMeasureRoundCount(t *testing.T) {
	exec := &fakeExecutor{}
	projects := checkedOut(t, 3)
	cfg := Config{Rounds: 4, Measure: true}

	results, err := newPipeline(t, cfg, exec, nil).Run(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, projects[i].Show(), r.Project.Show(), "input order")
		assert.Len(t, r.Rounds, 4)
	}

	assert.Len(t, exec.calls("clean"), 12)
	assert.Len(t, exec.calls("compile"), 12)
	assert.Equal(t, int32(1), exec.peak.Load(), "measurement must be sequential")
}

func TestMeasureCleanPrecedesCompile(t *testing.T) {
	exec := &fakeExecutor{}
	projects := checkedOut(t, 2)

	_, err := newPipeline(t, Config{Rounds: 2, Measure: true}, exec, nil).
		Run(context.Background(), projects)
	require.NoError(t, err)

	var kinds []string
	for _, e := range exec.events {
		kinds = append(kinds, filepath.Base(e.dir)+":"+e.kind)
	}

	assert.Equal(t, []string{
		"a:clean", "a:compile", "a:clean", "a:compile",
		"b:clean", "b:compile", "b:clean", "b:compile",
	}, kinds)
}

func TestMeasureRecordsElapsed(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	projects := checkedOut(t, 1)

	results, err := newPipeline(t, Config{Rounds: 2, Measure: true}, exec, nil).
		Measure(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, results, 1)

	for _, d := range results[0].Rounds {
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestMeasureFailureAborts(t *testing.T) {
	projects := checkedOut(t, 2)
	boom := errors.New("boom")
	exec := &fakeExecutor{failOn: func(dir, kind string, nth int) error {
		if filepath.Base(dir) == "a" && kind == "clean" && nth == 2 {
			return boom
		}
		return nil
	}}

	results, err := newPipeline(t, Config{Rounds: 3, Measure: true}, exec, nil).
		Run(context.Background(), projects)

	assert.Nil(t, results)

	var merr *MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "org/a", merr.Project.Show())
	assert.Equal(t, 2, merr.Round)
	assert.Equal(t, StepClean, merr.Step)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, exec.calls("compile"), 1, "no compile after failed clean")
	for _, e := range exec.events {
		assert.NotEqual(t, "b", filepath.Base(e.dir), "later project must not run")
	}
}

func TestMeasureCompileFailure(t *testing.T) {
	projects := checkedOut(t, 1)
	exec := &fakeExecutor{failOn: func(_, kind string, _ int) error {
		if kind == "compile" {
			return &harness.CommandFailedError{ExitCode: 1}
		}
		return nil
	}}

	_, err := newPipeline(t, Config{Rounds: 3, Measure: true}, exec, nil).
		Measure(context.Background(), projects)

	var merr *MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 1, merr.Round)
	assert.Equal(t, StepCompile, merr.Step)
}

func TestMeasureCancelled(t *testing.T) {
	projects := checkedOut(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, Config{Rounds: 3, Measure: true}, &fakeExecutor{}, nil).
		Measure(ctx, projects)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeasureDisabled(t *testing.T) {
	exec := &fakeExecutor{}
	projects := checkedOut(t, 2)

	results, err := newPipeline(t, Config{Rounds: 3, Warmup: true}, exec, nil).
		Run(context.Background(), projects)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Empty(t, exec.calls("clean"))
	assert.Len(t, exec.calls("compile"), 2, "warmup still runs")
}

func TestWarmupConcurrencyCap(t *testing.T) {
	exec := &fakeExecutor{delay: 30 * time.Millisecond}
	projects := checkedOut(t, 10)

	p := newPipeline(t, Config{Warmup: true, WarmupParallelism: 3}, exec, nil)
	out, failures := p.Warmup(context.Background(), projects)

	assert.Equal(t, projects, out)
	assert.Len(t, failures, 10)
	assert.Len(t, exec.calls("compile"), 10)
	assert.LessOrEqual(t, exec.peak.Load(), int32(3))
	assert.Greater(t, exec.peak.Load(), int32(1), "warmup should overlap")
}

func TestWarmupDisabledIsIdentity(t *testing.T) {
	exec := &fakeExecutor{}
	projects := checkedOut(t, 3)

	out, failures := newPipeline(t, Config{}, exec, nil).Warmup(context.Background(), projects)

	assert.Equal(t, projects, out)
	for _, f := range failures {
		assert.Nil(t, f)
	}
	assert.Empty(t, exec.events)
}

func TestWarmupFailureIsolated(t *testing.T) {
	projects := checkedOut(t, 3)
	exec := &fakeExecutor{failOn: func(dir, kind string, nth int) error {
		// Only the first compile of "a" (its warmup) fails.
		if filepath.Base(dir) == "a" && kind == "compile" && nth == 1 {
			return &harness.CommandFailedError{ExitCode: 2}
		}
		return nil
	}}
	cfg := Config{Rounds: 2, Warmup: true, Measure: true}
	p := newPipeline(t, cfg, exec, nil)

	_, failures := p.Warmup(context.Background(), projects)
	require.NotNil(t, failures[0])
	assert.Equal(t, "org/a", failures[0].Project.Show())
	assert.Nil(t, failures[1])
	assert.Nil(t, failures[2])

	exec2 := &fakeExecutor{failOn: exec.failOn}
	results, err := newPipeline(t, cfg, exec2, nil).Run(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Len(t, r.Rounds, 2)
	}
}

func TestBarrier(t *testing.T) {
	exec := &fakeExecutor{delay: 10 * time.Millisecond}
	projects := checkedOut(t, 5)
	cfg := Config{Rounds: 1, Warmup: true, Measure: true, WarmupParallelism: 3}

	_, err := newPipeline(t, cfg, exec, nil).Run(context.Background(), projects)
	require.NoError(t, err)

	compiles := exec.calls("compile")
	cleans := exec.calls("clean")
	require.Len(t, compiles, 10)
	require.NotEmpty(t, cleans)

	// The first five compile ends belong to warmup; measurement compiles
	// always follow a clean.
	var lastWarmupEnd int64
	for _, e := range compiles {
		if e.start < cleans[0].start {
			lastWarmupEnd = max(lastWarmupEnd, e.end)
		}
	}

	firstMeasureStart := cleans[0].start
	for _, e := range cleans {
		firstMeasureStart = min(firstMeasureStart, e.start)
	}

	assert.Greater(t, firstMeasureStart, lastWarmupEnd)

	warmups := 0
	for _, e := range compiles {
		if e.end < firstMeasureStart {
			warmups++
		}
	}
	assert.Equal(t, 5, warmups)
}

func TestAcquireClonesMissing(t *testing.T) {
	base := t.TempDir()
	present := project.MustNew("org", "present", base, []string{"c"}, []string{"d"}, true)
	missing := project.MustNew("org", "missing", base, []string{"c"}, []string{"d"}, true)
	manual := project.MustNew("org", "manual", base, []string{"c"}, []string{"d"}, false)
	require.NoError(t, os.Mkdir(present.Root(), 0o755))

	cloner := &fakeCloner{}
	p := newPipeline(t, Config{Clone: true}, &fakeExecutor{}, cloner)

	out, err := p.Acquire(context.Background(), []project.Project{present, missing, manual})
	require.NoError(t, err)

	assert.Len(t, out, 3)
	assert.Equal(t, []string{"org/missing"}, cloner.cloned)
	assert.True(t, missing.Exists())
	assert.False(t, manual.Exists())
}

func TestAcquireCloneDisabled(t *testing.T) {
	base := t.TempDir()
	missing := project.MustNew("org", "missing", base, []string{"c"}, []string{"d"}, true)
	cloner := &fakeCloner{}

	p := newPipeline(t, Config{Clone: false}, &fakeExecutor{}, cloner)
	_, err := p.Acquire(context.Background(), []project.Project{missing})
	require.NoError(t, err)

	assert.Empty(t, cloner.cloned)
}

func TestAcquireFailureIsFatal(t *testing.T) {
	base := t.TempDir()
	a := project.MustNew("org", "a", base, []string{"c"}, []string{"d"}, true)
	b := project.MustNew("org", "b", base, []string{"c"}, []string{"d"}, true)
	cloner := &fakeCloner{err: errors.New("network down")}
	exec := &fakeExecutor{}

	cfg := DefaultConfig()
	results, err := newPipeline(t, cfg, exec, cloner).
		Run(context.Background(), []project.Project{a, b})

	assert.Nil(t, results)

	var aerr *AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "org/a", aerr.Project.Show())
	assert.Equal(t, []string{"org/a"}, cloner.cloned)
	assert.Empty(t, exec.events)
}

func TestMissingProjectFailsNaturally(t *testing.T) {
	base := t.TempDir()
	missing := project.MustNew("org", "gone", base,
		[]string{"sh", "-c", "true"}, []string{"sh", "-c", "true"}, false)
	exec := &harness.CommandExecutor{Stdout: os.Stderr, Stderr: os.Stderr}

	_, err := newPipeline(t, Config{Rounds: 1, Measure: true}, exec, nil).
		Run(context.Background(), []project.Project{missing})

	var execErr *harness.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestRunRejectsDuplicates(t *testing.T) {
	projects := checkedOut(t, 1)

	_, err := newPipeline(t, Config{Rounds: 1, Measure: true}, &fakeExecutor{}, nil).
		Run(context.Background(), append(projects, projects[0]))

	assert.Error(t, err)
}
