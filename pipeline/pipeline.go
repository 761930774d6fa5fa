// Package pipeline drives a compile benchmark through its stages:
// acquire sources, warm up build tooling, wait for every warmup to finish,
// then time repeated clean+compile rounds one project at a time.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/project"
)

// DefaultWarmupParallelism caps concurrent warmup compiles.
const DefaultWarmupParallelism = 3

// DefaultRounds is the number of timed rounds per project.
const DefaultRounds = 10

// Config holds the resolved stage toggles. The pipeline never consults the
// environment itself.
type Config struct {
	Rounds            int
	Clone             bool
	Warmup            bool
	Measure           bool
	WarmupParallelism int
}

// DefaultConfig enables every stage with the default round count.
func DefaultConfig() Config {
	return Config{
		Rounds:            DefaultRounds,
		Clone:             true,
		Warmup:            true,
		Measure:           true,
		WarmupParallelism: DefaultWarmupParallelism,
	}
}

// Pipeline runs the benchmark stages over an ordered project list.
type Pipeline struct {
	cfg    Config
	exec   harness.Executor
	cloner harness.Cloner
	logger *slog.Logger
}

// New validates cfg and returns a Pipeline using exec for clean and compile
// commands and cloner for missing checkouts.
func New(
	cfg Config,
	exec harness.Executor,
	cloner harness.Cloner,
	logger *slog.Logger,
) (*Pipeline, error) {
	if cfg.Measure && cfg.Rounds < 1 {
		return nil, fmt.Errorf("round count must be at least 1, got %d", cfg.Rounds)
	}

	if cfg.WarmupParallelism <= 0 {
		cfg.WarmupParallelism = DefaultWarmupParallelism
	}

	if exec == nil {
		return nil, fmt.Errorf("pipeline requires an executor")
	}

	if cfg.Clone && cloner == nil {
		return nil, fmt.Errorf("cloning enabled without a cloner")
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		cfg:    cfg,
		exec:   exec,
		cloner: cloner,
		logger: logger,
	}, nil
}

// Run pushes projects through acquisition, warmup and measurement and
// returns one Result per measured project in input order. Any acquisition
// or measurement failure aborts the run and no results are returned.
func (p *Pipeline) Run(ctx context.Context, projects []project.Project) ([]harness.Result, error) {
	if err := project.Validate(projects); err != nil {
		return nil, err
	}

	acquired, err := p.Acquire(ctx, projects)
	if err != nil {
		return nil, err
	}

	// Warmup returns only once every warmup task has exited, so no timed
	// compile overlaps with a warmup compile.
	warmed, _ := p.Warmup(ctx, acquired)

	return p.Measure(ctx, warmed)
}
