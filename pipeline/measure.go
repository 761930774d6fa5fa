package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/project"
)

// Measure times Rounds clean+compile cycles per project. Projects and rounds
// run strictly one after another. The first failing clean or compile
// aborts the whole stage with a *MeasurementError. With measurement
// disabled it returns no results.
func (p *Pipeline) Measure(ctx context.Context, projects []project.Project) ([]harness.Result, error) {
	if !p.cfg.Measure {
		return nil, nil
	}

	results := make([]harness.Result, 0, len(projects))

	for _, proj := range projects {
		res, err := p.measureProject(ctx, proj)
		if err != nil {
			return nil, err
		}

		results = append(results, res)
	}

	return results, nil
}

func (p *Pipeline) measureProject(ctx context.Context, proj project.Project) (harness.Result, error) {
	logger := p.logger.With(slog.String("project", proj.Show()))

	logger.InfoContext(ctx, "measuring project",
		slog.Int("rounds", p.cfg.Rounds),
	)

	rounds := make([]time.Duration, 0, p.cfg.Rounds)
	dir := proj.Root()

	for round := 1; round <= p.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return harness.Result{}, &MeasurementError{
				Project: proj, Round: round, Step: StepClean, Err: err,
			}
		}

		if err := p.exec.Run(ctx, dir, proj.CleanCommand()); err != nil {
			return harness.Result{}, &MeasurementError{
				Project: proj, Round: round, Step: StepClean, Err: err,
			}
		}

		start := time.Now()
		err := p.exec.Run(ctx, dir, proj.CompileCommand())
		elapsed := time.Since(start)

		if err != nil {
			return harness.Result{}, &MeasurementError{
				Project: proj, Round: round, Step: StepCompile, Err: err,
			}
		}

		logger.InfoContext(ctx, "round finished",
			slog.Int("round", round),
			slog.Float64("seconds", elapsed.Seconds()),
		)

		rounds = append(rounds, elapsed)
	}

	return harness.Result{Project: proj, Rounds: rounds}, nil
}
