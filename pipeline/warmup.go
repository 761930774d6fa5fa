package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/compilebench/project"
)

// Warmup compiles every project once, at most WarmupParallelism at a time,
// to prime build caches and daemons. Failures are logged and returned
// indexed like projects (nil where the warmup succeeded); they never stop
// other warmups or remove a project from the list.
//
// Warmup returns only after all tasks have finished. With warmup disabled
// it returns projects unchanged.
func (p *Pipeline) Warmup(
	ctx context.Context,
	projects []project.Project,
) ([]project.Project, []*WarmupError) {
	failures := make([]*WarmupError, len(projects))

	if !p.cfg.Warmup {
		return projects, failures
	}

	p.logger.InfoContext(ctx, "warming up",
		slog.Int("projects", len(projects)),
		slog.Int("parallelism", p.cfg.WarmupParallelism),
	)

	var g errgroup.Group
	g.SetLimit(p.cfg.WarmupParallelism)

	for i, proj := range projects {
		g.Go(func() error {
			start := time.Now()

			err := p.exec.Run(ctx, proj.Root(), proj.CompileCommand())
			if err != nil {
				failures[i] = &WarmupError{Project: proj, Err: err}

				p.logger.ErrorContext(ctx, "warmup failed",
					slog.String("project", proj.Show()),
					slog.String("error", err.Error()),
				)

				return nil
			}

			p.logger.InfoContext(ctx, "warmup finished",
				slog.String("project", proj.Show()),
				slog.Duration("elapsed", time.Since(start)),
			)

			return nil
		})
	}

	// Tasks never return errors; Wait is the barrier.
	_ = g.Wait()

	return projects, failures
}
