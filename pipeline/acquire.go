package pipeline

import (
	"context"
	"log/slog"

	"github.com/weiihann/compilebench/project"
)

// Acquire makes sure each project is checked out, one project at a time in
// list order. Missing projects are cloned when both the pipeline and the
// project allow it; otherwise they pass through and later stages fail on
// them naturally.
func (p *Pipeline) Acquire(ctx context.Context, projects []project.Project) ([]project.Project, error) {
	for _, proj := range projects {
		if proj.Exists() {
			continue
		}

		if !p.cfg.Clone || !proj.ShouldClone() {
			p.logger.WarnContext(ctx, "project missing, not cloning",
				slog.String("project", proj.Show()),
				slog.String("root", proj.Root()),
			)

			continue
		}

		p.logger.InfoContext(ctx, "cloning project",
			slog.String("project", proj.Show()),
			slog.String("root", proj.Root()),
		)

		if err := p.cloner.Clone(ctx, proj); err != nil {
			return nil, &AcquisitionError{Project: proj, Err: err}
		}
	}

	return projects, nil
}
