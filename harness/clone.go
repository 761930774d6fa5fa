package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"

	"github.com/weiihann/compilebench/project"
)

// Clone methods accepted by NewCloner.
const (
	CloneGit   = "git"
	CloneGoGit = "go-git"
)

// Cloner fetches a project's sources into its Root directory.
type Cloner interface {
	Clone(ctx context.Context, p project.Project) error
}

// RemoteURL is the address a project is cloned from.
func RemoteURL(p project.Project) string {
	return "https://github.com/" + p.Show() + ".git"
}

// NewCloner returns the cloner for method, which is CloneGit or CloneGoGit.
func NewCloner(method string, exec Executor, logger *slog.Logger) (Cloner, error) {
	switch method {
	case "", CloneGit:
		return &GitCloner{Exec: exec}, nil
	case CloneGoGit:
		return &GoGitCloner{Progress: os.Stderr, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown clone method %q", method)
	}
}

// GitCloner shells out to the git CLI through an Executor.
type GitCloner struct {
	Exec Executor
}

// Clone runs "git clone <url>" inside the project's base directory, which
// is created first if needed.
func (c *GitCloner) Clone(ctx context.Context, p project.Project) error {
	if err := ensureBaseDir(p); err != nil {
		return err
	}

	args := []string{"git", "clone", RemoteURL(p), p.Name()}
	if err := c.Exec.Run(ctx, baseDirOrDot(p), args); err != nil {
		return fmt.Errorf("clone %s: %w", p.Show(), err)
	}

	return nil
}

// GoGitCloner clones in process with go-git, so no git binary is required.
type GoGitCloner struct {
	Progress io.Writer
	Logger   *slog.Logger
}

// Clone fetches the default branch into p.Root. A failed clone leaves no
// partial checkout behind.
func (c *GoGitCloner) Clone(ctx context.Context, p project.Project) error {
	if err := ensureBaseDir(p); err != nil {
		return err
	}

	dest := p.Root()

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:      RemoteURL(p),
		Progress: c.Progress,
	})
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil && c.Logger != nil {
			c.Logger.WarnContext(ctx, "failed to remove partial clone",
				slog.String("project", p.Show()),
				slog.String("error", rmErr.Error()),
			)
		}

		return fmt.Errorf("clone %s: %w", p.Show(), err)
	}

	return nil
}

func ensureBaseDir(p project.Project) error {
	dir := baseDirOrDot(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create benchmark root %s: %w", dir, err)
	}

	return nil
}

func baseDirOrDot(p project.Project) string {
	if p.BaseDir() == "" {
		return "."
	}

	return p.BaseDir()
}
