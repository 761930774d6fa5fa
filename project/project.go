// Package project describes the external code bases whose compile times are
// benchmarked.
//
// A Project always has non-empty compile and clean commands. Derivations
// keep that guarantee: WithCompileCommand ignores an empty command rather
// than producing a project that cannot be built.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Project is an immutable description of one benchmark target. The zero
// value is not usable; construct with New and derive variants with the With
// methods, which always return an independent copy.
type Project struct {
	org     string
	name    string
	baseDir string
	compile []string
	clean   []string
	clone   bool
}

// New returns a Project for org/name rooted under baseDir. Both commands must
// be non-empty.
func New(org, name, baseDir string, compile, clean []string, clone bool) (Project, error) {
	if org == "" || name == "" {
		return Project{}, fmt.Errorf("project identity must have org and name, got %q/%q", org, name)
	}

	if len(compile) == 0 {
		return Project{}, fmt.Errorf("project %s/%s: empty compile command", org, name)
	}

	if len(clean) == 0 {
		return Project{}, fmt.Errorf("project %s/%s: empty clean command", org, name)
	}

	return Project{
		org:     org,
		name:    name,
		baseDir: baseDir,
		compile: slices.Clone(compile),
		clean:   slices.Clone(clean),
		clone:   clone,
	}, nil
}

// MustNew is like New but panics on invalid input. It is meant for
// statically known project lists.
func MustNew(org, name, baseDir string, compile, clean []string, clone bool) Project {
	p, err := New(org, name, baseDir, compile, clean, clone)
	if err != nil {
		panic(err)
	}

	return p
}

// Org returns the owning organization.
func (p Project) Org() string { return p.org }

// Name returns the project name.
func (p Project) Name() string { return p.name }

// BaseDir returns the benchmark root the project lives under.
func (p Project) BaseDir() string { return p.baseDir }

// CompileCommand returns a copy of the compile command tokens.
func (p Project) CompileCommand() []string { return slices.Clone(p.compile) }

// CleanCommand returns a copy of the clean command tokens.
func (p Project) CleanCommand() []string { return slices.Clone(p.clean) }

// ShouldClone reports whether a missing checkout is fetched automatically.
func (p Project) ShouldClone() bool { return p.clone }

// Show returns the org/name display form, which is also the project's
// unique key within a run.
func (p Project) Show() string { return p.org + "/" + p.name }

func (p Project) String() string { return p.Show() }

// Root is the directory holding the project's checkout.
func (p Project) Root() string {
	return filepath.Join(p.baseDir, p.name)
}

// Exists reports whether Root is an existing directory. Any stat error
// counts as absent.
func (p Project) Exists() bool {
	info, err := os.Stat(p.Root())
	if err != nil {
		return false
	}

	return info.IsDir()
}

// WithClone returns a copy with the clone flag set to clone.
func (p Project) WithClone(clone bool) Project {
	c := p.copy()
	c.clone = clone

	return c
}

// WithCompileCommand returns a copy using cmd as the compile command.
// Compile commands are never empty, so an empty cmd is ignored and the copy
// keeps p's compile command.
func (p Project) WithCompileCommand(cmd []string) Project {
	c := p.copy()
	if len(cmd) > 0 {
		c.compile = slices.Clone(cmd)
	}

	return c
}

// WithCommandPrefix returns a copy whose compile and clean commands both run
// behind prefix, e.g. an environment wrapper such as "direnv exec .".
func (p Project) WithCommandPrefix(prefix ...string) Project {
	c := p.copy()
	c.compile = slices.Concat(prefix, p.compile)
	c.clean = slices.Concat(prefix, p.clean)

	return c
}

// WithBaseDir returns a copy rooted under dir.
func (p Project) WithBaseDir(dir string) Project {
	c := p.copy()
	c.baseDir = dir

	return c
}

func (p Project) copy() Project {
	c := p
	c.compile = slices.Clone(p.compile)
	c.clean = slices.Clone(p.clean)

	return c
}

// Equal reports whether p and o describe the same target with the same
// commands.
func (p Project) Equal(o Project) bool {
	return p.org == o.org &&
		p.name == o.name &&
		p.baseDir == o.baseDir &&
		p.clone == o.clone &&
		slices.Equal(p.compile, o.compile) &&
		slices.Equal(p.clean, o.clean)
}
