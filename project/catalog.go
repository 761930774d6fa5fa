package project

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

var (
	sbtCompile = []string{"sbt", "compile"}
	sbtClean   = []string{"sbt", "clean"}
)

// Default returns the built-in benchmark list rooted under baseDir, in
// benchmark order.
func Default(baseDir string) []Project {
	sbt := func(org, name string) Project {
		return MustNew(org, name, baseDir, sbtCompile, sbtClean, true)
	}

	return []Project{
		sbt("typelevel", "cats"),
		sbt("typelevel", "cats-effect"),
		sbt("scalaz", "scalaz"),
		sbt("apache", "pekko"),
		sbt("playframework", "playframework"),
		sbt("scala", "scala3").
			WithCompileCommand([]string{"sbt", "scala3-compiler/compile"}),
		sbt("lichess-org", "lila").
			WithCommandPrefix("direnv", "exec", "."),
	}
}

// Entry is one project in a catalog file. Commands are written as a single
// string and split with shell word rules.
type Entry struct {
	Org     string `yaml:"org"`
	Name    string `yaml:"name"`
	Compile string `yaml:"compile"`
	Clean   string `yaml:"clean"`
	Prefix  string `yaml:"prefix,omitempty"`
	Clone   *bool  `yaml:"clone,omitempty"`
}

// Catalog is the on-disk form of a project list.
type Catalog struct {
	Projects []Entry `yaml:"projects"`
}

// LoadFile reads a catalog from path. See Load.
func LoadFile(path, baseDir string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	projects, err := Load(bytes.NewReader(data), baseDir)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return projects, nil
}

// Load decodes a YAML catalog into projects rooted under baseDir, keeping
// file order. Entries default to clone: true.
func Load(r io.Reader, baseDir string) ([]Project, error) {
	var cat Catalog

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cat); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	projects := make([]Project, 0, len(cat.Projects))

	for i, e := range cat.Projects {
		p, err := e.project(baseDir)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		projects = append(projects, p)
	}

	if err := Validate(projects); err != nil {
		return nil, err
	}

	return projects, nil
}

func (e Entry) project(baseDir string) (Project, error) {
	compile, err := splitCommand(e.Compile)
	if err != nil {
		return Project{}, fmt.Errorf("compile command: %w", err)
	}

	clean, err := splitCommand(e.Clean)
	if err != nil {
		return Project{}, fmt.Errorf("clean command: %w", err)
	}

	prefix, err := splitCommand(e.Prefix)
	if err != nil {
		return Project{}, fmt.Errorf("prefix: %w", err)
	}

	clone := true
	if e.Clone != nil {
		clone = *e.Clone
	}

	p, err := New(e.Org, e.Name, baseDir, compile, clean, clone)
	if err != nil {
		return Project{}, err
	}

	if len(prefix) > 0 {
		p = p.WithCommandPrefix(prefix...)
	}

	return p, nil
}

func splitCommand(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}

	return fields, nil
}

// Validate rejects lists in which two projects share a display name or a
// bare name. The bare name picks the checkout directory and the report row,
// so a/cats and b/cats cannot be benchmarked together.
func Validate(projects []Project) error {
	shows := make(map[string]bool, len(projects))
	names := make(map[string]string, len(projects))

	for _, p := range projects {
		key := p.Show()
		if shows[key] {
			return fmt.Errorf("duplicate project %s", key)
		}

		if other, ok := names[p.Name()]; ok {
			return fmt.Errorf("projects %s and %s share the name %q", other, key, p.Name())
		}

		shows[key] = true
		names[p.Name()] = key
	}

	return nil
}

// Filter keeps the projects whose display names appear in only, preserving
// the order of projects. An empty only returns projects unchanged. Names in
// only that match nothing are reported as an error.
func Filter(projects []Project, only []string) ([]Project, error) {
	if len(only) == 0 {
		return projects, nil
	}

	known := make(map[string]bool, len(projects))
	for _, p := range projects {
		known[p.Show()] = true
	}

	for _, name := range only {
		if !known[name] {
			return nil, fmt.Errorf("unknown project %q", name)
		}
	}

	kept := make([]Project, 0, len(only))

	for _, p := range projects {
		if slices.Contains(only, p.Show()) {
			kept = append(kept, p)
		}
	}

	return kept, nil
}
