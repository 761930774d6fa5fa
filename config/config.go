// Package config resolves command-line flags, environment variables and an
// optional config file into the settings of one benchmark run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/pipeline"
	"github.com/weiihann/compilebench/project"
	"github.com/weiihann/compilebench/report"
)

// EnvPrefix prefixes every environment variable read by the tool, e.g.
// COMPILEBENCH_ROUNDS.
const EnvPrefix = "COMPILEBENCH"

// Keys understood by Load.
const (
	KeyConfig            = "config"
	KeyOutput            = "output"
	KeyRounds            = "rounds"
	KeyClone             = "clone"
	KeyWarmup            = "warmup"
	KeyCompile           = "compile"
	KeyWarmupParallelism = "warmup_parallelism"
	KeyRoot              = "root"
	KeyProjectsFile      = "projects_file"
	KeyOnly              = "only"
	KeyCloneMethod       = "clone_method"
	KeyCommandTimeout    = "command_timeout"
	KeyFormat            = "format"
	KeyVerbose           = "verbose"

	// Presence toggles: any non-empty value disables the stage.
	keyNoWarmup  = "no_warmup"
	keyNoCompile = "no_compile"
)

// Config is a fully resolved run configuration.
type Config struct {
	Output            string
	Rounds            int
	Clone             bool
	Warmup            bool
	Compile           bool
	WarmupParallelism int
	Root              string
	ProjectsFile      string
	Only              []string
	CloneMethod       string
	// CommandTimeout bounds each external command; zero waits forever.
	CommandTimeout time.Duration
	Format         string
	Verbose        bool
}

// ConfigurationError reports an invalid or missing setting. It is raised
// before any benchmark work starts.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// New returns a viper instance with defaults and environment bindings in
// place.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyRounds, pipeline.DefaultRounds)
	v.SetDefault(KeyClone, true)
	v.SetDefault(KeyWarmup, true)
	v.SetDefault(KeyCompile, true)
	v.SetDefault(KeyWarmupParallelism, pipeline.DefaultWarmupParallelism)
	v.SetDefault(KeyRoot, "projects")
	v.SetDefault(KeyCloneMethod, harness.CloneGit)
	v.SetDefault(KeyCommandTimeout, time.Duration(0))
	v.SetDefault(KeyFormat, report.FormatCSV)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Unprefixed toggles kept for compatibility with existing scripts.
	_ = v.BindEnv(keyNoWarmup, "NO_WARMUP")
	_ = v.BindEnv(keyNoCompile, "NO_COMPILE")

	return v
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"config":             KeyConfig,
	"output":             KeyOutput,
	"rounds":             KeyRounds,
	"clone":              KeyClone,
	"warmup":             KeyWarmup,
	"compile":            KeyCompile,
	"warmup-parallelism": KeyWarmupParallelism,
	"root":               KeyRoot,
	"projects-file":      KeyProjectsFile,
	"only":               KeyOnly,
	"clone-method":       KeyCloneMethod,
	"command-timeout":    KeyCommandTimeout,
	"format":             KeyFormat,
	"verbose":            KeyVerbose,
}

// BindFlags binds every known flag present in flags to its config key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

// Load reads the optional config file and resolves v into a Config.
// requireOutput controls whether a missing output destination is an error.
func Load(v *viper.Viper, requireOutput bool) (Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, &ConfigurationError{
				Key: KeyConfig, Reason: "cannot read " + path, Err: err,
			}
		}
	}

	cfg := Config{
		Output:            v.GetString(KeyOutput),
		Rounds:            v.GetInt(KeyRounds),
		Clone:             v.GetBool(KeyClone),
		Warmup:            v.GetBool(KeyWarmup) && v.GetString(keyNoWarmup) == "",
		Compile:           v.GetBool(KeyCompile) && v.GetString(keyNoCompile) == "",
		WarmupParallelism: v.GetInt(KeyWarmupParallelism),
		Root:              v.GetString(KeyRoot),
		ProjectsFile:      v.GetString(KeyProjectsFile),
		Only:              splitList(v.GetStringSlice(KeyOnly)),
		CloneMethod:       v.GetString(KeyCloneMethod),
		CommandTimeout:    v.GetDuration(KeyCommandTimeout),
		Format:            v.GetString(KeyFormat),
		Verbose:           v.GetBool(KeyVerbose),
	}

	if err := cfg.validate(requireOutput); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// splitList flattens comma-separated elements. Lists read from the
// environment arrive split on whitespace only.
func splitList(in []string) []string {
	var out []string

	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func (c Config) validate(requireOutput bool) error {
	switch {
	case requireOutput && c.Output == "":
		return &ConfigurationError{Key: KeyOutput, Reason: "a report destination is required"}
	case c.Rounds < 1:
		return &ConfigurationError{Key: KeyRounds, Reason: fmt.Sprintf("must be at least 1, got %d", c.Rounds)}
	case c.WarmupParallelism < 1:
		return &ConfigurationError{
			Key:    KeyWarmupParallelism,
			Reason: fmt.Sprintf("must be at least 1, got %d", c.WarmupParallelism),
		}
	case c.CommandTimeout < 0:
		return &ConfigurationError{Key: KeyCommandTimeout, Reason: "must not be negative"}
	case c.CloneMethod != harness.CloneGit && c.CloneMethod != harness.CloneGoGit:
		return &ConfigurationError{Key: KeyCloneMethod, Reason: fmt.Sprintf("unknown method %q", c.CloneMethod)}
	case c.Format != report.FormatCSV && c.Format != report.FormatJSON:
		return &ConfigurationError{Key: KeyFormat, Reason: fmt.Sprintf("unknown format %q", c.Format)}
	}

	return nil
}

// Pipeline returns the stage settings for the pipeline package.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Rounds:            c.Rounds,
		Clone:             c.Clone,
		Warmup:            c.Warmup,
		Measure:           c.Compile,
		WarmupParallelism: c.WarmupParallelism,
	}
}

// Projects returns the configured project list: the catalog file when one
// is set, the built-in list otherwise, narrowed by Only.
func (c Config) Projects() ([]project.Project, error) {
	var (
		projects []project.Project
		err      error
	)

	if c.ProjectsFile != "" {
		projects, err = project.LoadFile(c.ProjectsFile, c.Root)
		if err != nil {
			return nil, &ConfigurationError{Key: KeyProjectsFile, Reason: "cannot load catalog", Err: err}
		}
	} else {
		projects = project.Default(c.Root)
	}

	projects, err = project.Filter(projects, c.Only)
	if err != nil {
		return nil, &ConfigurationError{Key: KeyOnly, Reason: "bad project filter", Err: err}
	}

	return projects, nil
}

// IsConfigurationError reports whether err stems from bad configuration.
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError

	return errors.As(err, &cerr)
}
