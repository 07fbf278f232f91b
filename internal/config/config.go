// Package config loads the docbot configuration document: the authorized
// identity list and the project/build declarations. The document is plain
// YAML parsed strictly; evaluation errors never disturb a previously
// loaded configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docbot/internal/project"
)

// Error reports an unreadable or invalid configuration document. The
// caller's previous configuration stays active when one surfaces.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config is the raw decoded configuration document.
type Config struct {
	Authorized []string        `yaml:"authorized"`
	Projects   []ProjectConfig `yaml:"projects"`
}

// ProjectConfig declares one project and its builds.
type ProjectConfig struct {
	Name          string        `yaml:"name"`
	RepositoryURL string        `yaml:"repository_url"`
	Source        string        `yaml:"source,omitempty"`
	WorkingCopy   string        `yaml:"working_copy,omitempty"`
	Builds        []BuildConfig `yaml:"builds"`
}

// BuildConfig declares one build. A non-empty move_to turns the build
// into a build-and-move target.
type BuildConfig struct {
	Name        string     `yaml:"name"`
	Branch      string     `yaml:"branch,omitempty"`
	Submodules  []string   `yaml:"submodules,omitempty"`
	Commands    [][]string `yaml:"commands,omitempty"`
	WorkingCopy string     `yaml:"working_copy,omitempty"`
	Every       string     `yaml:"every,omitempty"`
	MoveTo      string     `yaml:"move_to,omitempty"`
	MoveFrom    string     `yaml:"move_from,omitempty"`
}

// Load reads and strictly decodes the configuration file. A .env file in
// the working directory is applied first and environment variables are
// expanded in the raw document.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, p := range c.Projects {
		if p.Name == "" {
			return fmt.Errorf("project without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project name %q", p.Name)
		}
		seen[p.Name] = true
		if p.RepositoryURL == "" {
			return fmt.Errorf("project %s: repository_url must not be empty", p.Name)
		}
		for _, b := range p.Builds {
			if b.Name == "" {
				return fmt.Errorf("project %s: build without a name", p.Name)
			}
			if b.Every != "" {
				if _, err := time.ParseDuration(b.Every); err != nil {
					return fmt.Errorf("project %s, build %s: invalid every: %w", p.Name, b.Name, err)
				}
			}
		}
	}
	return nil
}

// Assemble converts the decoded document into project declarations in
// document order.
func (c *Config) Assemble() ([]project.Declaration, error) {
	decls := make([]project.Declaration, 0, len(c.Projects))
	for _, pc := range c.Projects {
		targets := make([]project.Target, 0, len(pc.Builds))
		for _, bc := range pc.Builds {
			spec := project.BuildSpec{
				Branch:      bc.Branch,
				Submodules:  bc.Submodules,
				Commands:    bc.Commands,
				WorkingCopy: bc.WorkingCopy,
			}
			if bc.Every != "" {
				every, err := time.ParseDuration(bc.Every)
				if err != nil {
					return nil, fmt.Errorf("project %s, build %s: invalid every: %w", pc.Name, bc.Name, err)
				}
				spec.Every = every
			}

			if bc.MoveTo != "" || bc.MoveFrom != "" {
				target, err := project.NewBuildAndMove(bc.Name, spec, bc.MoveTo, bc.MoveFrom)
				if err != nil {
					return nil, fmt.Errorf("project %s: %w", pc.Name, err)
				}
				targets = append(targets, target)
			} else {
				targets = append(targets, project.NewBuild(bc.Name, spec))
			}
		}

		decl, err := project.Declare(pc.Name, project.Spec{
			RepositoryURL: pc.RepositoryURL,
			Source:        pc.Source,
			WorkingCopy:   pc.WorkingCopy,
		}, targets...)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}
