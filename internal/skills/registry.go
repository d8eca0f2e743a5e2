// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package skills loads thinking-framework skill definitions and scores
// topics against them.
package skills

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/pkg/types"
)

// skillPattern selects skill documents anywhere under the skills directory.
const skillPattern = "**/*.{yaml,yml}"

// ErrUnknownSkill is returned when an override names no registered skill.
var ErrUnknownSkill = errors.New("unknown skill")

// Registry holds skill definitions in registration order. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	skills  []*types.SkillDefinition
	intents [][]*regexp.Regexp
	byID    map[string]int
}

// skillFile mirrors the on-disk skill document.
type skillFile struct {
	Metadata struct {
		Name        string `yaml:"name"`
		DisplayName string `yaml:"display_name"`
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
		Trigger     struct {
			Domains        []string `yaml:"domains"`
			Keywords       []string `yaml:"keywords"`
			IntentPatterns []string `yaml:"intent_patterns"`
			Threshold      *float64 `yaml:"threshold"`
		} `yaml:"trigger"`
	} `yaml:"metadata"`
	ThinkingFramework  types.Framework      `yaml:"thinking_framework"`
	Tools              []types.SkillTool    `yaml:"tools"`
	OutputRequirements types.OutputTemplate `yaml:"output_requirements"`
}

// New builds a registry from already-parsed definitions, in the order given.
func New(defs ...types.SkillDefinition) (*Registry, error) {
	r := &Registry{byID: make(map[string]int)}
	for i := range defs {
		def := defs[i]
		if err := r.add(&def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load reads every skill document under dir. Files are registered in
// lexical path order. A missing directory yields an empty registry.
// Invalid documents are logged and skipped; a duplicate ID keeps the first.
func Load(dir string, defaultThreshold float64) (*Registry, error) {
	r := &Registry{byID: make(map[string]int)}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L.WithField("dir", dir).Debug("skills directory not found")
			return r, nil
		}
		return nil, errors.Wrapf(err, "reading skills directory %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("skills path %s is not a directory", dir)
	}

	paths, err := doublestar.Glob(os.DirFS(dir), skillPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "listing skills in %s", dir)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		log := logger.L.WithField("file", path)

		def, err := parseSkillFile(os.DirFS(dir), rel, defaultThreshold)
		if err != nil {
			log.WithError(err).Warn("skipping invalid skill")
			continue
		}
		def.FilePath = path

		if _, dup := r.byID[def.ID]; dup {
			log.WithField("skill", def.ID).Warn("skipping duplicate skill id")
			continue
		}
		if err := r.add(def); err != nil {
			log.WithError(err).Warn("skipping invalid skill")
			continue
		}
	}

	logger.L.WithField("count", len(r.skills)).Debug("skills loaded")
	return r, nil
}

func parseSkillFile(fsys fs.FS, name string, defaultThreshold float64) (*types.SkillDefinition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}

	var f skillFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing YAML")
	}

	m := f.Metadata
	threshold := defaultThreshold
	if m.Trigger.Threshold != nil {
		threshold = *m.Trigger.Threshold
	}
	version := m.Version
	if version == "" {
		version = "1.0"
	}

	return &types.SkillDefinition{
		ID:          strings.TrimSpace(m.Name),
		DisplayName: m.DisplayName,
		Version:     version,
		Description: m.Description,
		Trigger: types.Trigger{
			Domains:        m.Trigger.Domains,
			Keywords:       m.Trigger.Keywords,
			IntentPatterns: m.Trigger.IntentPatterns,
			Threshold:      threshold,
		},
		Framework: f.ThinkingFramework,
		Tools:     f.Tools,
		Output:    f.OutputRequirements,
	}, nil
}

func (r *Registry) add(def *types.SkillDefinition) error {
	if def.ID == "" {
		return errors.New("skill has no name")
	}
	if _, dup := r.byID[def.ID]; dup {
		return fmt.Errorf("duplicate skill id %q", def.ID)
	}
	if t := def.Trigger.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("skill %q: threshold %v out of range [0,1]", def.ID, t)
	}

	patterns := make([]*regexp.Regexp, 0, len(def.Trigger.IntentPatterns))
	for _, p := range def.Trigger.IntentPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.Wrapf(err, "skill %q: intent pattern %q", def.ID, p)
		}
		patterns = append(patterns, re)
	}

	r.byID[def.ID] = len(r.skills)
	r.skills = append(r.skills, def)
	r.intents = append(r.intents, patterns)
	return nil
}

// Len returns the number of registered skills.
func (r *Registry) Len() int { return len(r.skills) }

// All returns the skills in registration order.
func (r *Registry) All() []*types.SkillDefinition {
	out := make([]*types.SkillDefinition, len(r.skills))
	copy(out, r.skills)
	return out
}

// Get looks up a skill by ID.
func (r *Registry) Get(id string) (*types.SkillDefinition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.skills[i], true
}

// Select resolves override entries to skills. An entry is either an exact
// ID or a glob pattern over IDs (e.g. "first_*"). Entries that select
// nothing return ErrUnknownSkill. The result follows entry order, then
// registration order within a pattern, without duplicates.
func (r *Registry) Select(entries []string) ([]*types.SkillDefinition, error) {
	var out []*types.SkillDefinition
	seen := make(map[string]bool)
	pick := func(def *types.SkillDefinition) {
		if !seen[def.ID] {
			seen[def.ID] = true
			out = append(out, def)
		}
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.ContainsAny(entry, "*?[{") {
			def, ok := r.Get(entry)
			if !ok {
				return nil, errors.Wrapf(ErrUnknownSkill, "%q", entry)
			}
			pick(def)
			continue
		}

		g, err := glob.Compile(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid skill pattern %q", entry)
		}
		matched := false
		for _, def := range r.skills {
			if g.Match(def.ID) {
				pick(def)
				matched = true
			}
		}
		if !matched {
			return nil, errors.Wrapf(ErrUnknownSkill, "pattern %q matches no skill", entry)
		}
	}
	return out, nil
}
