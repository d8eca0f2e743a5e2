// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stellven/KBSkills/internal/skills"
	"github.com/Stellven/KBSkills/pkg/types"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults(viper.GetViper(), types.DefaultConfig())
	bindEnv(viper.GetViper())
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("GEMINI_API_KEY", "")

	c, err := loadConfig()
	require.NoError(t, err)

	d := types.DefaultConfig()
	assert.Equal(t, d.LLM.Model, c.LLM.Model)
	assert.Equal(t, d.Matcher.Weights, c.Matcher.Weights)
	assert.Equal(t, 120*time.Second, c.Retrieval.Timeout)
	assert.Equal(t, types.ModeHybrid, c.Retrieval.DefaultMode)
	assert.Equal(t, 12000, c.Agent.MaxContextChars)
	assert.Equal(t, 3, c.Agent.MaxSkills)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("KBSKILLS_LLM_MODEL", "gemini-2.5-flash")
	t.Setenv("KBSKILLS_AGENT_MAX_SKILLS", "0")
	t.Setenv("KBSKILLS_RETRIEVAL_TIMEOUT", "30s")
	t.Setenv("KBSKILLS_MATCHER_WEIGHTS_DOMAIN", "0.6")
	t.Setenv("GEMINI_API_KEY", "from-env")

	c, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", c.LLM.Model)
	assert.Zero(t, c.Agent.MaxSkills)
	assert.Equal(t, 30*time.Second, c.Retrieval.Timeout)
	assert.InDelta(t, 0.6, c.Matcher.Weights.Domain, 1e-9)
	assert.Equal(t, "from-env", c.LLM.APIKey)
	assert.Equal(t, "from-env", c.Embedding.APIKey)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	resetViper(t)
	t.Setenv("KBSKILLS_RETRIEVAL_DEFAULT_MODE", "semantic")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestWriteSkillList(t *testing.T) {
	var buf bytes.Buffer
	writeSkillList(&buf, nil)
	assert.Equal(t, "No skills found.\n", buf.String())

	buf.Reset()
	writeSkillList(&buf, []*types.SkillDefinition{{
		ID:          "first_principles",
		DisplayName: "First Principles",
		Version:     "1.0",
		Trigger:     types.Trigger{Threshold: 0.6},
		Framework:   types.Framework{Steps: make([]types.FrameworkStep, 3)},
	}})
	assert.Contains(t, buf.String(), "first_principles")
	assert.Contains(t, buf.String(), "0.60")
	assert.Contains(t, buf.String(), "1 skills")
}

func TestWriteMatchReport(t *testing.T) {
	reg, err := skills.New(
		types.SkillDefinition{ID: "first_principles", Trigger: types.Trigger{Threshold: 0.6}},
		types.SkillDefinition{ID: "swot", Trigger: types.Trigger{Threshold: 0.5}},
	)
	require.NoError(t, err)
	report := &skills.MatchReport{
		Scores: []types.MatchScore{
			{SkillID: "first_principles", Composite: 0.82, DomainSimilarity: 0.64, KeywordScore: 1, IntentScore: 1,
				MatchedDomains: []string{"software architecture"}, MatchedKeywords: []string{"微服务"}},
			{SkillID: "swot"},
		},
	}
	report.Matched = report.Scores[:1]

	var buf bytes.Buffer
	writeMatchReport(&buf, reg, report)
	out := buf.String()
	assert.Regexp(t, `(?m)^\*\s+first_principles\s+0\.820`, out)
	assert.Regexp(t, `(?m)^\s+swot\s+0\.000`, out)
	assert.Contains(t, out, "domains=software architecture keywords=微服务")
	assert.Contains(t, out, "1 of 2 skills matched")
}

func TestRunInit(t *testing.T) {
	root := t.TempDir()
	c := types.DefaultConfig()
	c.DataDir = filepath.Join(root, "data")
	c.SkillsDir = filepath.Join(root, "skills")
	c.Retrieval.IndexPath = filepath.Join(root, "data", "index", "chunks.db")
	c.LLM.APIKey = "resolved-key"
	opts := initOptions{
		APIKey:     "gk_init",
		SecretsDir: filepath.Join(root, ".secrets"),
		ConfigPath: filepath.Join(root, "kbskills.yaml"),
	}

	var buf bytes.Buffer
	require.NoError(t, runInit(&buf, c, opts))
	assert.Contains(t, buf.String(), "Configuration saved to "+opts.ConfigPath)

	for _, d := range []string{"data/graph", "data/index", "skills"} {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(d)))
		require.NoError(t, err, d)
		assert.True(t, info.IsDir(), d)
	}

	key, err := os.ReadFile(filepath.Join(opts.SecretsDir, "gemini-api-key"))
	require.NoError(t, err)
	assert.Equal(t, "gk_init", strings.TrimSpace(string(key)))

	raw, err := os.ReadFile(opts.ConfigPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "resolved-key")

	v := viper.New()
	v.SetConfigFile(opts.ConfigPath)
	require.NoError(t, v.ReadInConfig())
	var written types.Config
	require.NoError(t, v.Unmarshal(&written))
	assert.Equal(t, c.LLM.Model, written.LLM.Model)
	assert.Equal(t, c.Retrieval.Timeout, written.Retrieval.Timeout)
	assert.Equal(t, c.DataDir, written.DataDir)
	assert.Equal(t, 3, written.Agent.MaxSkills)
	assert.Empty(t, written.LLM.APIKey)

	err = runInit(&buf, c, opts)
	assert.ErrorContains(t, err, "already exists")

	opts.Force = true
	opts.APIKey = ""
	require.NoError(t, runInit(&buf, c, opts))
}
