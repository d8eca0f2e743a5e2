// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stellven/KBSkills/pkg/types"
)

const firstPrinciplesYAML = `metadata:
  name: first_principles
  display_name: 第一性原理
  version: "1.0"
  description: Break problems down to fundamentals.
  trigger:
    domains: [architecture, strategy]
    keywords: [微服务, 架构]
    intent_patterns: ["是否.*(应该|采用)"]
    threshold: 0.6
thinking_framework:
  description: Reason from fundamentals.
  steps:
    - name: Identify assumptions
      prompt: "List the assumptions behind {topic}."
    - name: Rebuild
      prompt: "Given {step:1}, rebuild the argument."
tools:
  - name: assumption_table
    description: Table of assumptions
    output_format: "| assumption | evidence |"
output_requirements:
  sections: [第一性原理分析]
  style: Be concrete.
`

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadParsesSkillDocument(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "first_principles.yaml", firstPrinciplesYAML)

	reg, err := Load(dir, 0.6)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	def, ok := reg.Get("first_principles")
	require.True(t, ok)
	assert.Equal(t, "第一性原理", def.DisplayName)
	assert.Equal(t, []string{"architecture", "strategy"}, def.Trigger.Domains)
	assert.Equal(t, 0.6, def.Trigger.Threshold)
	require.Len(t, def.Framework.Steps, 2)
	assert.Equal(t, "Rebuild", def.Framework.Steps[1].Name)
	assert.Equal(t, []string{"第一性原理分析"}, def.Output.Sections)
	require.Len(t, def.Tools, 1)
	assert.Equal(t, "| assumption | evidence |", def.Tools[0].OutputFormat)
	assert.Equal(t, filepath.Join(dir, "first_principles.yaml"), def.FilePath)
}

func TestLoadOrderAndSkipping(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "b.yaml", "metadata:\n  name: beta\n")
	writeSkill(t, dir, "a.yml", "metadata:\n  name: alpha\n  trigger:\n    threshold: 0.3\n")
	writeSkill(t, dir, "nested/c.yaml", "metadata:\n  name: gamma\n")
	writeSkill(t, dir, "dup.yaml", "metadata:\n  name: beta\n")
	writeSkill(t, dir, "broken.yaml", "metadata: [unclosed\n")
	writeSkill(t, dir, "noname.yaml", "metadata:\n  display_name: Nameless\n")
	writeSkill(t, dir, "badregex.yaml", "metadata:\n  name: bad\n  trigger:\n    intent_patterns: [\"(\"]\n")
	writeSkill(t, dir, "range.yaml", "metadata:\n  name: range\n  trigger:\n    threshold: 1.5\n")
	writeSkill(t, dir, "notes.txt", "metadata:\n  name: ignored\n")

	reg, err := Load(dir, 0.6)
	require.NoError(t, err)

	var ids []string
	for _, def := range reg.All() {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)

	alpha, _ := reg.Get("alpha")
	assert.Equal(t, 0.3, alpha.Trigger.Threshold)
	beta, _ := reg.Get("beta")
	assert.Equal(t, 0.6, beta.Trigger.Threshold, "default threshold applies")
	assert.Equal(t, filepath.Join(dir, "b.yaml"), beta.FilePath, "first duplicate wins")
}

func TestLoadMissingDirectory(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "absent"), 0.6)
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(types.SkillDefinition{ID: "a"}, types.SkillDefinition{ID: "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New(types.SkillDefinition{})
	assert.Error(t, err)

	_, err = New(types.SkillDefinition{ID: "x", Trigger: types.Trigger{IntentPatterns: []string{"["}}})
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	reg, err := New(
		types.SkillDefinition{ID: "first_principles"},
		types.SkillDefinition{ID: "systems_thinking"},
		types.SkillDefinition{ID: "first_order"},
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		entries []string
		want    []string
		wantErr error
	}{
		{name: "exact ids in entry order", entries: []string{"systems_thinking", "first_principles"}, want: []string{"systems_thinking", "first_principles"}},
		{name: "glob keeps registration order", entries: []string{"first_*"}, want: []string{"first_principles", "first_order"}},
		{name: "duplicates collapse", entries: []string{"first_order", "first_*"}, want: []string{"first_order", "first_principles"}},
		{name: "blank entries ignored", entries: []string{" ", "first_order"}, want: []string{"first_order"}},
		{name: "unknown id", entries: []string{"lateral"}, wantErr: ErrUnknownSkill},
		{name: "glob matching nothing", entries: []string{"zz*"}, wantErr: ErrUnknownSkill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Select(tt.entries)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, def := range got {
				ids = append(ids, def.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestShippedSkillsLoad(t *testing.T) {
	reg, err := Load(filepath.Join("..", "..", "skills"), 0.6)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len(), "every shipped skill parses")

	fp, ok := reg.Get("first_principles")
	require.True(t, ok)
	assert.Equal(t, "第一性原理", fp.Name())
	assert.Len(t, fp.Framework.Steps, 3)
	assert.Equal(t, []string{"第一性原理分析"}, fp.Output.Sections)

	st, ok := reg.Get("systems_thinking")
	require.True(t, ok)
	assert.Equal(t, "1.0", st.Version)
	assert.InDelta(t, 0.55, st.Trigger.Threshold, 1e-9)
}
