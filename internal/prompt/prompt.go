// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt renders the fixed pipeline prompts and substitutes named
// slots in skill step prompts. Templates are data under templates/.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/Stellven/KBSkills/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").ParseFS(templateFS, "templates/*.tmpl"))

// Template names.
const (
	Decompose       = "decompose.tmpl"
	DecomposeStrict = "decompose_strict.tmpl"
	SkillStep       = "skill_step.tmpl"
	Concerns        = "concerns.tmpl"
	Outline         = "outline.tmpl"
	OutlineSimple   = "outline_simple.tmpl"
)

const truncationMarker = "\n…(truncated)"

// DecomposeData fills the decomposition prompts.
type DecomposeData struct {
	Topic string
}

// StepData fills the skill step prompt. Instruction is the step's own
// prompt after slot substitution.
type StepData struct {
	Topic       string
	SkillName   string
	Framework   string
	Knowledge   string
	Previous    string
	StepName    string
	Instruction string
	Index       int
	Total       int
}

// ConcernsData fills the concern identification prompt.
type ConcernsData struct {
	Topic        string
	Knowledge    string
	HasKnowledge bool
	Insights     []types.SkillInsight
}

// OutlineData fills both outline prompts.
type OutlineData struct {
	Topic        string
	Concerns     string
	Knowledge    string
	HasKnowledge bool
	Insights     []types.SkillInsight
	Sections     []string
	Style        string
	Tools        []types.SkillTool
}

// Renderer renders pipeline prompts. It holds no per-run state.
type Renderer struct {
	maxContext int
}

// NewRenderer returns a Renderer truncating knowledge context to
// maxContextChars runes. Zero disables truncation.
func NewRenderer(maxContextChars int) *Renderer {
	return &Renderer{maxContext: maxContextChars}
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s", name)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Knowledge concatenates non-empty fragments, each tagged [F<n>] with its
// one-based position and sub-topic, and truncates the result.
func (r *Renderer) Knowledge(fragments []types.KnowledgeFragment) string {
	var b strings.Builder
	for i, f := range fragments {
		if f.Empty() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s\n%s", FragmentTag(i), f.SubTopic.Text, strings.TrimSpace(f.RawText))
	}
	return r.Truncate(b.String())
}

// Truncate cuts s to the configured number of runes.
func (r *Renderer) Truncate(s string) string {
	if r.maxContext <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= r.maxContext {
		return s
	}
	return string(runes[:r.maxContext]) + truncationMarker
}

// FragmentTag returns the citation tag of the fragment at zero-based index i.
func FragmentTag(i int) string {
	return fmt.Sprintf("F%d", i+1)
}
