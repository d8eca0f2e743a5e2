// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/outline"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/pkg/types"
)

// generateOutline makes the outline call and parses the heading tree. Retries
// use the simplified template.
func (r *run) generateOutline(ctx context.Context) error {
	data := r.outlineData()
	attempts := 1 + r.cfg.StageRetries
	var lastErr error
	for i := 0; i < attempts; i++ {
		name := prompt.Outline
		if i > 0 {
			name = prompt.OutlineSimple
		}
		p, err := r.deps.Renderer.Render(name, data)
		if err != nil {
			return err
		}

		r.res.OutlineAttempts++
		resp, err := r.deps.Generator.Generate(ctx, p)
		if err == nil {
			var o *types.Outline
			if o, err = outline.Parse(resp); err == nil {
				r.finish(ctx, o)
				return nil
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		logger.G(ctx).WithFields(logrus.Fields{"attempt": i + 1, "template": name}).
			WithError(err).Warn("outline attempt rejected")
	}
	return errors.Wrapf(ErrOutlineGeneration, "%d attempts, last: %v", attempts, lastErr)
}

// outlineData merges the output templates of the applied skills: sections
// deduplicated in rank order, styles joined, tools concatenated.
func (r *run) outlineData() prompt.OutlineData {
	data := prompt.OutlineData{
		Topic:        r.topic,
		Concerns:     formatConcerns(r.res.Concerns),
		Knowledge:    r.knowledge,
		HasKnowledge: r.knowledge != "",
		Insights:     r.usableInsights(),
	}

	seen := make(map[string]bool)
	var styles []string
	for _, def := range r.skills {
		for _, s := range def.Output.Sections {
			if s = strings.TrimSpace(s); s != "" && !seen[s] {
				seen[s] = true
				data.Sections = append(data.Sections, s)
			}
		}
		if s := strings.TrimSpace(def.Output.Style); s != "" {
			styles = append(styles, s)
		}
		data.Tools = append(data.Tools, def.Tools...)
	}
	data.Style = strings.Join(styles, "; ")
	return data
}

// finish stamps run metadata on o and attributes top-level sections to the
// applied skills. A skill with insight but no section gets one appended.
func (r *run) finish(ctx context.Context, o *types.Outline) {
	o.Topic = r.topic
	o.InsufficientKnowledge = r.knowledge == ""
	o.ActivatedSkills = r.activatedSkills()

	for i := range o.Sections {
		for _, def := range r.skills {
			if headingMatchesSkill(o.Sections[i].Heading, def) {
				o.Sections[i].Skill = def.ID
				break
			}
		}
	}

	for i, def := range r.skills {
		ins := r.res.Insights[i]
		if len(ins.Steps) == 0 || len(o.SkillSections(def.ID)) > 0 {
			continue
		}
		heading := def.Name()
		if len(def.Output.Sections) > 0 {
			heading = def.Output.Sections[0]
		}
		o.Sections = append(o.Sections, types.OutlineSection{
			Heading: heading,
			Level:   2,
			Body:    ins.Text(),
			Skill:   def.ID,
		})
		r.degrade(ctx, types.DegradeSkillSectionAdded, fmt.Sprintf("outline had no section for skill %s", def.ID))
	}
	r.res.Outline = o
}

func (r *run) activatedSkills() []string {
	var out []string
	for i, def := range r.skills {
		m := r.res.Matches[i]
		if m.Forced {
			out = append(out, fmt.Sprintf("%s (forced)", def.Name()))
			continue
		}
		out = append(out, fmt.Sprintf("%s (%.2f)", def.Name(), m.Composite))
	}
	return out
}

// headingMatchesSkill reports whether heading names def, ignoring case,
// numbering and punctuation. A template section must open the heading; the
// display name may appear anywhere in it.
func headingMatchesSkill(heading string, def *types.SkillDefinition) bool {
	h := normalizeHeading(heading)
	if h == "" {
		return false
	}
	if name := normalizeHeading(def.Name()); name != "" && strings.Contains(h, name) {
		return true
	}
	for _, c := range def.Output.Sections {
		if c = normalizeHeading(c); c != "" && strings.HasPrefix(h, c) {
			return true
		}
	}
	return false
}

func normalizeHeading(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeftFunc(b.String(), unicode.IsDigit)
}
