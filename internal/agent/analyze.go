// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/pkg/types"
)

// analyze selects skills (override or matcher) and applies their
// frameworks. Skills run concurrently; a skill's steps run in order.
func (r *run) analyze(ctx context.Context) error {
	if err := r.selectSkills(ctx); err != nil {
		return err
	}
	if len(r.skills) == 0 {
		r.degrade(ctx, types.DegradeNoSkillMatch, "no skill cleared its threshold")
		return nil
	}

	insights := make([]types.SkillInsight, len(r.skills))
	var g errgroup.Group
	for i, def := range r.skills {
		g.Go(func() error {
			insights[i] = r.applySkill(ctx, def)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, ins := range insights {
		if ins.Err != "" {
			r.degrade(ctx, types.DegradeSkillStepFailed,
				fmt.Sprintf("skill %s stopped after %d steps: %s", ins.SkillID, len(ins.Steps), ins.Err))
		}
	}
	r.res.Insights = insights
	return nil
}

func (r *run) selectSkills(ctx context.Context) error {
	if len(r.forced) > 0 {
		r.skills = r.forced
		for _, def := range r.forced {
			r.res.Matches = append(r.res.Matches, types.MatchScore{SkillID: def.ID, Forced: true})
		}
		logger.G(ctx).WithField("skills", len(r.skills)).Info("skills forced by override")
		return nil
	}
	if r.deps.Matcher == nil {
		return nil
	}

	report, err := r.deps.Matcher.MatchWithReport(ctx, r.topic)
	if err != nil {
		return err
	}
	if report.EmbeddingErr != nil {
		r.degrade(ctx, types.DegradeEmbeddingFailed, report.EmbeddingErr.Error())
	}

	matched := report.Matched
	if n := r.cfg.MaxSkills; n > 0 && len(matched) > n {
		matched = matched[:n]
	}
	for _, m := range matched {
		def, ok := r.deps.Registry.Get(m.SkillID)
		if !ok {
			continue
		}
		r.skills = append(r.skills, def)
		r.res.Matches = append(r.res.Matches, m)
		logger.G(ctx).WithFields(logrus.Fields{"skill": m.SkillID, "composite": m.Composite}).Info("skill matched")
	}
	return nil
}

// applySkill runs def's framework steps. A failing step ends this skill
// only; the completed steps are kept.
func (r *run) applySkill(ctx context.Context, def *types.SkillDefinition) types.SkillInsight {
	ins := types.SkillInsight{SkillID: def.ID, DisplayName: def.Name()}
	log := logger.G(ctx).WithField("skill", def.ID)
	steps := def.Framework.Steps

	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("Step %d", i+1)
		}
		values := prompt.StepValues(r.topic, r.knowledge, ins.Steps)
		p, err := r.deps.Renderer.Render(prompt.SkillStep, prompt.StepData{
			Topic:       r.topic,
			SkillName:   def.Name(),
			Framework:   def.Framework.Description,
			Knowledge:   r.knowledge,
			Previous:    types.SkillInsight{Steps: ins.Steps}.Text(),
			StepName:    name,
			Instruction: prompt.Slots(step.Prompt, values),
			Index:       i + 1,
			Total:       len(steps),
		})
		if err == nil {
			var out string
			if out, err = r.deps.Generator.Generate(ctx, p); err == nil {
				ins.Steps = append(ins.Steps, types.StepOutput{Name: name, Output: strings.TrimSpace(out)})
				log.WithField("step", name).Debug("framework step done")
				continue
			}
		}
		ins.Err = errors.Wrapf(err, "step %d (%s)", i+1, name).Error()
		return ins
	}
	return ins
}
