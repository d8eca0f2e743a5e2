// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/Stellven/KBSkills/internal/agent"
	"github.com/Stellven/KBSkills/internal/llm"
	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/internal/retrieval"
	"github.com/Stellven/KBSkills/internal/skills"
	"github.com/Stellven/KBSkills/pkg/types"
)

// newMatcher loads the skill registry and builds a matcher. Without a
// usable embedder the domain signal is dropped and a warning logged.
func newMatcher(ctx context.Context, c types.Config) (*skills.Registry, *skills.Matcher, error) {
	reg, err := skills.Load(c.SkillsDir, c.Matcher.DefaultThreshold)
	if err != nil {
		return nil, nil, err
	}

	var emb skills.Embedder
	if e, err := llm.NewEmbedder(ctx, c.Embedding); err != nil {
		logger.G(ctx).WithError(err).Warn("embedding unavailable, domain similarity will score 0")
	} else {
		emb = e
	}

	m, err := skills.NewMatcher(reg, emb, c.Matcher)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Prepare(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("could not precompute domain label embeddings")
	}
	return reg, m, nil
}

// newAgent wires every pipeline dependency from c. The returned close
// function releases the retrieval backend.
func newAgent(ctx context.Context, c types.Config) (*agent.Agent, func() error, error) {
	reg, m, err := newMatcher(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	gen, err := llm.NewGenerator(ctx, c.LLM)
	if err != nil {
		return nil, nil, err
	}

	backend, err := retrieval.Open(c.Retrieval)
	if err != nil {
		return nil, nil, err
	}

	a, err := agent.New(agent.Deps{
		Registry:  reg,
		Matcher:   m,
		Retriever: backend,
		Generator: llm.WithRetry(gen, c.LLM.MaxRetries, c.LLM.RetryDelay),
		Renderer:  prompt.NewRenderer(c.Agent.MaxContextChars),
	}, c.Agent)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	logger.G(ctx).WithField("skills", reg.Len()).Debug("agent ready")
	return a, backend.Close, nil
}
