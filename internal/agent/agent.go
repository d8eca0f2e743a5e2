// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent runs the topic-to-outline pipeline. A run moves through
// five stages (decompose, retrieve, skill analysis, concern extraction,
// outline generation); recoverable conditions are recorded as degradations
// and only the fatal failures in state.go end a run early.
package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Stellven/KBSkills/internal/llm"
	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/internal/retrieval"
	"github.com/Stellven/KBSkills/internal/skills"
	"github.com/Stellven/KBSkills/internal/telemetry"
	"github.com/Stellven/KBSkills/pkg/types"
)

const defaultConcurrentRetrievals = 5

// Matcher ranks registered skills against a topic.
type Matcher interface {
	MatchWithReport(ctx context.Context, topic string) (*skills.MatchReport, error)
}

// Deps are the collaborators of an Agent. Generator and Retriever are
// required. Registry is required for skill overrides; a nil Matcher
// disables automatic skill matching.
type Deps struct {
	Registry  *skills.Registry
	Matcher   Matcher
	Retriever retrieval.Adapter
	Generator llm.Generator
	Renderer  *prompt.Renderer
}

// Request is the caller-facing input of one run.
type Request struct {
	Topic string

	// Mode is the retrieval mode; empty selects types.DefaultMode.
	Mode types.RetrievalMode

	// SkillOverride lists skill IDs or glob patterns applied regardless of score.
	SkillOverride []string
}

// Result is everything a successful run produced.
type Result struct {
	RunID   string
	State   State
	Outline *types.Outline

	SubTopics    []types.SubTopic
	Fragments    []types.KnowledgeFragment
	Matches      []types.MatchScore
	Insights     []types.SkillInsight
	Concerns     []types.Concern
	Degradations []types.Degradation

	// States lists every state entered, in order.
	States []State

	DecomposeAttempts int
	OutlineAttempts   int
}

// Agent orchestrates pipeline runs. It holds no per-run state, so one Agent
// may serve concurrent runs.
type Agent struct {
	deps Deps
	cfg  types.AgentConfig
}

// New validates deps and returns an Agent.
func New(deps Deps, cfg types.AgentConfig) (*Agent, error) {
	if deps.Generator == nil {
		return nil, errors.New("agent: generator is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("agent: retriever is required")
	}
	if deps.Matcher != nil && deps.Registry == nil {
		return nil, errors.New("agent: matcher requires a registry")
	}
	if cfg.StageRetries < 0 || cfg.MaxConcurrentRetrievals < 0 || cfg.MaxSkills < 0 {
		return nil, errors.New("agent: limits must be non-negative")
	}
	if deps.Renderer == nil {
		deps.Renderer = prompt.NewRenderer(cfg.MaxContextChars)
	}
	if cfg.MaxConcurrentRetrievals == 0 {
		cfg.MaxConcurrentRetrievals = defaultConcurrentRetrievals
	}
	return &Agent{deps: deps, cfg: cfg}, nil
}

// run is the state owned by one Run call.
type run struct {
	*Agent

	topic  string
	mode   types.RetrievalMode
	forced []*types.SkillDefinition

	// skills are the definitions applied in this run, in rank order.
	skills    []*types.SkillDefinition
	knowledge string

	state State
	res   *Result
	mu    sync.Mutex
}

// Run executes the pipeline for req. On failure it returns a *RunError and
// no result.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	mode, err := types.ParseRetrievalMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	if req.Topic == "" {
		return nil, errors.New("agent: topic is empty")
	}

	r := &run{
		Agent: a,
		topic: req.Topic,
		mode:  mode,
		state: StateDecomposing,
		res:   &Result{RunID: uuid.NewString()},
	}
	if len(req.SkillOverride) > 0 {
		if a.deps.Registry == nil {
			return nil, errors.New("agent: skill override requires a registry")
		}
		if r.forced, err = a.deps.Registry.Select(req.SkillOverride); err != nil {
			return nil, errors.Wrap(err, "skill override")
		}
	}

	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": r.res.RunID, "topic": r.topic})
	logger.G(ctx).WithField("mode", mode).Info("run started")

	stages := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateDecomposing, r.decompose},
		{StateRetrieving, r.retrieve},
		{StateSkillAnalyzing, r.analyze},
		{StateConcernExtracting, r.identifyConcerns},
		{StateOutlineGenerating, r.generateOutline},
	}
	for _, st := range stages {
		if err := r.enter(ctx, st.state); err != nil {
			return nil, r.fail(ctx, err)
		}
		err := telemetry.WithSpan(ctx, "agent."+st.state.String(), st.fn,
			attribute.String("run_id", r.res.RunID))
		if err != nil {
			return nil, r.fail(ctx, err)
		}
	}
	if err := r.enter(ctx, StateDone); err != nil {
		return nil, r.fail(ctx, err)
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"sections":     len(r.res.Outline.Sections),
		"degradations": len(r.res.Degradations),
	}).Info("run finished")
	return r.res, nil
}

// enter moves to next after checking for cancellation.
func (r *run) enter(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.res.States) > 0 {
		logger.G(ctx).WithFields(logrus.Fields{"from": r.state, "to": next}).Debug("stage transition")
	}
	r.state = next
	r.res.State = next
	r.res.States = append(r.res.States, next)
	return nil
}

func (r *run) fail(ctx context.Context, err error) error {
	failed := r.state
	logger.G(ctx).WithField("stage", failed).WithError(err).Error("run failed")
	r.state = StateFailed
	r.res.State = StateFailed
	r.res.States = append(r.res.States, StateFailed)
	return &RunError{State: failed, Err: err}
}

// degrade records a recoverable condition and logs it.
func (r *run) degrade(ctx context.Context, kind types.DegradationKind, detail string) {
	r.mu.Lock()
	r.res.Degradations = append(r.res.Degradations, types.Degradation{
		Stage:  r.state.String(),
		Kind:   kind,
		Detail: detail,
	})
	r.mu.Unlock()

	logger.G(ctx).WithFields(logrus.Fields{"stage": r.state, "kind": kind}).Warn(detail)
	telemetry.AddEvent(ctx, "degradation", attribute.String("kind", string(kind)))
}
