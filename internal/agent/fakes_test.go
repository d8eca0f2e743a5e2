// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stellven/KBSkills/internal/retrieval"
	"github.com/Stellven/KBSkills/internal/skills"
	"github.com/Stellven/KBSkills/pkg/types"
)

// Prompt kinds, recognized by phrases of the embedded templates.
const (
	kindDecompose     = "decompose"
	kindStrict        = "decompose_strict"
	kindStep          = "step"
	kindConcerns      = "concerns"
	kindOutline       = "outline"
	kindOutlineSimple = "outline_simple"
)

func promptKind(p string) string {
	switch {
	case strings.Contains(p, "could not be used"):
		return kindStrict
	case strings.Contains(p, "Break it down into 3-5"):
		return kindDecompose
	case strings.Contains(p, "generate a detailed structured outline"):
		return kindOutline
	case strings.Contains(p, "Write a markdown outline"):
		return kindOutlineSimple
	case strings.Contains(p, "Identify the top concerns"):
		return kindConcerns
	case strings.Contains(p, "using the thinking framework"):
		return kindStep
	}
	return "unknown"
}

type reply struct {
	text string
	err  error
}

const (
	threeSubTopics = `[{"sub_topic":"A","query":"q1"},{"sub_topic":"B","query":"q2"},{"sub_topic":"C","query":"q3"}]`
	fiveSubTopics  = `[{"sub_topic":"A","query":"q1"},{"sub_topic":"B","query":"q2"},{"sub_topic":"C","query":"q3"},` +
		`{"sub_topic":"D","query":"q4"},{"sub_topic":"E","query":"q5"}]`
	defaultConcerns = `[{"concern":"团队边界","importance":8,"reasoning":"r","evidence":["F1"],"logic_chain":"a->b"}]`
	defaultOutline  = "# 大纲\n\n## 团队边界\n\nbody\n\n## 总结\n\nsummary\n"
)

var defaultReplies = map[string]string{
	kindDecompose:     threeSubTopics,
	kindStrict:        threeSubTopics,
	kindConcerns:      defaultConcerns,
	kindOutline:       defaultOutline,
	kindOutlineSimple: defaultOutline,
}

// fakeGenerator answers by prompt kind. The nth call of a kind gets the nth
// scripted reply, repeating the last; unscripted kinds get a default.
type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   map[string]int
	prompts map[string][]string

	// step, when set, answers framework step prompts.
	step func(prompt string) (string, error)
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		replies: make(map[string][]reply),
		calls:   make(map[string]int),
		prompts: make(map[string][]string),
	}
}

func (f *fakeGenerator) script(kind string, rs ...reply) *fakeGenerator {
	f.replies[kind] = rs
	return f
}

func (f *fakeGenerator) Generate(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	k := promptKind(p)

	f.mu.Lock()
	n := f.calls[k]
	f.calls[k]++
	f.prompts[k] = append(f.prompts[k], p)
	rs := f.replies[k]
	step := f.step
	f.mu.Unlock()

	if k == kindStep && step != nil {
		return step(p)
	}
	if len(rs) == 0 {
		if k == kindStep {
			return fmt.Sprintf("step output %d", n+1), nil
		}
		return defaultReplies[k], nil
	}
	if n >= len(rs) {
		n = len(rs) - 1
	}
	return rs[n].text, rs[n].err
}

func (f *fakeGenerator) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeGenerator) prompt(kind string, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[kind][i]
}

// fakeRetriever answers "knowledge about <query>" unless texts is set.
type fakeRetriever struct {
	mu       sync.Mutex
	texts    map[string]string
	fail     map[string]bool
	hook     func(ctx context.Context, query string) error
	calls    []string
	inFlight int
	peak     int
	release  chan struct{}
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, _ types.RetrievalMode) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.hook != nil {
		if err := f.hook(ctx, query); err != nil {
			return "", err
		}
	}
	if f.fail[query] {
		return "", &retrieval.Error{Op: "query", Backend: "fake", Err: errors.New("connection refused")}
	}
	if f.texts != nil {
		return f.texts[query], nil
	}
	return "knowledge about " + query, nil
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

const microservicesTopic = "是否应该采用微服务架构"

// firstPrinciples scores 0.82 on microservicesTopic with microservicesVectors:
// cosine 0.64 * 0.5 + keyword 1.0 * 0.3 + intent 1.0 * 0.2.
func firstPrinciples() types.SkillDefinition {
	return types.SkillDefinition{
		ID:          "first_principles",
		DisplayName: "第一性原理",
		Trigger: types.Trigger{
			Domains:        []string{"software architecture"},
			Keywords:       []string{"微服务"},
			IntentPatterns: []string{`是否.*(应该|采用)`},
			Threshold:      0.6,
		},
		Framework: types.Framework{
			Description: "Decompose the problem into fundamental truths.",
			Steps: []types.FrameworkStep{
				{Name: "Assumptions", Prompt: "List the assumptions behind {topic}."},
				{Name: "Fundamentals", Prompt: "Given {step:1}, rebuild the decision from fundamentals."},
			},
		},
		Tools:  []types.SkillTool{{Name: "assumption_table", Description: "assumption audit", OutputFormat: "| assumption | verdict |"}},
		Output: types.OutputTemplate{Sections: []string{"第一性原理分析"}, Style: "Challenge every assumption"},
	}
}

// swot never matches microservicesTopic.
func swot() types.SkillDefinition {
	return types.SkillDefinition{
		ID:          "swot",
		DisplayName: "SWOT",
		Trigger:     types.Trigger{Keywords: []string{"swot", "竞争"}, Threshold: 0.5},
		Framework: types.Framework{Steps: []types.FrameworkStep{
			{Name: "Strengths", Prompt: "Strengths of {topic}"},
		}},
		Output: types.OutputTemplate{Sections: []string{"SWOT 分析"}},
	}
}

var microservicesVectors = map[string][]float64{
	microservicesTopic:      {1, 0, 0},
	"software architecture": {16, 12, 15},
}

type fixture struct {
	gen       *fakeGenerator
	retriever *fakeRetriever
	registry  *skills.Registry
	agent     *Agent
}

func newFixture(t *testing.T, defs ...types.SkillDefinition) *fixture {
	t.Helper()
	reg, err := skills.New(defs...)
	require.NoError(t, err)
	m, err := skills.NewMatcher(reg, fakeEmbedder{vectors: microservicesVectors}, types.MatcherConfig{})
	require.NoError(t, err)

	f := &fixture{gen: newFakeGenerator(), retriever: &fakeRetriever{}, registry: reg}
	f.agent, err = New(Deps{
		Registry:  reg,
		Matcher:   m,
		Retriever: f.retriever,
		Generator: f.gen,
	}, types.DefaultConfig().Agent)
	require.NoError(t, err)
	return f
}

func (f *fixture) run(t *testing.T, topic string) (*Result, error) {
	t.Helper()
	return f.agent.Run(context.Background(), Request{Topic: topic, Mode: types.ModeHybrid})
}

func degradationKinds(res *Result) []types.DegradationKind {
	var kinds []types.DegradationKind
	for _, d := range res.Degradations {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}
