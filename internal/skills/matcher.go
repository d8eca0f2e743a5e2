// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package skills

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/pkg/types"
)

const defaultCacheSize = 1024

// Embedder turns texts into fixed-length vectors. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// MatchReport is the full outcome of scoring one topic.
type MatchReport struct {
	// Scores holds every skill, ranked by composite.
	Scores []types.MatchScore

	// Matched is the subset of Scores at or above each skill's threshold.
	Matched []types.MatchScore

	// EmbeddingErr is set when the domain signal was dropped because the
	// embedding call failed.
	EmbeddingErr error
}

// Matcher scores topics against a Registry.
type Matcher struct {
	registry *Registry
	embedder Embedder
	weights  types.Weights
	labels   *lru.Cache[string, []float64]
}

// NewMatcher returns a Matcher over registry. A nil embedder disables the
// domain signal. Zero weights fall back to types.DefaultWeights.
func NewMatcher(registry *Registry, embedder Embedder, cfg types.MatcherConfig) (*Matcher, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating label cache")
	}

	w := cfg.Weights
	if w == (types.Weights{}) {
		w = types.DefaultWeights
	}

	return &Matcher{
		registry: registry,
		embedder: embedder,
		weights:  w,
		labels:   cache,
	}, nil
}

// Prepare embeds every domain label not yet cached in one batched call.
func (m *Matcher) Prepare(ctx context.Context) error {
	if m.embedder == nil {
		return nil
	}
	missing := m.missingLabels()
	if len(missing) == 0 {
		return nil
	}

	vectors, err := m.embed(ctx, missing)
	if err != nil {
		return errors.Wrap(err, "embedding domain labels")
	}
	for i, label := range missing {
		m.labels.Add(label, vectors[i])
	}
	logger.G(ctx).WithField("labels", len(missing)).Debug("domain labels embedded")
	return nil
}

// Match returns the skills whose composite score reaches their threshold,
// ranked descending. Equal scores keep registration order. The error is
// non-nil only when ctx is done.
func (m *Matcher) Match(ctx context.Context, topic string) ([]types.MatchScore, error) {
	report, err := m.MatchWithReport(ctx, topic)
	if err != nil {
		return nil, err
	}
	return report.Matched, nil
}

// MatchWithReport scores topic against every skill. The topic and any
// uncached domain labels are embedded in a single call.
func (m *Matcher) MatchWithReport(ctx context.Context, topic string) (*MatchReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &MatchReport{}
	defs := m.registry.All()
	if len(defs) == 0 {
		return report, nil
	}

	topicVec, labelVecs, err := m.embedTopic(ctx, topic)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		report.EmbeddingErr = err
		logger.G(ctx).WithError(err).
			WithFields(logrus.Fields{"stage": "skill_matching", "kind": types.DegradeEmbeddingFailed}).
			Warn("embedding failed, domain signal disabled")
	}

	report.Scores = make([]types.MatchScore, len(defs))
	for i, def := range defs {
		s := types.MatchScore{SkillID: def.ID}
		if topicVec != nil {
			s.DomainSimilarity, s.MatchedDomains = domainSimilarity(topicVec, def.Trigger.Domains, labelVecs)
		}
		s.KeywordScore, s.MatchedKeywords = keywordScore(topic, def.Trigger.Keywords)
		s.IntentScore = intentScore(topic, m.registry.intents[i])
		s.Composite = composite(m.weights, s.DomainSimilarity, s.KeywordScore, s.IntentScore)
		report.Scores[i] = s
	}

	sort.SliceStable(report.Scores, func(a, b int) bool {
		return report.Scores[a].Composite > report.Scores[b].Composite
	})

	for _, s := range report.Scores {
		def, _ := m.registry.Get(s.SkillID)
		if s.Composite >= def.Trigger.Threshold {
			report.Matched = append(report.Matched, s)
		}
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"skills":  len(defs),
		"matched": len(report.Matched),
	}).Debug("skills scored")
	return report, nil
}

// embedTopic embeds the topic together with any domain labels missing from
// the cache. It returns a nil topic vector when no skill declares domains.
func (m *Matcher) embedTopic(ctx context.Context, topic string) ([]float64, map[string][]float64, error) {
	if m.embedder == nil || !m.hasDomains() {
		return nil, nil, nil
	}

	labelVecs := make(map[string][]float64)
	var missing []string
	for _, def := range m.registry.skills {
		for _, label := range def.Trigger.Domains {
			if _, seen := labelVecs[label]; seen {
				continue
			}
			if v, ok := m.labels.Get(label); ok {
				labelVecs[label] = v
				continue
			}
			labelVecs[label] = nil
			missing = append(missing, label)
		}
	}

	vectors, err := m.embed(ctx, append([]string{topic}, missing...))
	if err != nil {
		return nil, nil, err
	}
	for i, label := range missing {
		v := vectors[i+1]
		labelVecs[label] = v
		m.labels.Add(label, v)
	}
	return vectors[0], labelVecs, nil
}

func (m *Matcher) embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (m *Matcher) hasDomains() bool {
	for _, def := range m.registry.skills {
		if len(def.Trigger.Domains) > 0 {
			return true
		}
	}
	return false
}

func (m *Matcher) missingLabels() []string {
	seen := make(map[string]bool)
	var missing []string
	for _, def := range m.registry.skills {
		for _, label := range def.Trigger.Domains {
			if seen[label] {
				continue
			}
			seen[label] = true
			if !m.labels.Contains(label) {
				missing = append(missing, label)
			}
		}
	}
	return missing
}
