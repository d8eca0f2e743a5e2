// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package skills

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stellven/KBSkills/pkg/types"
)

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		keywords  []string
		wantScore float64
		wantFound []string
	}{
		{name: "case insensitive", topic: "Adopting Kubernetes", keywords: []string{"kubernetes"}, wantScore: 1, wantFound: []string{"kubernetes"}},
		{name: "whole token only", topic: "golang tooling", keywords: []string{"go", "tooling"}, wantScore: 0.5, wantFound: []string{"tooling"}},
		{name: "punctuation is a boundary", topic: "go, rust, or zig?", keywords: []string{"go", "zig"}, wantScore: 1, wantFound: []string{"go", "zig"}},
		{name: "multi word keyword", topic: "event driven architecture", keywords: []string{"Event Driven"}, wantScore: 1, wantFound: []string{"Event Driven"}},
		{name: "han text has no delimiters", topic: "是否应该采用微服务架构", keywords: []string{"微服务", "单体"}, wantScore: 0.5, wantFound: []string{"微服务"}},
		{name: "han keyword next to latin", topic: "用k8s部署微服务", keywords: []string{"k8s"}, wantScore: 1, wantFound: []string{"k8s"}},
		{name: "later occurrence counts", topic: "category cat", keywords: []string{"cat"}, wantScore: 1, wantFound: []string{"cat"}},
		{name: "blank keywords ignored", topic: "cache", keywords: []string{"", "  ", "cache"}, wantScore: 1, wantFound: []string{"cache"}},
		{name: "no keywords", topic: "cache", keywords: nil, wantScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, found := keywordScore(tt.topic, tt.keywords)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestIntentScoreIsBinary(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)should (we|i)`),
		regexp.MustCompile(`(?i)\bvs\b`),
	}
	assert.Equal(t, 1.0, intentScore("Should we migrate, monolith vs services?", patterns))
	assert.Equal(t, 1.0, intentScore("monolith vs services", patterns))
	assert.Equal(t, 0.0, intentScore("history of monoliths", patterns))
	assert.Equal(t, 0.0, intentScore("anything", nil))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, cosine([]float64{1, 0}, []float64{-3, 0}), 1e-12)
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosine([]float64{1}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosine(nil, nil))
}

func TestCompositeClamps(t *testing.T) {
	heavy := types.Weights{Domain: 1, Keyword: 1, Intent: 1}
	assert.Equal(t, 1.0, composite(heavy, 1, 1, 1))
	assert.Equal(t, 0.0, composite(types.DefaultWeights, 0, 0, 0))
	assert.Equal(t, 0.5, composite(types.DefaultWeights, 0, 1, 1))
}
