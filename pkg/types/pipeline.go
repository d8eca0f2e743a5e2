// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the kbskills pipeline:
// skill definitions and match scores, the per-run artifacts produced by
// each stage (sub-topics, fragments, insights, concerns), the final Outline,
// and configuration.
package types

import (
	"fmt"
	"strings"
)

// RetrievalMode selects the strategy of the knowledge-retrieval service.
type RetrievalMode string

const (
	ModeNaive  RetrievalMode = "naive"
	ModeLocal  RetrievalMode = "local"
	ModeGlobal RetrievalMode = "global"
	ModeHybrid RetrievalMode = "hybrid"
)

// DefaultMode is used when a run does not name a retrieval mode.
const DefaultMode = ModeHybrid

// ParseRetrievalMode validates s. An empty string yields DefaultMode.
func ParseRetrievalMode(s string) (RetrievalMode, error) {
	switch m := RetrievalMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DefaultMode, nil
	case ModeNaive, ModeLocal, ModeGlobal, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q: use naive, local, global, or hybrid", s)
	}
}

// SubTopic is one decomposed facet of the topic with its own retrieval query.
type SubTopic struct {
	Text        string `json:"sub_topic" yaml:"sub_topic"`
	SearchQuery string `json:"query" yaml:"query"`
}

// KnowledgeFragment is the raw text retrieved for one sub-topic.
type KnowledgeFragment struct {
	SubTopic SubTopic      `json:"sub_topic" yaml:"sub_topic"`
	Mode     RetrievalMode `json:"mode" yaml:"mode"`
	RawText  string        `json:"raw_text" yaml:"raw_text"`

	// Err records a retrieval failure for this slot. The fragment is then empty.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Empty reports whether the fragment carries no usable text.
func (f KnowledgeFragment) Empty() bool {
	return strings.TrimSpace(f.RawText) == ""
}

// StepOutput is the generation output of one framework step.
type StepOutput struct {
	Name   string `json:"name" yaml:"name"`
	Output string `json:"output" yaml:"output"`
}

// SkillInsight accumulates the step outputs of one applied skill.
type SkillInsight struct {
	SkillID     string       `json:"skill_id" yaml:"skill_id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Steps       []StepOutput `json:"steps" yaml:"steps"`

	// Err is set when a step failed; Steps then holds the completed prefix.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Text joins the step outputs into one insight block.
func (s SkillInsight) Text() string {
	var b strings.Builder
	for i, st := range s.Steps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s:**\n%s", st.Name, strings.TrimSpace(st.Output))
	}
	return b.String()
}

// Concern is a key issue synthesized from the retrieved knowledge.
type Concern struct {
	Statement  string   `json:"concern" yaml:"concern"`
	Importance int      `json:"importance" yaml:"importance"`
	Reasoning  string   `json:"reasoning" yaml:"reasoning"`
	LogicChain string   `json:"logic_chain" yaml:"logic_chain"`
	Evidence   []string `json:"evidence" yaml:"evidence"`

	// SupportingFragmentRefs are zero-based fragment indices cited as F<n>.
	SupportingFragmentRefs []int `json:"supporting_fragment_refs,omitempty" yaml:"supporting_fragment_refs,omitempty"`
}

// OutlineSection is one node of the outline tree.
type OutlineSection struct {
	Heading string `json:"heading" yaml:"heading"`

	// Level is the Markdown heading level (2 for top-level sections).
	Level int    `json:"level" yaml:"level"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`

	// Skill is the ID of the matched skill this section is attributed to.
	Skill string `json:"skill,omitempty" yaml:"skill,omitempty"`

	Children []OutlineSection `json:"children,omitempty" yaml:"children,omitempty"`
}

// Outline is the terminal artifact of a pipeline run.
type Outline struct {
	Title    string           `json:"title" yaml:"title"`
	Topic    string           `json:"topic" yaml:"topic"`
	Sections []OutlineSection `json:"sections" yaml:"sections"`

	// ActivatedSkills lists "DisplayName (score)" for every applied skill.
	ActivatedSkills []string `json:"activated_skills,omitempty" yaml:"activated_skills,omitempty"`

	// InsufficientKnowledge is set when retrieval returned no usable text.
	InsufficientKnowledge bool `json:"insufficient_knowledge" yaml:"insufficient_knowledge"`
}

// SkillSections returns the top-level sections attributed to skillID.
func (o *Outline) SkillSections(skillID string) []OutlineSection {
	var out []OutlineSection
	for _, s := range o.Sections {
		if s.Skill == skillID {
			out = append(out, s)
		}
	}
	return out
}

// HasSkillSections reports whether any top-level section is skill-attributed.
func (o *Outline) HasSkillSections() bool {
	for _, s := range o.Sections {
		if s.Skill != "" {
			return true
		}
	}
	return false
}

// DegradationKind classifies a recoverable condition a run completed through.
type DegradationKind string

const (
	DegradeEmptyFragment     DegradationKind = "empty_fragment"
	DegradeRetrievalFailed   DegradationKind = "retrieval_failed"
	DegradeEmbeddingFailed   DegradationKind = "embedding_failed"
	DegradeNoSkillMatch      DegradationKind = "no_skill_match"
	DegradeSkillStepFailed   DegradationKind = "skill_step_failed"
	DegradeConcernsUnparsed  DegradationKind = "concerns_unparsed"
	DegradeConcernsFailed    DegradationKind = "concerns_failed"
	DegradeSkillSectionAdded DegradationKind = "skill_section_appended"
)

// Degradation records one recoverable condition for later inspection.
type Degradation struct {
	Stage  string          `json:"stage" yaml:"stage"`
	Kind   DegradationKind `json:"kind" yaml:"kind"`
	Detail string          `json:"detail" yaml:"detail"`
}
