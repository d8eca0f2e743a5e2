// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Trigger holds the rules that decide whether a skill applies to a topic.
type Trigger struct {
	// Domains are semantic domain labels compared against the topic embedding.
	Domains []string `json:"domains" yaml:"domains"`

	// Keywords are matched against the topic as whole, case-insensitive tokens.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// IntentPatterns are regular expressions; any match sets the intent signal.
	IntentPatterns []string `json:"intent_patterns" yaml:"intent_patterns"`

	// Threshold is the minimum composite score, in [0,1], for the skill to match.
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// FrameworkStep is one prompt of a skill's thinking framework. Prompts may
// reference {topic}, {knowledge}, {previous}, {step:N} and {step:Name}.
type FrameworkStep struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Framework is the ordered analysis procedure a skill applies.
type Framework struct {
	// Description summarizes the thinking framework.
	Description string `json:"description" yaml:"description"`

	// Steps run sequentially; later steps may reference earlier outputs.
	Steps []FrameworkStep `json:"steps" yaml:"steps"`
}

// SkillTool describes an auxiliary output format a skill contributes to the outline.
type SkillTool struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	OutputFormat string `json:"output_format" yaml:"output_format"`
}

// OutputTemplate is the formatting guidance a matched skill adds to outline generation.
type OutputTemplate struct {
	// Sections are headings the outline should contain for this skill.
	Sections []string `json:"sections" yaml:"sections"`

	// Style is a free-text style rule.
	Style string `json:"style" yaml:"style"`
}

// SkillDefinition is a named thinking framework: trigger, steps, and output template.
// Values are immutable after the registry loads them.
type SkillDefinition struct {
	// ID is the unique, stable skill identifier.
	ID string `json:"id" yaml:"id"`

	// DisplayName is the human-readable skill name.
	DisplayName string `json:"display_name" yaml:"display_name"`

	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`

	Trigger   Trigger        `json:"trigger" yaml:"trigger"`
	Framework Framework      `json:"framework" yaml:"framework"`
	Tools     []SkillTool    `json:"tools,omitempty" yaml:"tools,omitempty"`
	Output    OutputTemplate `json:"output" yaml:"output"`

	// FilePath is the source file the definition was loaded from.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

// Name returns the display name, falling back to the ID.
func (s *SkillDefinition) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

// MatchScore is the result of scoring one topic against one skill.
type MatchScore struct {
	SkillID string `json:"skill_id" yaml:"skill_id"`

	// DomainSimilarity is the maximum cosine similarity over domain labels, clamped to [0,1].
	DomainSimilarity float64 `json:"domain_similarity" yaml:"domain_similarity"`

	// KeywordScore is the fraction of trigger keywords found in the topic.
	KeywordScore float64 `json:"keyword_score" yaml:"keyword_score"`

	// IntentScore is 1 when any intent pattern matches, otherwise 0.
	IntentScore float64 `json:"intent_score" yaml:"intent_score"`

	// Composite is the weighted blend of the three signals.
	Composite float64 `json:"composite" yaml:"composite"`

	MatchedDomains  []string `json:"matched_domains,omitempty" yaml:"matched_domains,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty" yaml:"matched_keywords,omitempty"`

	// Forced is set when the skill was selected by an override rather than scored.
	Forced bool `json:"forced,omitempty" yaml:"forced,omitempty"`
}
