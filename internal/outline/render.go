// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/Stellven/KBSkills/pkg/types"
)

// Format selects the serialization written by Write.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates s. An empty string selects Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q: use markdown, json, or yaml", s)
	}
}

const (
	provenanceNote   = "本 Outline 基于知识库检索生成，反映知识库在该主题下的核心关切与洞察。"
	skillsPrefix     = "激活 Skills: "
	insufficientNote = "Insufficient knowledge: the knowledge base returned nothing relevant for this topic. " +
		"The sections below are framing questions, not findings drawn from the knowledge base."
)

// InsufficientKnowledgeNote is the header line added when retrieval found nothing.
func InsufficientKnowledgeNote() string { return insufficientNote }

// Markdown renders o with its header block.
func Markdown(o *types.Outline) string {
	var b strings.Builder

	title := o.Title
	if title == "" {
		title = "Topic: " + o.Topic
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "> %s\n", provenanceNote)
	if len(o.ActivatedSkills) > 0 {
		fmt.Fprintf(&b, "> %s%s\n", skillsPrefix, strings.Join(o.ActivatedSkills, ", "))
	}
	if o.InsufficientKnowledge {
		fmt.Fprintf(&b, ">\n> %s\n", insufficientNote)
	}

	writeSections(&b, o.Sections)
	return b.String()
}

func writeSections(b *strings.Builder, sections []types.OutlineSection) {
	for _, s := range sections {
		level := s.Level
		if level < 2 {
			level = 2
		}
		fmt.Fprintf(b, "\n%s %s\n", strings.Repeat("#", level), s.Heading)
		if s.Body != "" {
			fmt.Fprintf(b, "\n%s\n", s.Body)
		}
		writeSections(b, s.Children)
	}
}

// Write serializes o to w in format.
func Write(w io.Writer, o *types.Outline, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshaling JSON")
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		data, err := yaml.Marshal(o)
		if err != nil {
			return errors.Wrap(err, "marshaling YAML")
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := io.WriteString(w, Markdown(o))
		return err
	}
}

// Styled renders Markdown for a terminal of the given width.
func Styled(markdown string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", errors.Wrap(err, "creating terminal renderer")
	}
	return r.Render(markdown)
}
