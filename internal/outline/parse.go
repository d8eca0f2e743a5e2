// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline parses generated Markdown into the outline tree and
// renders outlines as Markdown, JSON or YAML.
package outline

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Stellven/KBSkills/pkg/types"
)

// ErrNoHeadings is returned when the Markdown holds no section headings.
var ErrNoHeadings = errors.New("outline has no section headings")

type heading struct {
	level     int
	text      string
	lineStart int
	lineEnd   int
}

type node struct {
	section  types.OutlineSection
	children []*node
}

// Parse builds an outline from Markdown. A leading level-1 heading becomes
// the title. Each later heading becomes a section nested under the nearest
// preceding heading of a lower level; text up to the next heading is its
// body. Headings inside code blocks, lists or quotes are ignored, except
// that a response wrapped whole in one markdown fence is unwrapped first.
func Parse(markdown string) (*types.Outline, error) {
	src := []byte(unfence(markdown))
	headings := collectHeadings(src)

	o := &types.Outline{}
	if len(headings) > 0 && headings[0].level == 1 {
		o.Title = headings[0].text
		headings = headings[1:]
	}
	if len(headings) == 0 {
		return nil, ErrNoHeadings
	}

	var roots, stack []*node
	for i, h := range headings {
		end := len(src)
		if i+1 < len(headings) {
			end = headings[i+1].lineStart
		}
		n := &node{section: types.OutlineSection{
			Heading: h.text,
			Level:   h.level,
			Body:    strings.TrimSpace(string(src[h.lineEnd:end])),
		}}

		for len(stack) > 0 && stack[len(stack)-1].section.Level >= h.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}

	o.Sections = flatten(roots)
	return o, nil
}

// unfence strips one outer code fence when the whole response is a single
// fenced block with an empty, markdown or md info string.
func unfence(s string) string {
	t := strings.TrimSpace(s)
	if len(t) < 3 || (!strings.HasPrefix(t, "```") && !strings.HasPrefix(t, "~~~")) {
		return s
	}
	marker := t[:3]
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	switch strings.ToLower(strings.Trim(t[:nl], "`~ \t\r")) {
	case "", "markdown", "md":
	default:
		return s
	}
	body := strings.TrimRight(t[nl+1:], " \t\r\n")
	if !strings.HasSuffix(body, marker) {
		return s
	}
	return strings.TrimRight(body, marker[:1])
}

func flatten(nodes []*node) []types.OutlineSection {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]types.OutlineSection, len(nodes))
	for i, n := range nodes {
		out[i] = n.section
		out[i].Children = flatten(n.children)
	}
	return out
}

func collectHeadings(src []byte) []heading {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var out []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		first := h.Lines().At(0)
		last := h.Lines().At(h.Lines().Len() - 1)

		start := bytes.LastIndexByte(src[:first.Start], '\n') + 1
		end := len(src)
		if i := bytes.IndexByte(src[last.Stop:], '\n'); i >= 0 {
			end = last.Stop + i + 1
		}
		if !bytes.HasPrefix(bytes.TrimLeft(src[start:], " "), []byte("#")) {
			end = skipUnderline(src, end)
		}

		title := strings.TrimSpace(inlineText(h, src))
		if title == "" {
			continue
		}
		out = append(out, heading{level: h.Level, text: title, lineStart: start, lineEnd: end})
	}
	return out
}

// skipUnderline moves past a setext underline starting at pos.
func skipUnderline(src []byte, pos int) int {
	next := len(src)
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		next = pos + i + 1
	}
	line := bytes.TrimSpace(src[pos:next])
	if len(line) == 0 {
		return pos
	}
	if len(bytes.Trim(line, "=")) == 0 || len(bytes.Trim(line, "-")) == 0 {
		return next
	}
	return pos
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
