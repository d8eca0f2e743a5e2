// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/pkg/types"
)

const (
	fallbackConcern    = "General Analysis"
	fallbackImportance = 5
	fallbackReasoning  = 500
)

var fragmentRef = regexp.MustCompile(`\bF(\d+)\b`)

// identifyConcerns makes the concern call. A transport failure leaves the
// list empty; an unparseable answer becomes one fallback concern.
func (r *run) identifyConcerns(ctx context.Context) error {
	p, err := r.deps.Renderer.Render(prompt.Concerns, prompt.ConcernsData{
		Topic:        r.topic,
		Knowledge:    r.knowledge,
		HasKnowledge: r.knowledge != "",
		Insights:     r.usableInsights(),
	})
	if err != nil {
		return err
	}

	resp, err := r.deps.Generator.Generate(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.degrade(ctx, types.DegradeConcernsFailed, err.Error())
		return nil
	}

	concerns, err := parseConcerns(resp, len(r.res.Fragments))
	if err != nil {
		r.degrade(ctx, types.DegradeConcernsUnparsed, err.Error())
		concerns = []types.Concern{{
			Statement:  fallbackConcern,
			Importance: fallbackImportance,
			Reasoning:  truncateRunes(strings.TrimSpace(resp), fallbackReasoning),
		}}
	}
	r.res.Concerns = concerns
	logger.G(ctx).WithField("concerns", len(concerns)).Info("concerns identified")
	return nil
}

// usableInsights drops skills that produced no step output.
func (r *run) usableInsights() []types.SkillInsight {
	var out []types.SkillInsight
	for _, ins := range r.res.Insights {
		if len(ins.Steps) > 0 {
			out = append(out, ins)
		}
	}
	return out
}

type concernJSON struct {
	Concern    string      `json:"concern"`
	Importance json.Number `json:"importance"`
	Reasoning  string      `json:"reasoning"`
	Evidence   []string    `json:"evidence"`
	LogicChain string      `json:"logic_chain"`
}

// parseConcerns decodes the concern array in response order. Evidence
// tags F<n> are mapped to zero-based indices below fragments.
func parseConcerns(resp string, fragments int) ([]types.Concern, error) {
	raw, err := extractJSONArray(resp)
	if err != nil {
		return nil, err
	}
	var decoded []concernJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(err, "decoding concerns")
	}

	var concerns []types.Concern
	for _, c := range decoded {
		statement := strings.TrimSpace(c.Concern)
		if statement == "" {
			continue
		}
		importance := 0
		if f, err := c.Importance.Float64(); err == nil {
			importance = int(math.Round(f))
		}
		concerns = append(concerns, types.Concern{
			Statement:              statement,
			Importance:             importance,
			Reasoning:              strings.TrimSpace(c.Reasoning),
			LogicChain:             strings.TrimSpace(c.LogicChain),
			Evidence:               c.Evidence,
			SupportingFragmentRefs: fragmentRefs(c.Evidence, fragments),
		})
	}
	if len(concerns) == 0 {
		return nil, errors.New("response has no concerns")
	}
	return concerns, nil
}

func fragmentRefs(evidence []string, fragments int) []int {
	var refs []int
	seen := make(map[int]bool)
	for _, e := range evidence {
		for _, m := range fragmentRef.FindAllStringSubmatch(e, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > fragments || seen[n-1] {
				continue
			}
			seen[n-1] = true
			refs = append(refs, n-1)
		}
	}
	return refs
}

// formatConcerns renders concerns for the outline prompt.
func formatConcerns(concerns []types.Concern) string {
	if len(concerns) == 0 {
		return "(no concerns could be identified)"
	}
	var b strings.Builder
	for i, c := range concerns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, c.Statement)
		if c.Importance > 0 {
			fmt.Fprintf(&b, " (importance %d/10)", c.Importance)
		}
		b.WriteString("\n")
		if c.Reasoning != "" {
			fmt.Fprintf(&b, "   Reasoning: %s\n", c.Reasoning)
		}
		if c.LogicChain != "" {
			fmt.Fprintf(&b, "   Logic chain: %s\n", c.LogicChain)
		}
		if len(c.Evidence) > 0 {
			fmt.Fprintf(&b, "   Evidence: %s\n", strings.Join(c.Evidence, "; "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
