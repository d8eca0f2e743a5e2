// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/prompt"
	"github.com/Stellven/KBSkills/pkg/types"
)

// Sub-topic count accepted from decomposition.
const (
	minSubTopics = 3
	maxSubTopics = 5
)

// decompose asks the generator for sub-topics. The first attempt uses the
// regular prompt; retries use the strict variant.
func (r *run) decompose(ctx context.Context) error {
	attempts := 1 + r.cfg.StageRetries
	var lastErr error
	for i := 0; i < attempts; i++ {
		name := prompt.Decompose
		if i > 0 {
			name = prompt.DecomposeStrict
		}
		p, err := r.deps.Renderer.Render(name, prompt.DecomposeData{Topic: r.topic})
		if err != nil {
			return err
		}

		r.res.DecomposeAttempts++
		resp, err := r.deps.Generator.Generate(ctx, p)
		if err == nil {
			var subs []types.SubTopic
			if subs, err = parseSubTopics(resp); err == nil {
				r.res.SubTopics = subs
				logger.G(ctx).WithField("sub_topics", len(subs)).Info("topic decomposed")
				return nil
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		logger.G(ctx).WithFields(logrus.Fields{"attempt": i + 1, "template": name}).
			WithError(err).Warn("decomposition attempt rejected")
	}
	return errors.Wrapf(ErrDecomposition, "%d attempts, last: %v", attempts, lastErr)
}

// parseSubTopics decodes a decomposition response. Entries without text are
// dropped; a missing query falls back to the sub-topic text.
func parseSubTopics(resp string) ([]types.SubTopic, error) {
	raw, err := extractJSONArray(resp)
	if err != nil {
		return nil, err
	}
	var decoded []types.SubTopic
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(err, "decoding sub-topics")
	}

	subs := make([]types.SubTopic, 0, len(decoded))
	for _, st := range decoded {
		st.Text = strings.TrimSpace(st.Text)
		st.SearchQuery = strings.TrimSpace(st.SearchQuery)
		if st.Text == "" {
			continue
		}
		if st.SearchQuery == "" {
			st.SearchQuery = st.Text
		}
		subs = append(subs, st)
	}
	if n := len(subs); n < minSubTopics || n > maxSubTopics {
		return nil, errors.Errorf("got %d sub-topics, want %d-%d", n, minSubTopics, maxSubTopics)
	}
	return subs, nil
}
