// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/pkg/types"
)

// retrieve queries the knowledge base once per sub-topic. Each call writes
// only its own slot. A failed slot keeps an empty fragment; the stage fails
// only when every slot failed.
func (r *run) retrieve(ctx context.Context) error {
	subs := r.res.SubTopics
	frags := make([]types.KnowledgeFragment, len(subs))
	errs := make([]error, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentRetrievals)
	for i, st := range subs {
		frags[i] = types.KnowledgeFragment{SubTopic: st, Mode: r.mode}
		g.Go(func() error {
			text, err := r.deps.Retriever.Retrieve(gctx, st.SearchQuery, r.mode)
			if err != nil {
				errs[i] = err
				return nil
			}
			frags[i].RawText = text
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var merr *multierror.Error
	for i, err := range errs {
		if err != nil {
			frags[i].Err = err.Error()
			merr = multierror.Append(merr, errors.Wrapf(err, "sub-topic %q", subs[i].Text))
			r.degrade(ctx, types.DegradeRetrievalFailed, fmt.Sprintf("sub-topic %q: %v", subs[i].Text, err))
			continue
		}
		if frags[i].Empty() {
			r.degrade(ctx, types.DegradeEmptyFragment, fmt.Sprintf("sub-topic %q returned no knowledge", subs[i].Text))
		}
	}
	r.res.Fragments = frags

	if merr != nil && len(merr.Errors) == len(subs) {
		merr.ErrorFormat = joinErrors
		return errors.Wrap(ErrAllRetrievalsFailed, merr.Error())
	}

	r.knowledge = r.deps.Renderer.Knowledge(frags)
	logger.G(ctx).WithFields(logrus.Fields{
		"fragments": len(frags),
		"failed":    len(merr.WrappedErrors()),
		"chars":     len(r.knowledge),
	}).Info("knowledge retrieved")
	return nil
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
