// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"net/http"
	"strings"

	"github.com/Stellven/KBSkills/internal/httputil"
	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/pkg/types"
)

const backendLightRAG = "lightrag"

// noContextMarker is appended by LightRAG to its fallback answer when the
// graph holds nothing relevant.
const noContextMarker = "[no-context]"

// LightRAG queries a LightRAG server over its REST API.
type LightRAG struct {
	endpoint        string
	apiKey          string
	onlyNeedContext bool
	client          *http.Client
}

type lightRAGQuery struct {
	Query           string `json:"query"`
	Mode            string `json:"mode"`
	OnlyNeedContext bool   `json:"only_need_context,omitempty"`
}

type lightRAGAnswer struct {
	Response string `json:"response"`
}

// NewLightRAG returns an adapter for the server at cfg.Endpoint.
func NewLightRAG(cfg types.RetrievalConfig) *LightRAG {
	return &LightRAG{
		endpoint:        strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:          cfg.APIKey,
		onlyNeedContext: cfg.OnlyNeedContext,
		client:          &http.Client{Timeout: cfg.Timeout},
	}
}

// Retrieve implements Adapter.
func (l *LightRAG) Retrieve(ctx context.Context, query string, mode types.RetrievalMode) (string, error) {
	var headers map[string]string
	if l.apiKey != "" {
		headers = map[string]string{"X-API-Key": l.apiKey}
	}

	var ans lightRAGAnswer
	req := lightRAGQuery{Query: query, Mode: string(mode), OnlyNeedContext: l.onlyNeedContext}
	if err := httputil.PostJSON(ctx, l.client, l.endpoint+"/query", headers, req, &ans); err != nil {
		return "", &Error{Op: "query", Backend: backendLightRAG, Err: err}
	}

	text := strings.TrimSpace(ans.Response)
	if strings.Contains(text, noContextMarker) {
		logger.G(ctx).WithField("query", query).Debug("lightrag found no context")
		return "", nil
	}
	return text, nil
}

// Close implements io.Closer.
func (l *LightRAG) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
