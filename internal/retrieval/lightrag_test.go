// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stellven/KBSkills/internal/httputil"
	"github.com/Stellven/KBSkills/pkg/types"
)

func newLightRAGServer(t *testing.T, handler func(q lightRAGQuery) (int, string)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/query", r.URL.Path)
		var q lightRAGQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		status, body := handler(q)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestLightRAGRetrieve(t *testing.T) {
	var got lightRAGQuery
	ts, _ := newLightRAGServer(t, func(q lightRAGQuery) (int, string) {
		got = q
		return http.StatusOK, `{"response": "  Service boundaries follow team boundaries.  "}`
	})

	l := NewLightRAG(types.RetrievalConfig{Endpoint: ts.URL + "/", Timeout: time.Second})
	text, err := l.Retrieve(context.Background(), "team topology", types.ModeLocal)
	require.NoError(t, err)
	assert.Equal(t, "Service boundaries follow team boundaries.", text)
	assert.Equal(t, lightRAGQuery{Query: "team topology", Mode: "local"}, got)
}

func TestLightRAGNoContextIsEmpty(t *testing.T) {
	ts, _ := newLightRAGServer(t, func(lightRAGQuery) (int, string) {
		return http.StatusOK, `{"response": "Sorry, I'm not able to provide an answer to that question.[no-context]"}`
	})

	text, err := NewLightRAG(types.RetrievalConfig{Endpoint: ts.URL}).Retrieve(context.Background(), "q", types.ModeHybrid)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLightRAGFailureIsTypedAndNotRetried(t *testing.T) {
	ts, calls := newLightRAGServer(t, func(lightRAGQuery) (int, string) {
		return http.StatusInternalServerError, "graph storage offline"
	})

	_, err := NewLightRAG(types.RetrievalConfig{Endpoint: ts.URL}).Retrieve(context.Background(), "q", types.ModeHybrid)
	require.Error(t, err)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "lightrag", rerr.Backend)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestLightRAGSendsAPIKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lr-key", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer ts.Close()

	l := NewLightRAG(types.RetrievalConfig{Endpoint: ts.URL, APIKey: "lr-key", OnlyNeedContext: true})
	text, err := l.Retrieve(context.Background(), "q", types.ModeNaive)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	require.NoError(t, l.Close())
}

func TestOpenSelectsBackend(t *testing.T) {
	b, err := Open(types.RetrievalConfig{Backend: types.BackendLightRAG, Endpoint: "http://localhost:9621"})
	require.NoError(t, err)
	assert.IsType(t, &LightRAG{}, b)

	_, err = Open(types.RetrievalConfig{Backend: "elastic"})
	assert.ErrorContains(t, err, "unknown retrieval backend")
}
