// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Query string `json:"query"`
}

type echoResponse struct {
	Response string `json:"response"`
}

func TestPostJSON_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req echoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(echoResponse{Response: "echo: " + req.Query})
	}))
	defer ts.Close()

	var out echoResponse
	err := PostJSON(context.Background(), ts.Client(), ts.URL, map[string]string{"X-API-Key": "secret"},
		echoRequest{Query: "graphs"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "echo: graphs", out.Response)
}

func TestPostJSON_StatusError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("  index not loaded \n"))
	}))
	defer ts.Close()

	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, echoRequest{}, &echoResponse{})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "index not loaded", se.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry on failure")
}

func TestPostJSON_BadBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, echoRequest{}, &echoResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestPostJSON_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PostJSON(ctx, ts.Client(), ts.URL, nil, echoRequest{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
