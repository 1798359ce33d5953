package httptp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoPostsQueryAndVariables(t *testing.T) {
	var gotBody wireRequest
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"me":{"id":"1"}}}`))
	}))
	defer srv.Close()

	tr := New()
	defer tr.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer xyz")
	resp, err := tr.Do(context.Background(), Request{
		Subgraph:  "accounts",
		URL:       srv.URL,
		Query:     `{ me { id } }`,
		Variables: map[string]any{"x": 1},
		Headers:   headers,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"me":{"id":"1"}}`, string(resp.Data))
	require.Equal(t, `{ me { id } }`, gotBody.Query)
	require.Equal(t, float64(1), gotBody.Variables["x"])
	require.Equal(t, "Bearer xyz", gotHeader.Get("Authorization"))
}

func TestDoSurfacesSubgraphErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"boom","path":["me"]}]}`))
	}))
	defer srv.Close()

	tr := New()
	defer tr.Close()

	resp, err := tr.Do(context.Background(), Request{URL: srv.URL, Query: `{ me { id } }`})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "boom", resp.Errors[0].Message)
}

func TestDoRetriesIdempotentRequestsOnFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	tr := New()
	defer tr.Close()

	resp, err := tr.Do(context.Background(), Request{
		URL:        srv.URL,
		Query:      `{ ok }`,
		Idempotent: true,
		Retry:      RetryPolicy{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(resp.Data))
	require.Equal(t, int32(3), attempts.Load())
}

func TestDoDoesNotRetryNonIdempotentRequests(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New()
	defer tr.Close()

	_, err := tr.Do(context.Background(), Request{
		URL:        srv.URL,
		Query:      `mutation { noop }`,
		Idempotent: false,
		Retry:      RetryPolicy{MaxAttempts: 5, BaseDelayMS: 1, MaxDelayMS: 2},
	})
	require.Error(t, err)
	require.Equal(t, int32(1), attempts.Load())
}

func TestDoRejectsAfterClose(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Close())
	_, err := tr.Do(context.Background(), Request{URL: "http://example.invalid", Query: "{}"})
	require.Error(t, err)
}
