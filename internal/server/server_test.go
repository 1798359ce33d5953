package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	executor "github.com/fedgraph/gateway/internal/executor"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	httptp "github.com/fedgraph/gateway/internal/transport/httptp"
)

const serverTestSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION

enum join__Graph {
	ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.internal")
}

type Query {
	hello: String @join__field(graph: ACCOUNTS)
}
`

type fakeTransport struct {
	response *httptp.Response
	lastReq  httptp.Request
}

func (f *fakeTransport) Do(ctx context.Context, req httptp.Request) (*httptp.Response, error) {
	f.lastReq = req
	return f.response, nil
}

func newTestHandler(t *testing.T, ft *fakeTransport, opts ...Option) *Handler {
	t.Helper()
	idx, err := schemaindex.BuildFromSDL("test", serverTestSDL)
	require.NoError(t, err)
	exec := &executor.Executor{Transport: ft}
	return New(idx, exec, opts...)
}

func TestServeHTTPSimpleQuery(t *testing.T) {
	ft := &fakeTransport{response: &httptp.Response{Data: json.RawMessage(`{"hello":"world"}`)}}
	h := newTestHandler(t, ft)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body specResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "world", data["hello"])
}

func TestServeHTTPCORSAndPreflight(t *testing.T) {
	ft := &fakeTransport{response: &httptp.Response{Data: json.RawMessage(`{"hello":"world"}`)}}
	h := newTestHandler(t, ft, WithCORS("*"))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest(http.MethodOptions, "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestServeHTTPMaxBodyBytes(t *testing.T) {
	ft := &fakeTransport{response: &httptp.Response{Data: json.RawMessage(`{"hello":"world"}`)}}
	h := newTestHandler(t, ft, WithMaxBodyBytes(10))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"query":"1234567890"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// fakeQueryAuthorizer exercises the hook-wiring path: a
// query element denied by authorize_query short-circuits with no subgraph
// call made at all.
type fakeQueryAuthorizer struct{ denyField string }

func (f *fakeQueryAuthorizer) AuthorizeQuery(ctx context.Context, token hooks.AuthToken, elements []hooks.QueryElement) ([]hooks.Decision, any, error) {
	decisions := make([]hooks.Decision, len(elements))
	for i, el := range elements {
		decisions[i] = hooks.Decision{Element: el, Allow: el.FieldName != f.denyField}
	}
	return decisions, nil, nil
}

func TestServeHTTPQueryAuthorizerDeniesField(t *testing.T) {
	ft := &fakeTransport{response: &httptp.Response{Data: json.RawMessage(`{"hello":"world"}`)}}
	h := newTestHandler(t, ft, WithQueryAuthorizer(&fakeQueryAuthorizer{denyField: "hello"}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body specResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Errors)
	require.Nil(t, ft.lastReq.Headers, "denied query must never reach the subgraph")
}
