package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rulegraph"
	"github.com/brunobiangulo/rulegraph/corpus"
	"github.com/brunobiangulo/rulegraph/graph"
)

const ccpRules = `[
  {"id": "437c", "title": "Motion for summary judgment",
   "analysis": {"cross_references": ["1005"]}},
  {"id": "1005", "title": "Notice of motion"}
]`

const crcRules = `[
  {"id": "3.1350", "title": "Motion for summary judgment or summary adjudication"}
]`

type testServer struct {
	engine rulegraph.Engine
	srv    *httptest.Server
}

func newTestServer(t *testing.T, apiKey, origins string) *testServer {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	cfg := rulegraph.DefaultConfig()
	cfg.Sources = []corpus.Source{
		{System: graph.SystemCCP, Path: write("ccp.json", ccpRules)},
		{System: graph.SystemCRC, Path: write("crc.json", crcRules)},
	}
	cfg.OutputDir = filepath.Join(dir, "output")

	e, err := rulegraph.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	srv := httptest.NewServer(newRouter(newHandler(e, newMetrics()), apiKey, origins))
	t.Cleanup(srv.Close)
	return &testServer{engine: e, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, body string, header http.Header) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func (ts *testServer) rebuild(t *testing.T) {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/rebuild", "", nil)
	require.Equal(t, http.StatusOK, status, body)
}

func decode(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &m), body)
	return m
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "", "")

	status, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	m := decode(t, body)
	assert.Equal(t, "ok", m["status"])
	assert.NotContains(t, m, "build")

	ts.rebuild(t)
	_, body = ts.do(t, http.MethodGet, "/health", "", nil)
	m = decode(t, body)
	assert.NotEmpty(t, m["build"])
	assert.Equal(t, float64(3), m["nodes"])
}

func TestQueryBeforeBuild(t *testing.T) {
	ts := newTestServer(t, "", "")

	status, _ := ts.do(t, http.MethodPost, "/query", `{"query": "demurrer"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = ts.do(t, http.MethodGet, "/graph", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.rebuild(t)

	status, body := ts.do(t, http.MethodPost, "/query", `{"query": "Motion for summary judgment"}`, nil)
	require.Equal(t, http.StatusOK, status, body)
	m := decode(t, body)
	components := m["components"].(map[string]interface{})
	assert.Equal(t, "motion_for_summary_judgment", components["motion_type"])
	assert.Contains(t, m, "applicable_rules")

	status, _ = ts.do(t, http.MethodPost, "/query", `{"query": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodPost, "/query", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodPost, "/query", `{"query": "`+strings.Repeat("a", 2001)+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGraph(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.rebuild(t)

	status, body := ts.do(t, http.MethodGet, "/graph", "", nil)
	require.Equal(t, http.StatusOK, status)
	m := decode(t, body)
	assert.Len(t, m["nodes"], 3)
	assert.NotEmpty(t, m["edges"])

	status, body = ts.do(t, http.MethodGet, "/graph?format=d3", "", nil)
	require.Equal(t, http.StatusOK, status)
	m = decode(t, body)
	assert.Len(t, m["nodes"], 3)
	assert.Contains(t, m, "links")

	status, _ = ts.do(t, http.MethodGet, "/graph?format=graphml", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.rebuild(t)

	status, body := ts.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	m := decode(t, body)
	stats := m["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["nodeCount"])
	assert.Equal(t, rulegraph.SourceCorpus, m["source"])
}

func TestRule(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.rebuild(t)

	status, body := ts.do(t, http.MethodGet, "/rules/crc_3.1350", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	m := decode(t, body)
	assert.Equal(t, "CRC 3.1350", m["rule"].(map[string]interface{})["label"])

	status, _ = ts.do(t, http.MethodGet, "/rules/ccp_9999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBuildsWithoutStore(t *testing.T) {
	ts := newTestServer(t, "", "")
	status, _ := ts.do(t, http.MethodGet, "/builds", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestAuth(t *testing.T) {
	ts := newTestServer(t, "secret", "")
	ts.do(t, http.MethodPost, "/rebuild", "", http.Header{"Authorization": {"Bearer secret"}})

	status, _ := ts.do(t, http.MethodGet, "/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(t, http.MethodGet, "/stats", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(t, http.MethodGet, "/stats", "", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, "", "https://rules.example.com, https://other.example.com")

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://rules.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://rules.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.rebuild(t)
	ts.do(t, http.MethodPost, "/query", `{"query": "demurrer"}`, nil)
	ts.do(t, http.MethodGet, "/rules/ccp_437c", "", nil)

	status, body := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `rulegraph_builds_total{result="ok"} 1`)
	assert.Contains(t, body, "rulegraph_graph_nodes 3")
	assert.Contains(t, body, `rulegraph_queries_total{motion_type="demurrer"} 1`)
	assert.Contains(t, body, `route="/rules/{id}"`)
}
