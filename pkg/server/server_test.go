package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/metrics"
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// splitLoader emits each comma separated part of the request. The request
// "bad" fails synchronously.
func splitLoader(_ context.Context, req string) (stream.Stream[any], error) {
	if req == "bad" {
		return nil, stderrors.New("boom")
	}
	return stream.Map(stream.Of(strings.Split(req, ",")...), func(s string) any { return s }), nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	scope := lifecycle.NewScope(nil)
	t.Cleanup(scope.Dispose)

	feeds := NewRegistry()
	for _, name := range []string{"beta", "alpha"} {
		agg, initial, err := AggregateFor("append", 0)
		require.NoError(t, err)
		require.NoError(t, feeds.Add(NewFeed(name, "test", initial, splitLoader, agg, resource.WithScope(scope))))
	}
	opts = append([]Option{WithScope(scope)}, opts...)
	return New(nil, feeds, opts...)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "feeds": float64(2)}, decode[map[string]any](t, rec))
}

func TestListFeeds(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/feeds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]feedSummary](t, rec)
	assert.Equal(t, []feedSummary{
		{Name: "alpha", Kind: "test", Status: resource.Idle},
		{Name: "beta", Kind: "test", Status: resource.Idle},
	}, got)
}

func TestUnknownFeed(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/feeds/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, "E301", body.Error.Code)
	assert.Contains(t, body.Error.Detail, `"nope"`)
}

func TestPushAndClear(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/feeds/alpha/request", `{"request":"a,b"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	snap := decode[Snapshot](t, do(t, s, http.MethodGet, "/feeds/alpha", ""))
	assert.Equal(t, resource.Resolved, snap.Status)
	assert.Equal(t, []any{"a", "b"}, snap.Value)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)

	rec = do(t, s, http.MethodDelete, "/feeds/alpha/request", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	snap = decode[Snapshot](t, rec)
	assert.Equal(t, resource.Idle, snap.Status)
	assert.Equal(t, []any{"a", "b"}, snap.Value, "value survives the absent request")

	other := decode[Snapshot](t, do(t, s, http.MethodGet, "/feeds/beta", ""))
	assert.Equal(t, resource.Idle, other.Status)
}

func TestPushRejectsBadBodies(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"request":`},
		{"unknown field", `{"req":"x"}`},
		{"missing request", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPut, "/feeds/alpha/request", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "E302", decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestReload(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/feeds/alpha/reload", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, reloadResult{Scheduled: false}, decode[reloadResult](t, rec))

	do(t, s, http.MethodPut, "/feeds/alpha/request", `{"request":"bad"}`)
	snap := decode[Snapshot](t, do(t, s, http.MethodGet, "/feeds/alpha", ""))
	require.Equal(t, resource.Error, snap.Status)
	assert.Equal(t, "boom", snap.Error)

	rec = do(t, s, http.MethodPost, "/feeds/alpha/reload", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, reloadResult{Scheduled: true}, decode[reloadResult](t, rec))
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feeds/alpha/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(waitFor))

	var first Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "alpha", first.Name)
	assert.Equal(t, resource.Idle, first.Status)

	f, _ := s.Feeds().Get("alpha")
	f.Push("x,y,z")

	for {
		var snap Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		if snap.Status == resource.Resolved {
			assert.Equal(t, []any{"x", "y", "z"}, snap.Value)
			break
		}
	}
}

func TestWebSocketUnknownFeed(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feeds/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketClosedOnScopeDispose(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feeds/beta/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(waitFor))

	var first Snapshot
	require.NoError(t, conn.ReadJSON(&first))

	s.Scope().Dispose()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(reg))
	s := newTestServer(t, WithMetrics(collector, reg))

	do(t, s, http.MethodGet, "/feeds/alpha", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `streamres_http_requests_total{code="200",route="/feeds/{name}`)
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	f, _ := s.Feeds().Get("alpha")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("server did not shut down")
	}
	assert.True(t, s.Scope().IsDisposed())
	select {
	case <-f.Resource().Done():
	default:
		t.Fatal("feeds should be closed on shutdown")
	}
	assert.Equal(t, 0, s.Feeds().Len())
}

func TestRegistry_DuplicateName(t *testing.T) {
	scope := lifecycle.NewScope(nil)
	defer scope.Dispose()
	agg, initial, _ := AggregateFor("last", 0)

	r := NewRegistry()
	require.NoError(t, r.Add(NewFeed("a", "test", initial, splitLoader, agg, resource.WithScope(scope))))
	assert.Error(t, r.Add(NewFeed("a", "test", initial, splitLoader, agg, resource.WithScope(scope))))
}

func TestAggregateFor(t *testing.T) {
	fold := func(mode string, keep int, resps ...any) any {
		agg, acc, err := AggregateFor(mode, keep)
		require.NoError(t, err)
		for _, r := range resps {
			acc = agg(acc, r)
		}
		return acc
	}

	assert.Equal(t, []any{"b", "c"}, fold("append", 2, "a", "b", "c"))
	assert.Equal(t, []any{"a", "b"}, fold("", 0, "a", "b"))
	assert.Equal(t, "c", fold("last", 0, "a", "b", "c"))
	assert.Equal(t, 3, fold("count", 0, "a", "b", "c"))
	assert.Equal(t, []any{}, fold("append", 0))

	_, _, err := AggregateFor("median", 0)
	assert.ErrorContains(t, err, "E201")
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://evil.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/feeds/a/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, SameOriginCheck(r), tt.origin)
	}
}
