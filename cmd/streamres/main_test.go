package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/streamres/internal/config"
	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/internal/logging"
	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/loaders/redisfeed"
	"github.com/vango-dev/streamres/pkg/loaders/wsfeed"
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/server"
	"github.com/vango-dev/streamres/pkg/stream"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func init() {
	out = termenv.NewOutput(&bytes.Buffer{}, termenv.WithProfile(termenv.Ascii))
	errors.DisableColors()
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestVersion_Short(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", buf.String())
}

func TestVersion_Full(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Version:    dev")
	assert.Contains(t, buf.String(), "Go version:")
}

func TestWatch_RequiresURL(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch"})
	assert.Error(t, cmd.Execute())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
feeds:
  - name: ticks
    kind: sequence
    options:
      interval: 5ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(yaml), 0o644))

	cfg, err := loadConfig(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, config.AggregateAppend, cfg.Feeds[0].Aggregate)

	_, err = loadConfig(t.TempDir())
	assert.Equal(t, errors.CodeConfigUnreadable, errors.Code(err))
}

func collect(t *testing.T, s stream.Stream[any]) []any {
	t.Helper()
	var (
		mu  sync.Mutex
		got []any
	)
	done := make(chan struct{})
	s.Subscribe(stream.Observer[any]{
		OnNext: func(v any) {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		},
		OnComplete: func() { close(done) },
	})
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("stream did not complete")
	}
	mu.Lock()
	defer mu.Unlock()
	return got
}

func TestSequenceLoader(t *testing.T) {
	load := sequenceLoader(config.SequenceOptions{Interval: time.Millisecond, Count: 3})
	src, err := load(context.Background(), "tick")
	require.NoError(t, err)
	assert.Equal(t, []any{"tick#0", "tick#1", "tick#2"}, collect(t, src))
}

func TestLoaderFor_UnknownKind(t *testing.T) {
	_, err := loaderFor(config.FeedConfig{Name: "x", Kind: "ftp"}, &backends{})
	assert.ErrorContains(t, err, `unknown kind "ftp"`)
}

func TestLoaderFor_RejectsBadOptions(t *testing.T) {
	fc := config.FeedConfig{Name: "x", Kind: config.KindSequence, Options: map[string]any{"speed": 3}}
	_, err := loaderFor(fc, &backends{})
	assert.Error(t, err)
}

func TestBuildFeeds_SequenceWithInitialRequest(t *testing.T) {
	cfg, err := config.Parse([]byte(`
feeds:
  - name: counter
    kind: sequence
    aggregate: count
    initial_request: go
    options:
      interval: 1ms
      count: 4
  - name: letters
    kind: sequence
    aggregate: last
    options:
      interval: 1ms
`))
	require.NoError(t, err)

	scope := lifecycle.NewScope(nil)
	defer scope.Dispose()

	var (
		mu     sync.Mutex
		events []resource.Kind
	)
	recorder := resource.ObserverFunc(func(e resource.Event) {
		mu.Lock()
		events = append(events, e.Kind)
		mu.Unlock()
	})

	feeds, err := buildFeeds(cfg, newBackends(cfg, scope, logging.NewNop(), recorder))
	require.NoError(t, err)
	require.Equal(t, 2, feeds.Len())

	counter, ok := feeds.Get("counter")
	require.True(t, ok)
	require.Eventually(t, func() bool { return counter.Snapshot().Value == 4 }, waitFor, tick)
	assert.Equal(t, resource.Resolved, counter.Snapshot().Status)

	letters, _ := feeds.Get("letters")
	assert.Equal(t, resource.Idle, letters.Snapshot().Status)
	assert.Nil(t, letters.Snapshot().Value)

	scope.Dispose()
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, resource.Started)
	assert.Contains(t, events, resource.Stopped)
}

func TestBuildFeeds_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg, err := config.Parse([]byte(`
redis:
  addr: ` + mr.Addr() + `
feeds:
  - name: chat
    kind: redis
    keep: 2
    initial_request: lobby
    options:
      prefix: "room:"
`))
	require.NoError(t, err)

	scope := lifecycle.NewScope(nil)
	defer scope.Dispose()

	feeds, err := buildFeeds(cfg, newBackends(cfg, scope, logging.NewNop()))
	require.NoError(t, err)
	chat, _ := feeds.Get("chat")

	require.Eventually(t, func() bool {
		return mr.Publish("room:lobby", "one") > 0
	}, waitFor, tick)
	mr.Publish("room:lobby", "two")
	mr.Publish("room:lobby", "three")

	require.Eventually(t, func() bool {
		items, _ := chat.Snapshot().Value.([]any)
		return len(items) == 2 && items[1].(redisfeed.Message).Payload == "three"
	}, waitFor, tick)
}

func TestNewS3Client(t *testing.T) {
	client := newS3Client(config.S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000"})
	opts := client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
	assert.NotNil(t, opts.Credentials)
}

func TestFormatState(t *testing.T) {
	frame := wsfeed.Frame{Data: []byte(`{"name":"chat","kind":"redis","status":"resolved","value":["a"],"loading":false}`)}

	assert.Equal(t, "loading  ", formatState(resource.State[wsfeed.Frame]{Status: resource.Loading}))
	assert.Equal(t, `resolved  chat resolved ["a"]`, formatState(resource.State[wsfeed.Frame]{Status: resource.Resolved, Value: frame}))
	assert.Equal(t, "resolved  plain", formatState(resource.State[wsfeed.Frame]{
		Status: resource.Resolved, Value: wsfeed.Frame{Data: []byte("plain")},
	}))
	assert.Equal(t, "error     "+assert.AnError.Error(), formatState(resource.State[wsfeed.Frame]{
		Status: resource.Error, Err: assert.AnError,
	}))
}

func TestRunWatch_PrintsSnapshots(t *testing.T) {
	scope := lifecycle.NewScope(nil)
	defer scope.Dispose()

	feeds := server.NewRegistry()
	agg, initial, err := server.AggregateFor(config.AggregateLast, 0)
	require.NoError(t, err)
	feed := server.NewFeed("ticks", config.KindSequence, initial,
		sequenceLoader(config.SequenceOptions{Interval: time.Millisecond, Count: 2}), agg, resource.WithScope(scope))
	require.NoError(t, feeds.Add(feed))

	srv := server.New(nil, feeds, server.WithScope(scope))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var buf syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/feeds/ticks/ws", 0, &buf)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "ticks idle")
	}, waitFor, tick)
	feed.Push("t")
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `ticks resolved "t#1"`)
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("watch did not stop")
	}
}

func TestRunWatch_FailsWithoutRetry(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/nowhere"
	ts.Close()

	var buf syncBuffer
	err := runWatch(context.Background(), url, 0, &buf)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "error")
}
