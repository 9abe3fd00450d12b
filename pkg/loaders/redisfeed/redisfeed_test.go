package redisfeed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func payloads(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Payload)
	}
	return out
}

// publishOnce publishes until a subscriber receives the message.
func publishOnce(t *testing.T, mr *miniredis.Miniredis, channel, payload string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.Publish(channel, payload) > 0
	}, waitFor, tick)
}

func TestLoader_AggregatesMessages(t *testing.T) {
	mr, client := setup(t)
	requests := stream.NewSubject[resource.Request[string]]()
	res := resource.New([]Message(nil), requests, Loader(client, WithPrefix("chat:")), resource.Append[Message](10),
		resource.WithScope(lifecycle.NewScope(nil)))
	defer res.Close()

	requests.Next(resource.Some("lobby"))
	assert.Equal(t, resource.Loading, res.Status().Get())

	publishOnce(t, mr, "chat:lobby", "hello")
	mr.Publish("chat:lobby", "world")

	require.Eventually(t, func() bool {
		return len(res.Value().Get()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"hello", "world"}, payloads(res.Value().Get()))
	assert.Equal(t, "chat:lobby", res.Value().Get()[0].Channel)
	assert.Equal(t, resource.Resolved, res.Status().Get())
}

func TestLoader_SwitchUnsubscribes(t *testing.T) {
	mr, client := setup(t)
	requests := stream.NewSubject[resource.Request[string]]()
	res := resource.New([]Message(nil), requests, Loader(client), resource.Append[Message](0),
		resource.WithScope(lifecycle.NewScope(nil)))
	defer res.Close()

	requests.Next(resource.Some("a"))
	publishOnce(t, mr, "a", "first")
	requests.Next(resource.Some("b"))

	ctx := context.Background()
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "a").Result()
		return err == nil && n["a"] == 0
	}, waitFor, tick)

	publishOnce(t, mr, "b", "second")
	require.Eventually(t, func() bool {
		return len(res.Value().Get()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"first", "second"}, payloads(res.Value().Get()))
}

func TestLoader_Pattern(t *testing.T) {
	mr, client := setup(t)
	load := Loader(client, WithPattern(true))

	src, err := load(context.Background(), "news.*")
	require.NoError(t, err)

	got := make(chan Message, 1)
	sub := src.Subscribe(stream.Observer[Message]{OnNext: func(m Message) { got <- m }})
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		return mr.Publish("news.sport", "goal") > 0
	}, waitFor, tick)

	select {
	case m := <-got:
		assert.Equal(t, Message{Channel: "news.sport", Pattern: "news.*", Payload: "goal"}, m)
	case <-time.After(waitFor):
		t.Fatal("no message received")
	}
}

func TestLoader_EmptyChannelFailsSync(t *testing.T) {
	_, client := setup(t)
	_, err := Loader(client)(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyChannel)
}

func TestLoader_ConnectionFailureIsAsyncError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	requests := stream.NewSubject[resource.Request[string]]()
	res := resource.New(0, requests, Loader(client), resource.Count[Message](),
		resource.WithScope(lifecycle.NewScope(nil)))
	defer res.Close()

	requests.Next(resource.Some("x"))
	require.Eventually(t, func() bool {
		return res.Status().Get() == resource.Error
	}, waitFor, tick)
	assert.Error(t, res.Error().Get())
}
