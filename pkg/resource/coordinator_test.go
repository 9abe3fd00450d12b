package resource

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vango-dev/streamres/pkg/stream"
)

type coordinated struct {
	req    string
	ok     bool
	reload bool
}

func collect(t *testing.T, requests *stream.Subject[Request[string]], triggers *stream.Subject[reloadSignal]) (*[]coordinated, stream.Subscription, *error, *bool) {
	t.Helper()
	var (
		got       []coordinated
		err       error
		completed bool
	)
	sub := coordinate[string](requests, triggers).Subscribe(stream.Observer[tagged[string]]{
		OnNext: func(v tagged[string]) {
			req, ok := v.req.Get()
			got = append(got, coordinated{req: req, ok: ok, reload: v.reload})
		},
		OnError:    func(e error) { err = e },
		OnComplete: func() { completed = true },
	})
	return &got, sub, &err, &completed
}

func TestCoordinate_FirstRequestIsNotReload(t *testing.T) {
	requests := stream.NewSubject[Request[string]]()
	triggers := stream.NewSubject[reloadSignal]()
	got, _, _, _ := collect(t, requests, triggers)

	assert.Empty(t, *got)
	requests.Next(Some("a"))
	requests.Next(Some("b"))

	assert.Equal(t, []coordinated{{"a", true, false}, {"b", true, false}}, *got)
}

func TestCoordinate_TriggerReemitsLatestAsReload(t *testing.T) {
	requests := stream.NewSubject[Request[string]]()
	triggers := stream.NewSubject[reloadSignal]()
	got, _, _, _ := collect(t, requests, triggers)

	requests.Next(Some("a"))
	triggers.Next(reloadSignal{})
	requests.Next(Some("b"))
	triggers.Next(reloadSignal{})
	triggers.Next(reloadSignal{})
	requests.Next(None[string]())

	assert.Equal(t, []coordinated{
		{"a", true, false},
		{"a", true, true},
		{"b", true, false},
		{"b", true, true},
		{"b", true, true},
		{"", false, false},
	}, *got)
}

func TestCoordinate_TriggerBeforeRequestWaits(t *testing.T) {
	requests := stream.NewSubject[Request[string]]()
	triggers := stream.NewSubject[reloadSignal]()
	got, _, _, _ := collect(t, requests, triggers)

	triggers.Next(reloadSignal{})
	assert.Empty(t, *got)
}

func TestCoordinate_FollowsRequestTermination(t *testing.T) {
	requests := stream.NewSubject[Request[string]]()
	triggers := stream.NewSubject[reloadSignal]()
	got, sub, errp, completed := collect(t, requests, triggers)

	requests.Next(Some("a"))
	triggers.Complete()
	assert.False(t, *completed, "trigger completion is ignored")

	requests.Complete()
	assert.True(t, *completed)
	assert.NoError(t, *errp)
	assert.True(t, sub.Closed())
	assert.Len(t, *got, 1)

	requests2 := stream.NewSubject[Request[string]]()
	triggers2 := stream.NewSubject[reloadSignal]()
	_, sub2, errp2, _ := collect(t, requests2, triggers2)
	broken := stderrors.New("broken")
	requests2.Error(broken)

	assert.Same(t, broken, *errp2)
	assert.True(t, sub2.Closed())
	assert.Equal(t, 0, triggers2.Observers())
}
