package resource

import "github.com/vango-dev/streamres/pkg/stream"

// reloadSignal is emitted on the trigger stream by Reload.
type reloadSignal struct{}

// tagged pairs the latest request with whether this emission was caused by
// a reload.
type tagged[R any] struct {
	req    Request[R]
	reload bool
}

// coordinate combines requests with reload triggers. It emits whenever
// either source emits, once a request has been seen, pairing the latest
// request with a flag that is true only for the first emission after a new
// trigger.
//
// Each trigger is numbered; the index stream is seeded with -1 so that the
// first request is not mistaken for a reload. The result completes or fails
// with requests; completion of triggers is ignored.
//
// Both sources must deliver on the same serial queue.
func coordinate[R any](requests stream.Stream[Request[R]], triggers stream.Stream[reloadSignal]) stream.Stream[tagged[R]] {
	indexes := stream.StartWith(
		stream.MapIndex(triggers, func(_ reloadSignal, i int) int { return i }),
		-1,
	)

	return stream.Func[tagged[R]](func(o stream.Observer[tagged[R]]) stream.Subscription {
		var (
			latest    Request[R]
			hasReq    bool
			index     int
			hasIndex  bool
			lastIndex = -1
			done      bool
		)
		sub := stream.NewSubscription()

		emit := func() {
			if done || !hasReq || !hasIndex {
				return
			}
			reload := index != lastIndex
			lastIndex = index
			o.Next(tagged[R]{req: latest, reload: reload})
		}
		finish := func() bool {
			if done {
				return false
			}
			done = true
			sub.Unsubscribe()
			return true
		}

		sub.Add(indexes.Subscribe(stream.Observer[int]{
			OnNext: func(i int) {
				index, hasIndex = i, true
				emit()
			},
		}).Unsubscribe)

		upstream := requests.Subscribe(stream.Observer[Request[R]]{
			OnNext: func(r Request[R]) {
				latest, hasReq = r, true
				emit()
			},
			OnError: func(err error) {
				if finish() {
					o.Error(err)
				}
			},
			OnComplete: func() {
				if finish() {
					o.Complete()
				}
			},
		})
		sub.Add(upstream.Unsubscribe)
		return sub
	})
}
