// Package stream is a small push-based stream library.
//
// A Stream delivers values, then at most one terminal notification (an
// error or completion), to an Observer. Subscribing returns a Subscription
// whose Unsubscribe detaches the observer and tears down whatever the
// source was doing (goroutines, network subscriptions, timers).
//
//	sub := stream.Map(stream.Of(1, 2, 3), double).Subscribe(stream.Observer[int]{
//	    OnNext:     func(v int) { fmt.Println(v) },
//	    OnComplete: func() { fmt.Println("done") },
//	})
//	defer sub.Unsubscribe()
//
// # Sources
//
// Of, FromSeq, FromChan, Interval, Empty, Never and Fail build cold
// streams. Create exposes an Emitter for sources backed by goroutines; its
// Context is cancelled as soon as the subscriber goes away. Subject is a
// hot, multicast source driven by explicit Next/Error/Complete calls.
//
// # Operators
//
// Map, MapIndex, StartWith, Take, Tap, Finally, CatchError and SwitchMap
// compose streams. ObserveOn re-routes every notification through a
// Dispatcher, which is how a consumer that is not safe for concurrent use
// receives values from sources running on arbitrary goroutines.
//
// # Thread Safety
//
// Subscriptions and Subjects are safe for concurrent use. Operators assume
// their upstream honours the Observer contract (no concurrent calls); wrap
// sources with ObserveOn when that cannot be guaranteed.
package stream
