// Package observe implements the push-based notification layer that turns
// store mutations into continuously updated views.
package observe

import (
	"context"
	"sync"
)

// Feed is a publish/subscribe cell holding the latest value of one
// observable query. Subscribers get the current value immediately, then
// every subsequently published value in publish order. There is no history:
// a new subscriber never sees anything older than the state at subscribe
// time.
type Feed[T any] struct {
	mu   sync.Mutex
	cur  T
	set  bool
	subs map[int]chan T
	next int
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish stores v as the current value and fans it out to every active
// subscriber. Delivery is conflated per subscriber: an unread stale value is
// replaced by v, so a slow consumer never blocks the publisher or other
// subscribers and always ends on the latest state.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur, f.set = v, true
	for _, ch := range f.subs {
		deliver(ch, v)
	}
}

// Current returns the latest published value, if any.
func (f *Feed[T]) Current() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur, f.set
}

// Subscribe registers an observer. The returned channel yields the current
// value right away (when one exists) and then every later publish. Canceling
// ctx unregisters the observer and closes the channel; nothing is buffered
// for observers that are gone.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	if f.set {
		ch <- f.cur
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// deliver pushes v into a capacity-1 subscriber channel, dropping the stale
// unread value when the subscriber has fallen behind. Called with f.mu held,
// so it is the only sender.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
