package main

import (
	"sync"
	"time"
)

// mTicker fans one ticker out to every subscribed connection writer.
type mTicker struct {
	mux         sync.Mutex // Protects subscribers, stopped and dropped
	subscribers subscribers
	stopped     bool
	dropped     int

	ticker *time.Ticker
	stopCh chan struct{}
}

type subscribers map[*subscriber]interface {
}

type subscriber struct {
	tick chan time.Time
}

// creates and starts a new ticker
// that can have subscribed channels to receive
// ticks
func newMTicker(interval time.Duration) *mTicker {
	t := &mTicker{
		subscribers: make(subscribers),
		ticker:      time.NewTicker(interval),
		stopCh:      make(chan struct{}),
	}
	go t.tick()
	return t
}

func newSubscriber() *subscriber {
	return &subscriber{
		tick: make(chan time.Time, 1),
	}
}

// Subscribe returns a channel to which ticks will be delivered. Ticks that
// can't be delivered to the channel, because it is not ready to receive, are
// discarded. Subscribing to a stopped ticker yields a closed channel.
func (t *mTicker) subscribe() *subscriber {
	t.mux.Lock()
	defer t.mux.Unlock()

	sub := newSubscriber()
	if t.stopped {
		close(sub.tick)
		return sub
	}
	t.subscribers[sub] = nil
	return sub
}

// unsubscribe is safe to call after stop.
func (t *mTicker) unsubscribe(sub *subscriber) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if _, ok := t.subscribers[sub]; ok {
		close(sub.tick)
		delete(t.subscribers, sub)
	}
}

// Stop stops the ticker, and closes
// all subscribed channels
func (t *mTicker) stop() {
	t.mux.Lock()
	defer t.mux.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	t.ticker.Stop()
	close(t.stopCh)
	for sub := range t.subscribers {
		close(sub.tick)
		delete(t.subscribers, sub)
	}
}

func (t *mTicker) tick() {
	for {
		select {
		case tick := <-t.ticker.C:
			t.mux.Lock()
			for sub := range t.subscribers {
				select {
				case sub.tick <- tick:
				default:
					t.dropped++
				}
			}
			t.mux.Unlock()
		case <-t.stopCh:
			return
		}
	}
}
