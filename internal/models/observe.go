package models

import (
	"reflect"
	"sync"
	"time"
)

// observerGracePeriod keeps a topic watcher alive briefly after its last
// subscriber detaches, so UI-style resubscription during navigation does not
// pay for a fresh store query.
const observerGracePeriod = 3 * time.Second

const (
	topicListPrefix    = "list:"
	topicEntryPrefix   = "entry:"
	topicSourcesPrefix = "sources:"
	topicStreamsPrefix = "streams:"
)

func listTopic(cacheKey string) string    { return topicListPrefix + cacheKey }
func entryTopic(id string) string         { return topicEntryPrefix + id }
func sourcesTopic(entryID string) string  { return topicSourcesPrefix + entryID }
func streamsTopic(sourceID string) string { return topicStreamsPrefix + sourceID }

// Subscription delivers successive snapshots of one observed query. The
// channel always carries the latest snapshot: a slow consumer may miss
// intermediate states but never the newest one. Consecutive identical
// snapshots are suppressed.
type Subscription[T any] struct {
	w    *watcher[T]
	ch   chan T
	once sync.Once
}

// Updates is the snapshot channel. It is never closed while the subscription
// is open; call Close to detach.
func (s *Subscription[T]) Updates() <-chan T { return s.ch }

// Close detaches this subscriber. The shared watcher for the topic survives
// for a short grace period in case another observer attaches.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		if s.w != nil {
			s.w.unsubscribe(s.ch)
		}
	})
}

// ObserveList emits the named list's entries, re-emitting whenever the
// underlying rows change.
func (db *Database) ObserveList(cacheKey string) *Subscription[[]*Entry] {
	return observe(db, listTopic(cacheKey), func() ([]*Entry, error) {
		return db.loadList(cacheKey)
	})
}

// ObserveEntry emits one entry's current state; nil while the entry is absent.
func (db *Database) ObserveEntry(id string) *Subscription[*Entry] {
	return observe(db, entryTopic(id), func() (*Entry, error) {
		return db.loadEntry(id)
	})
}

// ObserveSourcesForEntry emits the entry's sources in primary-first order.
func (db *Database) ObserveSourcesForEntry(entryID string) *Subscription[[]*Source] {
	return observe(db, sourcesTopic(entryID), func() ([]*Source, error) {
		return db.loadSources(entryID)
	})
}

// ObserveStreamsForSource emits the source's streams ordered by track index.
func (db *Database) ObserveStreamsForSource(sourceID string) *Subscription[[]*Stream] {
	return observe(db, streamsTopic(sourceID), func() ([]*Stream, error) {
		return db.loadStreams(sourceID)
	})
}

// topicWatcher is the type-erased handle the notifier keeps per topic.
type topicWatcher interface {
	wake()
	halt()
	idleNow() bool
}

type notifier struct {
	mu       sync.Mutex
	watchers map[string]topicWatcher
	closed   bool
}

func newNotifier() *notifier {
	return &notifier{watchers: make(map[string]topicWatcher)}
}

func (n *notifier) notify(topics ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, topic := range topics {
		if w, ok := n.watchers[topic]; ok {
			w.wake()
		}
	}
}

func (n *notifier) notifyPrefix(prefix string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for topic, w := range n.watchers {
		if len(topic) >= len(prefix) && topic[:len(prefix)] == prefix {
			w.wake()
		}
	}
}

func (n *notifier) notifyAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, w := range n.watchers {
		w.wake()
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for topic, w := range n.watchers {
		w.halt()
		delete(n.watchers, topic)
	}
}

// release tears down a watcher once its grace period expires with no
// subscribers left.
func (n *notifier) release(topic string, w topicWatcher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	current, ok := n.watchers[topic]
	if !ok || current != w {
		return
	}
	if !current.idleNow() {
		return
	}
	delete(n.watchers, topic)
	w.halt()
}

// watcher re-derives one topic's snapshot on demand and fans it out to every
// subscriber. One watcher per topic is shared by all concurrent observers.
type watcher[T any] struct {
	n     *notifier
	topic string
	load  func() (T, error)

	wakeCh chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	subs   map[chan T]struct{}
	last   T
	primed bool
	grace  *time.Timer
	halted bool
}

func observe[T any](db *Database, topic string, load func() (T, error)) *Subscription[T] {
	n := db.notifier
	for {
		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			ch := make(chan T)
			close(ch)
			return &Subscription[T]{ch: ch}
		}

		var w *watcher[T]
		if existing, ok := n.watchers[topic]; ok {
			w = existing.(*watcher[T])
		} else {
			w = &watcher[T]{
				n:      n,
				topic:  topic,
				load:   load,
				wakeCh: make(chan struct{}, 1),
				done:   make(chan struct{}),
				subs:   make(map[chan T]struct{}),
			}
			n.watchers[topic] = w
			go w.run()
		}
		n.mu.Unlock()

		ch := make(chan T, 1)
		w.mu.Lock()
		if w.halted {
			// The grace timer released this watcher between the map
			// lookup and registration; start over with a fresh one.
			w.mu.Unlock()
			continue
		}
		if w.grace != nil {
			w.grace.Stop()
			w.grace = nil
		}
		w.subs[ch] = struct{}{}
		primed, last := w.primed, w.last
		w.mu.Unlock()

		if primed {
			push(ch, last)
		} else {
			w.wake()
		}
		return &Subscription[T]{w: w, ch: ch}
	}
}

func (w *watcher[T]) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wakeCh:
			w.refresh()
		}
	}
}

// refresh re-queries the topic and emits the snapshot if it differs from the
// last one delivered. A failed load keeps the previous snapshot observable:
// transient store errors never corrupt what observers see.
func (w *watcher[T]) refresh() {
	snapshot, err := w.load()
	if err != nil {
		return
	}

	w.mu.Lock()
	if w.primed && reflect.DeepEqual(w.last, snapshot) {
		w.mu.Unlock()
		return
	}
	w.last = snapshot
	w.primed = true
	targets := make([]chan T, 0, len(w.subs))
	for ch := range w.subs {
		targets = append(targets, ch)
	}
	w.mu.Unlock()

	for _, ch := range targets {
		push(ch, snapshot)
	}
}

func (w *watcher[T]) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

func (w *watcher[T]) halt() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.halted {
		return
	}
	w.halted = true
	close(w.done)
}

func (w *watcher[T]) idleNow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs) == 0
}

func (w *watcher[T]) unsubscribe(ch chan T) {
	w.mu.Lock()
	delete(w.subs, ch)
	idle := len(w.subs) == 0
	if idle && !w.halted {
		if w.grace != nil {
			w.grace.Stop()
		}
		w.grace = time.AfterFunc(observerGracePeriod, func() {
			w.n.release(w.topic, w)
		})
	}
	w.mu.Unlock()
}

// push delivers with latest-wins semantics into a buffered channel: if the
// subscriber has not drained the previous snapshot it is replaced.
func push[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
