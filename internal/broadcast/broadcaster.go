// Package broadcast fans job progress out to any number of observers.
//
// A channel exists from the moment a job is accepted, so an observer that
// attaches late still gets the latest state, and an observer that attaches
// after the job finished still gets the terminal event. Publishing never
// blocks on a slow observer: each subscription has a bounded buffer that
// drops its oldest event when full. The newest event, and so the terminal
// one, is always kept.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/timmy/stockcast/internal/domain"
)

var (
	ErrUnknownJob    = errors.New("no progress channel for job")
	ErrChannelExists = errors.New("progress channel already exists")
	ErrChannelClosed = errors.New("progress channel is closed")
)

// DefaultSubscriberBuffer is the per-subscription backlog when none is configured.
const DefaultSubscriberBuffer = 16

// Options configures a Broadcaster.
type Options struct {
	// SubscriberBuffer bounds each subscription's backlog; values below 1 use the default.
	SubscriberBuffer int
}

// Broadcaster owns one progress channel per job.
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[string]*channel
	bufSize  int
}

type channel struct {
	mu     sync.Mutex
	last   *domain.ProgressEvent
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates a Broadcaster.
func New(opts Options) *Broadcaster {
	size := opts.SubscriberBuffer
	if size < 1 {
		size = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		channels: map[string]*channel{},
		bufSize:  size,
	}
}

// CreateChannel registers a channel for jobID. It must be called before the
// job processes its first item.
func (b *Broadcaster) CreateChannel(jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.channels[jobID]; ok {
		return ErrChannelExists
	}
	b.channels[jobID] = &channel{subs: map[*Subscription]struct{}{}}
	return nil
}

func (b *Broadcaster) lookup(jobID string) (*channel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.channels[jobID]
	if !ok {
		return nil, ErrUnknownJob
	}
	return ch, nil
}

// Subscribe attaches a new observer. The stream starts with the most recent
// event, if any, followed by live events. On a closed channel the stream holds
// only the final event and is already closed.
func (b *Broadcaster) Subscribe(jobID string) (*Subscription, error) {
	ch, err := b.lookup(jobID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		events: make(chan domain.ProgressEvent, b.bufSize),
		ch:     ch,
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.last != nil {
		sub.events <- *ch.last
	}
	if ch.closed {
		sub.done = true
		close(sub.events)
		return sub, nil
	}
	ch.subs[sub] = struct{}{}
	return sub, nil
}

// Publish delivers ev to every current subscriber without blocking.
// A terminal event closes the channel after delivery; anything published
// afterwards is rejected with ErrChannelClosed.
func (b *Broadcaster) Publish(jobID string, ev domain.ProgressEvent) error {
	ch, err := b.lookup(jobID)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return ErrChannelClosed
	}
	cp := ev
	ch.last = &cp
	for sub := range ch.subs {
		sub.deliver(ev)
	}
	if ev.IsTerminal() {
		ch.closeLocked()
	}
	return nil
}

// Close ends every subscriber stream. Later subscribers get the last
// buffered event and then end of stream. Closing twice is a no-op.
func (b *Broadcaster) Close(jobID string) error {
	ch, err := b.lookup(jobID)
	if err != nil {
		return err
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closeLocked()
	return nil
}

// Remove closes and forgets the channel for jobID.
func (b *Broadcaster) Remove(jobID string) {
	b.mu.Lock()
	ch, ok := b.channels[jobID]
	delete(b.channels, jobID)
	b.mu.Unlock()
	if !ok {
		return
	}
	ch.mu.Lock()
	ch.closeLocked()
	ch.mu.Unlock()
}

// Last returns the most recent event published for jobID.
func (b *Broadcaster) Last(jobID string) (domain.ProgressEvent, bool) {
	ch, err := b.lookup(jobID)
	if err != nil {
		return domain.ProgressEvent{}, false
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.last == nil {
		return domain.ProgressEvent{}, false
	}
	return *ch.last, true
}

// Len returns the number of live channels.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels)
}

func (ch *channel) closeLocked() {
	if ch.closed {
		return
	}
	ch.closed = true
	for sub := range ch.subs {
		sub.done = true
		close(sub.events)
	}
	ch.subs = nil
}

// Subscription is one observer's view of a job's progress.
type Subscription struct {
	events  chan domain.ProgressEvent
	ch      *channel
	done    bool // guarded by ch.mu
	dropped atomic.Int64
}

// Events returns the stream. It is closed after the terminal event or when
// the subscription is closed.
func (s *Subscription) Events() <-chan domain.ProgressEvent {
	return s.events
}

// Dropped returns how many events were discarded because the reader fell behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	delete(s.ch.subs, s)
	close(s.events)
}

// deliver enqueues ev, evicting the oldest buffered events until it fits.
// Called with ch.mu held, so this is the only sender.
func (s *Subscription) deliver(ev domain.ProgressEvent) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			s.dropped.Add(1)
		default:
		}
	}
}
