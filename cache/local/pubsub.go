package local

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

// subscription is one Subscribe call: a single delivery channel that may be
// fed by several combat channels, with an idempotent teardown.
type subscription struct {
	ch   chan *LocalMessage
	once sync.Once
}

// LocalPubSub fans combat events out to in-process subscribers. Delivery is
// best-effort: a spectator stream that cannot keep up loses messages rather
// than stalling attack resolution for everyone else.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	bufSize int
	dropped atomic.Uint64
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string]map[*subscription]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers the message to every subscriber of the channel. Never
// blocks; a full subscriber buffer counts a drop instead.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for sub := range ps.subs[channel] {
		select {
		case sub.ch <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Dropped reports how many messages were lost to full subscriber buffers.
func (ps *LocalPubSub) Dropped() uint64 {
	return ps.dropped.Load()
}

// Subscribe registers for one or more channels. All subscribed channels
// feed the same delivery channel; cancel is idempotent and closes it.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	sub := &subscription{ch: make(chan *LocalMessage, ps.bufSize)}

	ps.mu.Lock()
	for _, c := range channels {
		set := ps.subs[c]
		if set == nil {
			set = make(map[*subscription]struct{})
			ps.subs[c] = set
		}
		set[sub] = struct{}{}
	}
	ps.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			ps.mu.Lock()
			for _, c := range channels {
				delete(ps.subs[c], sub)
				if len(ps.subs[c]) == 0 {
					delete(ps.subs, c)
				}
			}
			ps.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel, nil
}
