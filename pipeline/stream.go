package pipeline

import "sync"

// ChunkEvent is one streamed update published by a running pipeline
// (spec.md §4.6 / §5: "streaming surfaces intermediate stage output as
// it is produced, not just the final value").
type ChunkEvent struct {
	PipelineID string
	StageIndex int
	Text       string
	Final      bool // last chunk for this stage
	Complete   bool // pipeline finished
}

// StreamBus fans out ChunkEvents to every subscriber registered before
// or during a pipeline run. Grounded on the
// runtime/execution/streamscrub fan-out channel pattern, narrowed to a
// single event type instead of a scrub-token stream.
type StreamBus struct {
	mu   sync.Mutex
	subs []chan ChunkEvent
}

// NewStreamBus creates an empty bus.
func NewStreamBus() *StreamBus {
	return &StreamBus{}
}

// Subscribe registers a new listener and returns its channel. Callers
// should drain the channel until Unsubscribe: Publish never blocks, so
// events published while this channel's buffer is full are dropped for
// this subscriber.
func (b *StreamBus) Subscribe(buffer int) (<-chan ChunkEvent, func()) {
	ch := make(chan ChunkEvent, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish sends ev to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the pipeline.
func (b *StreamBus) Publish(ev ChunkEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts down every subscriber channel.
func (b *StreamBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
