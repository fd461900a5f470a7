package server

import (
	"context"
	"log"
	"sync"

	"github.com/pulseloop/pulseloop/internal/conversation"
	"github.com/pulseloop/pulseloop/internal/platform"
)

// SyncDispatcher runs orchestrator turns inline with the webhook request.
// A processing failure propagates to the handler, which answers 500 so the
// platform's own webhook retry re-triggers the turn.
type SyncDispatcher struct {
	Orchestrator *conversation.Orchestrator
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, msg platform.InboundMessage) error {
	return d.Orchestrator.HandleInboundMessage(ctx, msg)
}

// AsyncDispatcher decouples webhook ingress latency from LLM latency with a
// buffered in-process queue. Delivery becomes at-least-once from the
// platform's perspective: the event is acknowledged on enqueue and a failed
// turn is logged, relying on idempotent turn processing.
type AsyncDispatcher struct {
	orchestrator *conversation.Orchestrator
	queue        chan platform.InboundMessage
	wg           sync.WaitGroup
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewAsyncDispatcher creates a dispatcher with the given queue depth and
// worker count and starts its workers.
func NewAsyncDispatcher(orc *conversation.Orchestrator, depth, workers int) *AsyncDispatcher {
	d := &AsyncDispatcher{
		orchestrator: orc,
		queue:        make(chan platform.InboundMessage, depth),
		stop:         make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, msg platform.InboundMessage) error {
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.queue:
			if err := d.orchestrator.HandleInboundMessage(context.Background(), msg); err != nil {
				log.Printf("server: async turn failed for %s message %s: %v", msg.Platform, msg.MessageID, err)
			}
		case <-d.stop:
			return
		}
	}
}

// Close stops the workers; queued messages not yet picked up are dropped.
func (d *AsyncDispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}
