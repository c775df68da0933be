// Package queue is the durable transport between pipeline stages: ordered,
// at-least-once named queues with push and blocking-pop-with-timeout
// semantics, backed by JetStream work-queue streams.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Transport struct {
	nc *nats.Conn
	js jetstream.JetStream

	mu        sync.Mutex
	consumers map[string]jetstream.Consumer
	streams   map[string]jetstream.Stream
}

func Connect(url string) (*Transport, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	slog.Info("connected to queue transport", "url", url)
	return &Transport{
		nc:        nc,
		js:        js,
		consumers: make(map[string]jetstream.Consumer),
		streams:   make(map[string]jetstream.Stream),
	}, nil
}

func (t *Transport) Close() {
	t.nc.Close()
}

// Ensure creates the durable stream and pull consumer for a queue name.
// Idempotent; called once per queue at startup.
func (t *Transport) Ensure(ctx context.Context, queues ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range queues {
		stream, err := t.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      streamName(name),
			Subjects:  []string{subjectName(name)},
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("ensure stream for queue %q: %w", name, err)
		}
		cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:   streamName(name),
			AckPolicy: jetstream.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("ensure consumer for queue %q: %w", name, err)
		}
		t.streams[name] = stream
		t.consumers[name] = cons
	}
	return nil
}

// Push appends a payload to the named queue.
func (t *Transport) Push(ctx context.Context, queue string, payload []byte) error {
	if _, err := t.js.Publish(ctx, subjectName(queue), payload); err != nil {
		return fmt.Errorf("push to queue %q: %w", queue, err)
	}
	return nil
}

// Pop blocks up to wait for the next payload of the named queue. Returns
// (nil, nil) when the wait elapses with nothing to deliver. The message is
// acked on receipt: per-stage processing is at-most-once by design.
func (t *Transport) Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	t.mu.Lock()
	cons, ok := t.consumers[queue]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("queue %q not ensured", queue)
	}

	batch, err := cons.Fetch(1, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("pop from queue %q: %w", queue, err)
	}

	for msg := range batch.Messages() {
		if err := msg.Ack(); err != nil {
			slog.Warn("failed to ack queue message", "queue", queue, "error", err)
		}
		return msg.Data(), nil
	}
	if err := batch.Error(); err != nil {
		return nil, fmt.Errorf("pop from queue %q: %w", queue, err)
	}
	return nil, nil
}

// Depth reports how many payloads are waiting in the named queue.
func (t *Transport) Depth(ctx context.Context, queue string) (uint64, error) {
	t.mu.Lock()
	stream, ok := t.streams[queue]
	t.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("queue %q not ensured", queue)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("queue %q info: %w", queue, err)
	}
	return info.State.Msgs, nil
}

func streamName(queue string) string {
	return "SYNAPSE_" + strings.ToUpper(strings.ReplaceAll(queue, "-", "_"))
}

func subjectName(queue string) string {
	return "synapse.queue." + queue
}
