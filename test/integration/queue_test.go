//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synapse/internal/queue"
)

func queueTransport(t *testing.T) *queue.Transport {
	t.Helper()
	_ = godotenv.Load("../../.env")

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("Skipping integration test: NATS_URL not set")
	}

	tr, err := queue.Connect(url)
	require.NoError(t, err)
	return tr
}

func TestQueueRoundTrip(t *testing.T) {
	tr := queueTransport(t)
	defer tr.Close()
	ctx := context.Background()

	name := fmt.Sprintf("itest-%d", time.Now().UnixNano()%1_000_000)
	require.NoError(t, tr.Ensure(ctx, name))

	require.NoError(t, tr.Push(ctx, name, []byte("first")))
	require.NoError(t, tr.Push(ctx, name, []byte("second")))

	depth, err := tr.Depth(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), depth)

	// FIFO order, consumed exactly once.
	msg, err := tr.Pop(ctx, name, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", string(msg))

	msg, err = tr.Pop(ctx, name, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(msg))
}

func TestQueuePopTimeout(t *testing.T) {
	tr := queueTransport(t)
	defer tr.Close()
	ctx := context.Background()

	name := fmt.Sprintf("itest-empty-%d", time.Now().UnixNano()%1_000_000)
	require.NoError(t, tr.Ensure(ctx, name))

	start := time.Now()
	msg, err := tr.Pop(ctx, name, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "an empty queue yields (nil, nil) after the wait")
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestQueueUnknownName(t *testing.T) {
	tr := queueTransport(t)
	defer tr.Close()

	_, err := tr.Pop(context.Background(), "never-ensured", 100*time.Millisecond)
	assert.Error(t, err)
	_, err = tr.Depth(context.Background(), "never-ensured")
	assert.Error(t, err)
}
