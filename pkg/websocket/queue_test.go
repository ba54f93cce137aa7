package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutboundQueueControlJumpsAheadOfData(t *testing.T) {
	q := newOutboundQueue(0)
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpText}, priority: priorityData}))
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpPing}, priority: priorityControl}))

	first, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, OpPing, first.frame.Opcode)

	second, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, OpText, second.frame.Opcode)
}

func TestOutboundQueuePreservesControlRelativeOrder(t *testing.T) {
	q := newOutboundQueue(0)
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpPing, Payload: []byte("1")}, priority: priorityControl}))
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpText}, priority: priorityData}))
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpPong, Payload: []byte("2")}, priority: priorityControl}))

	first, _ := q.Dequeue()
	second, _ := q.Dequeue()
	third, _ := q.Dequeue()
	require.Equal(t, "1", string(first.frame.Payload))
	require.Equal(t, "2", string(second.frame.Payload))
	require.Equal(t, OpText, third.frame.Opcode)
}

func TestOutboundQueueRejectsAfterCloseSent(t *testing.T) {
	q := newOutboundQueue(0)
	q.MarkCloseSent()
	err := q.Enqueue(queuedFrame{frame: Frame{Opcode: OpText}, priority: priorityData})
	require.ErrorIs(t, err, ErrFrameUnsent)
}

func TestOutboundQueueBackPressureBlocksThenUnblocks(t *testing.T) {
	q := newOutboundQueue(1)
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpText}, priority: priorityData}))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(queuedFrame{frame: Frame{Opcode: OpBinary}, priority: priorityData})
	}()

	select {
	case <-done:
		t.Fatal("Enqueue() returned before space freed up")
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := q.Dequeue()
	require.True(t, ok)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Enqueue() did not unblock after Dequeue freed capacity")
	}
}

func TestOutboundQueueDequeueStopsWhenRequested(t *testing.T) {
	q := newOutboundQueue(0)
	q.RequestStop()
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestOutboundQueueDrainNotifiesUnsent(t *testing.T) {
	q := newOutboundQueue(0)
	done := make(chan error, 1)
	require.NoError(t, q.Enqueue(queuedFrame{frame: Frame{Opcode: OpText}, priority: priorityData, done: done}))

	drained := q.Drain()
	require.Len(t, drained, 1)
	for _, qf := range drained {
		if qf.done != nil {
			qf.done <- ErrFrameUnsent
		}
	}
	require.ErrorIs(t, <-done, ErrFrameUnsent)
}
