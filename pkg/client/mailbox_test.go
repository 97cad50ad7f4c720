package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
)

func TestMailboxPairsOneResponse(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Open(protocol.ActionWhisper))
	assert.ErrorIs(t, m.Open(protocol.ActionLogin), ErrRequestInFlight)
	assert.Equal(t, protocol.ActionWhisper, m.Pending())

	assert.False(t, m.Deliver(&protocol.Response{Action: protocol.ActionCallData}), "other action")

	want := &protocol.Response{Action: protocol.ActionWhisper, Status: model.StatusUserNotConnected}
	go func() {
		time.Sleep(5 * time.Millisecond)
		m.Deliver(want)
	}()
	got, err := m.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.EqualValues(t, 1, m.Arrivals())
	assert.Empty(t, m.Pending())

	assert.False(t, m.Deliver(want), "slot is idle")
}

func TestMailboxEarlyDelivery(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Open(protocol.ActionLogin))
	resp := &protocol.Response{Action: protocol.ActionLogin}
	require.True(t, m.Deliver(resp))
	assert.False(t, m.Deliver(resp), "duplicate before Wait")

	got, err := m.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, resp, got)
}

func TestMailboxCancelled(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Open(protocol.ActionLogin))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Empty(t, m.Pending(), "slot released")
	assert.False(t, m.Deliver(&protocol.Response{Action: protocol.ActionLogin}), "late response is unpaired")
	assert.NoError(t, m.Open(protocol.ActionLogout))
	m.Cancel()
	assert.Empty(t, m.Pending())
}

func TestMailboxClose(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Open(protocol.ActionLogin))

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = m.Wait(context.Background())
	}()
	time.Sleep(5 * time.Millisecond)
	m.Close()
	wg.Wait()

	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Open(protocol.ActionLogin), ErrClosed)
}

func TestSampleQueue(t *testing.T) {
	q := NewSampleQueue()
	src := []int16{1, 2, 3}
	q.Push(src)
	q.Push(nil)
	q.Push([]int16{4, 5})
	src[0] = 99
	assert.Equal(t, 5, q.Len())

	b, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, []int16{1, 2, 3}, b, "push copies")

	q.Push([]int16{6, 7, 8})
	out := make([]int16, 4)
	assert.Equal(t, 4, q.Fill(out))
	assert.Equal(t, []int16{4, 5, 6, 7}, out)
	assert.Equal(t, 1, q.Len())

	out = []int16{-1, -1, -1}
	assert.Equal(t, 1, q.Fill(out))
	assert.Equal(t, []int16{8, -1, -1}, out, "rest untouched")

	_, ok = q.Pop()
	assert.False(t, ok)

	q.Push([]int16{1, 2})
	q.Push([]int16{3})
	out = make([]int16, 1)
	q.Fill(out)
	assert.Equal(t, []int16{2, 3}, q.Drain())
	assert.Zero(t, q.Len())
}

func TestSampleQueueConcurrent(t *testing.T) {
	q := NewSampleQueue()
	const producers, blocks = 4, 200

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range blocks {
				q.Push([]int16{int16(p), int16(i)})
			}
		}()
	}

	got := make(map[int16][]int16)
	received := 0
	deadline := time.Now().Add(5 * time.Second)
	for received < producers*blocks && time.Now().Before(deadline) {
		b, ok := q.Pop()
		if !ok {
			time.Sleep(time.Microsecond)
			continue
		}
		got[b[0]] = append(got[b[0]], b[1])
		received++
	}
	wg.Wait()

	require.Equal(t, producers*blocks, received)
	want := make([]int16, blocks)
	for i := range want {
		want[i] = int16(i)
	}
	for p := range producers {
		if diff := cmp.Diff(want, got[int16(p)]); diff != "" {
			t.Errorf("producer %d order mismatch (-want +got):\n%s", p, diff)
		}
	}
}
