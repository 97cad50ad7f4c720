package client

import "sync"

// SampleQueue is an unbounded FIFO of sample blocks, safe for any number of
// producers and consumers.
type SampleQueue struct {
	mu     sync.Mutex
	blocks [][]int16
	head   []int16 // partially consumed front block, used by Fill
}

// NewSampleQueue returns an empty queue.
func NewSampleQueue() *SampleQueue {
	return &SampleQueue{}
}

// Push appends a copy of block. Empty blocks are ignored.
func (q *SampleQueue) Push(block []int16) {
	if len(block) == 0 {
		return
	}
	cp := make([]int16, len(block))
	copy(cp, block)

	q.mu.Lock()
	q.blocks = append(q.blocks, cp)
	q.mu.Unlock()
}

// Pop removes the oldest block.
func (q *SampleQueue) Pop() ([]int16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.head) > 0 {
		b := q.head
		q.head = nil
		return b, true
	}
	if len(q.blocks) == 0 {
		return nil, false
	}
	b := q.blocks[0]
	q.blocks[0] = nil
	q.blocks = q.blocks[1:]
	return b, true
}

// Fill copies queued samples into out across block boundaries and returns
// how many were written. The rest of out is left untouched.
func (q *SampleQueue) Fill(out []int16) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(out) {
		if len(q.head) == 0 {
			if len(q.blocks) == 0 {
				break
			}
			q.head = q.blocks[0]
			q.blocks[0] = nil
			q.blocks = q.blocks[1:]
		}
		c := copy(out[n:], q.head)
		q.head = q.head[c:]
		n += c
	}
	return n
}

// Len returns the number of queued samples.
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.head)
	for _, b := range q.blocks {
		n += len(b)
	}
	return n
}

// Drain removes every queued block and returns them concatenated.
func (q *SampleQueue) Drain() []int16 {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.head)
	for _, b := range q.blocks {
		n += len(b)
	}
	out := make([]int16, 0, n)
	out = append(out, q.head...)
	for _, b := range q.blocks {
		out = append(out, b...)
	}
	q.head, q.blocks = nil, nil
	return out
}
