// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"container/heap"
	"context"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// Send priorities. Lower values are sent first.
const (
	PriorityUrgent  = 0
	PriorityDefault = 1
)

// Pending is the completion handle of a queued message.
// It is completed exactly once, after the send attempt.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func failedPending(err error) *Pending {
	p := newPending()
	p.complete(err)
	return p
}

func (p *Pending) complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the message was handed to the socket or dropped.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome of the send attempt. It must only be called
// after Done is closed.
func (p *Pending) Err() error { return p.err }

// Wait blocks until the send attempt completed or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queueItem struct {
	prio    int
	seq     uint64
	msg     zmq4.Msg
	pending *Pending
}

type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio < h[j].prio
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(*queueItem)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // remove ref to popped element
	*h = old[:n-1]
	return it
}

// sendQueue is an unbounded priority queue, FIFO among equal priorities.
// Push never blocks; pop blocks until an item is available.
type sendQueue struct {
	mu    sync.Mutex
	items itemHeap
	seq   uint64
	ready chan struct{}
	err   error // set by drain; later pushes fail with it
}

func newSendQueue() *sendQueue {
	return &sendQueue{ready: make(chan struct{}, 1)}
}

func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *sendQueue) push(prio int, msg zmq4.Msg) *Pending {
	it := &queueItem{prio: prio, msg: msg, pending: newPending()}
	q.mu.Lock()
	if q.err != nil {
		err := q.err
		q.mu.Unlock()
		return failedPending(err)
	}
	it.seq = q.seq
	q.seq++
	heap.Push(&q.items, it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return it.pending
}

func (q *sendQueue) tryPop() (*queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*queueItem), true
}

func (q *sendQueue) pop(ctx context.Context) (*queueItem, error) {
	for {
		if it, ok := q.tryPop(); ok {
			return it, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// drain completes every queued item with err and closes the queue.
func (q *sendQueue) drain(err error) int {
	q.mu.Lock()
	q.err = err
	items := q.items
	q.items = nil
	q.mu.Unlock()

	n := len(items)
	for len(items) > 0 {
		heap.Pop(&items).(*queueItem).pending.complete(err)
	}
	return n
}
