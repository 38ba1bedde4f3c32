// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

func makeMsg(i int) zmq4.Msg {
	return zmq4.NewMsgString(strconv.Itoa(i))
}

func TestQueue(t *testing.T) {
	q := newSendQueue()
	if q.Len() != 0 {
		t.Fatal("queue should be empty")
	}
	if _, ok := q.tryPop(); ok {
		t.Fatal("queue should be empty")
	}

	q.push(PriorityDefault, makeMsg(1))
	if q.Len() != 1 {
		t.Fatal("queue should contain 1 element")
	}
	q.push(PriorityUrgent, makeMsg(2))
	if q.Len() != 2 {
		t.Fatal("queue should contain 2 elements")
	}

	it, ok := q.tryPop()
	if !ok || string(it.msg.Frames[0]) != "2" {
		t.Fatal("urgent message should come first")
	}
	it, ok = q.tryPop()
	if !ok || string(it.msg.Frames[0]) != "1" {
		t.Fatal("unexpected value in queue")
	}
	if q.Len() != 0 {
		t.Fatal("queue should be empty")
	}
}

func TestQueueOrder(t *testing.T) {
	q := newSendQueue()
	for i, prio := range []int{3, 1, 2, 1} {
		q.push(prio, makeMsg(i))
	}

	var (
		prios []int
		ids   []string
	)
	for q.Len() > 0 {
		it, err := q.pop(context.Background())
		if err != nil {
			t.Fatalf("could not pop: %+v", err)
		}
		prios = append(prios, it.prio)
		ids = append(ids, string(it.msg.Frames[0]))
	}

	if got, want := prios, []int{1, 1, 2, 3}; !equalInts(got, want) {
		t.Fatalf("invalid order: got=%v, want=%v", got, want)
	}
	// ties keep insertion order
	if got, want := ids, []string{"1", "3", "2", "0"}; !equalStrings(got, want) {
		t.Fatalf("invalid order: got=%v, want=%v", got, want)
	}
}

func TestQueueFIFOLarge(t *testing.T) {
	const n = 2000
	q := newSendQueue()
	for i := 0; i < n; i++ {
		q.push(PriorityDefault, makeMsg(i))
	}
	for i := 0; i < n; i++ {
		it, ok := q.tryPop()
		if !ok {
			t.Fatalf("queue exhausted after %d elements", i)
		}
		if got, want := string(it.msg.Frames[0]), strconv.Itoa(i); got != want {
			t.Fatalf("invalid element %d: got=%q", i, got)
		}
	}
}

func TestQueuePopBlocks(t *testing.T) {
	q := newSendQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := q.pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pop on an empty queue should block until the deadline: %+v", err)
	}

	got := make(chan *queueItem)
	go func() {
		it, _ := q.pop(context.Background())
		got <- it
	}()
	time.Sleep(10 * time.Millisecond)
	q.push(PriorityDefault, makeMsg(7))

	select {
	case it := <-got:
		if string(it.msg.Frames[0]) != "7" {
			t.Fatalf("unexpected value: %v", it.msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pop did not wake up")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perProd   = 100
	)
	q := newSendQueue()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				q.push(p%3, makeMsg(i))
			}
		}(p)
	}
	wg.Wait()

	if got, want := q.Len(), producers*perProd; got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}
	last := -1
	for q.Len() > 0 {
		it, _ := q.tryPop()
		if it.prio < last {
			t.Fatalf("priority went backwards: %d after %d", it.prio, last)
		}
		last = it.prio
	}
}

func TestQueueDrain(t *testing.T) {
	q := newSendQueue()
	p1 := q.push(PriorityDefault, makeMsg(1))
	p2 := q.push(PriorityUrgent, makeMsg(2))

	if n := q.drain(ErrClosed); n != 2 {
		t.Fatalf("invalid number of drained items: %d", n)
	}
	for _, p := range []*Pending{p1, p2} {
		select {
		case <-p.Done():
		default:
			t.Fatalf("drained item was not completed")
		}
		if !errors.Is(p.Err(), ErrClosed) {
			t.Fatalf("invalid error: %+v", p.Err())
		}
	}

	p3 := q.push(PriorityDefault, makeMsg(3))
	if !errors.Is(p3.Err(), ErrClosed) || q.Len() != 0 {
		t.Fatalf("push after drain: err=%+v, len=%d", p3.Err(), q.Len())
	}
}

func TestPendingCompletesOnce(t *testing.T) {
	p := newPending()
	p.complete(nil)
	p.complete(ErrClosed)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first outcome must win: %+v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
