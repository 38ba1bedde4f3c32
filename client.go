// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Client exchanges commands and images with a peer over one Binding.
//
// Direct sends (Send, SendCommand, SendImage without queue) are serialized
// with the reply that follows them. With Endpoint.Queued, a send worker
// drains a priority queue fed by Enqueue and the image helpers.
type Client struct {
	ep  Endpoint
	cfg config
	log zerolog.Logger
	b   *Binding

	mu sync.Mutex // exchange lock: one send/reply pair at a time

	queue  *sendQueue
	ctx    context.Context // life-line of the send worker
	cancel context.CancelFunc
	grp    *errgroup.Group
	once   sync.Once
}

// New opens ep and, when ep.Queued is set, starts the send worker.
func New(ctx context.Context, ep Endpoint, opts ...Option) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := newConfig(opts...)
	b, err := openBinding(ctx, ep, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	grp, ctx := errgroup.WithContext(ctx)
	c := &Client{
		ep:     ep,
		cfg:    cfg,
		log:    b.log,
		b:      b,
		ctx:    ctx,
		cancel: cancel,
		grp:    grp,
	}
	if ep.Queued {
		c.queue = newSendQueue()
		grp.Go(func() error {
			return c.runWorker(ctx)
		})
	}
	return c, nil
}

// Binding returns the transport binding of the client.
func (c *Client) Binding() *Binding { return c.b }

// Endpoint returns the configuration of the client.
func (c *Client) Endpoint() Endpoint { return c.ep }

// Close stops the send worker and closes the socket.
// Messages still queued are completed with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		if e := c.grp.Wait(); e != nil {
			c.log.Debug().Err(e).Msg("send worker")
		}
		err = c.b.Close()
	})
	return err
}

// Enqueue hands msg to the send worker. Enqueue never blocks.
func (c *Client) Enqueue(msg zmq4.Msg, prio int) *Pending {
	if c.queue == nil {
		return failedPending(ErrNoQueue)
	}
	if c.ctx.Err() != nil {
		return failedPending(ErrClosed)
	}
	return c.queue.push(prio, msg)
}

// EnqueueBytes hands a single-frame message to the send worker.
func (c *Client) EnqueueBytes(payload []byte, prio int) *Pending {
	return c.Enqueue(zmq4.NewMsg(payload), prio)
}

// exchange performs one locked send and the reply wait that follows it.
func (c *Client) exchange(ctx context.Context, msg zmq4.Msg) (zmq4.Msg, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.Exchange(ctx, msg)
}

// Send sends the frames as one message and returns the reply frames when the
// socket pattern expects a reply.
func (c *Client) Send(ctx context.Context, frames ...[]byte) ([][]byte, error) {
	reply, replied, err := c.exchange(ctx, zmq4.NewMsgFrom(frames...))
	if err != nil {
		c.b.heal(err, "send")
		return nil, err
	}
	c.log.Debug().Int("parts", len(frames)).Msg("sent message")
	if !replied {
		return nil, nil
	}
	return reply.Frames, nil
}

// SendString sends s as a single-frame message.
func (c *Client) SendString(ctx context.Context, s string) ([][]byte, error) {
	return c.Send(ctx, []byte(s))
}
