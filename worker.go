// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
)

// runWorker drains the send queue until ctx is done.
// Sends are at-most-once: a failed item is never requeued.
func (c *Client) runWorker(ctx context.Context) error {
	defer func() {
		if n := c.queue.drain(ErrClosed); n > 0 {
			c.log.Warn().Int("messages", n).Msg("dropped queued messages")
		}
	}()

	for {
		it, err := c.queue.pop(ctx)
		if err != nil {
			return nil
		}
		c.deliver(ctx, it)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) deliver(ctx context.Context, it *queueItem) {
	_, _, err := c.exchange(ctx, it.msg)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		c.log.Error().Int("priority", it.prio).Msg("canceled sending")
		err = ctx.Err()
	case IsBenign(err):
		c.log.Debug().Err(err).Int("priority", it.prio).Msg("queued message dropped")
	default:
		c.b.heal(err, "queued send")
	}
	it.pending.complete(err)
}
