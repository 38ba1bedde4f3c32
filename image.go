// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zipc/raster"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// imageMsg frames a raw image: header then pixels, or the reverse with
// WithPixelsFirst.
func (c *Client) imageMsg(r *raster.Raster, meta map[string]interface{}, format envelope.Format) (zmq4.Msg, error) {
	hdr, err := raster.Encode(r, meta)
	if err != nil {
		return zmq4.Msg{}, err
	}
	payload, err := format.Codec().Marshal(hdr)
	if err != nil {
		return zmq4.Msg{}, errors.Wrap(err, "zipc: could not encode image header")
	}
	if c.cfg.pixelsFirst {
		return zmq4.NewMsgFrom(r.Pix, payload), nil
	}
	return zmq4.NewMsgFrom(payload, r.Pix), nil
}

// SendImage sends a raw image as a two-part message and returns the reply
// frames, if the pattern expects a reply.
// With queued sending the image is enqueued at PriorityDefault instead and
// SendImage returns without waiting.
func (c *Client) SendImage(ctx context.Context, r *raster.Raster, meta map[string]interface{}, format envelope.Format) ([][]byte, error) {
	msg, err := c.imageMsg(r, meta, format)
	if err != nil {
		return nil, err
	}
	if c.queue != nil {
		c.Enqueue(msg, PriorityDefault)
		return nil, nil
	}

	reply, replied, err := c.exchange(ctx, msg)
	if err != nil {
		c.b.heal(err, "send image")
		return nil, err
	}
	if !replied {
		return nil, nil
	}
	return reply.Frames, nil
}

// EnqueueImage queues a raw image with the given priority.
func (c *Client) EnqueueImage(r *raster.Raster, meta map[string]interface{}, format envelope.Format, prio int) (*Pending, error) {
	msg, err := c.imageMsg(r, meta, format)
	if err != nil {
		return nil, err
	}
	return c.Enqueue(msg, prio), nil
}

// SendImageEncoded sends an already compressed image embedded in its
// envelope. It preempts every other queued message (PriorityUrgent).
// Without a send queue, the image is sent directly and the returned Pending
// is already complete.
func (c *Client) SendImageEncoded(ctx context.Context, data []byte, shape raster.Shape, meta map[string]interface{}) (*Pending, error) {
	env, err := raster.EncodeCompressed(data, shape, raster.JPG, meta)
	if err != nil {
		return nil, err
	}
	payload, err := envelope.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "zipc: could not encode image")
	}
	msg := zmq4.NewMsg(payload)

	if c.queue != nil {
		return c.Enqueue(msg, PriorityUrgent), nil
	}

	p := newPending()
	_, _, err = c.exchange(ctx, msg)
	if err != nil {
		c.b.heal(err, "send encoded image")
	}
	p.complete(err)
	return p, nil
}
