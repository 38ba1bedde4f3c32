// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"runtime"
	"time"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

const (
	defaultReply = "OK"
	loopPause    = time.Millisecond
)

// Serve receives messages and dispatches them to r until ctx is done.
//
// Part 0 of every message is decoded with format; part 1 is attached as
// "data" and part 2 as "base64". Messages that can't be decoded are dumped
// to the diagnostics directory and skipped. When the socket pattern expects
// a reply, every dispatched message gets exactly one: the handler result or
// a failure acknowledgement.
//
// Serve does not close the client. It returns ctx.Err() once ctx is done,
// or ErrClosed if the client is closed under it.
//
// Serve and direct exchanges must not share a PAIR client: both receive
// from the same socket.
func (c *Client) Serve(ctx context.Context, r *Router, format envelope.Format) error {
	if !canRecv(c.ep.Type) {
		return errors.Wrapf(errNoRecv, "zipc: serve on %s socket", c.ep.Type)
	}
	codec := format.Codec()

	for {
		runtime.Gosched()
		if err := sleep(ctx, loopPause); err != nil {
			return err
		}

		msg, err := c.b.Recv(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrClosed):
			return err
		case IsBenign(err):
			continue
		default:
			c.b.heal(err, "recv")
			continue
		}

		c.handle(ctx, r, codec, msg)
	}
}

func (c *Client) handle(ctx context.Context, r *Router, codec envelope.Codec, msg zmq4.Msg) {
	if len(msg.Frames) == 0 {
		return
	}
	raw := msg.Frames[0]
	env, err := codec.Unmarshal(raw)
	if err != nil {
		name := DumpMalformed
		if errors.Is(err, envelope.ErrUnhashableKey) {
			name = DumpUnhashable
		}
		c.log.Error().Err(err).Int("bytes", len(raw)).Str("dump", name).Msg("could not decode message")
		c.dump(name, raw)
		return
	}
	if len(msg.Frames) > 1 {
		env[envelope.KeyData] = msg.Frames[1]
	}
	if len(msg.Frames) > 2 {
		env[envelope.KeyBase64] = msg.Frames[2]
	}

	req := &Request{
		Envelope: env,
		Frames:   msg.Frames,
		peer:     c.ep.PeerID,
	}

	var (
		result interface{}
		owed   = c.ep.ExpectsReply()
	)
	rt, ok, err := r.match(env)
	switch {
	case err != nil:
	case !ok:
		c.log.Warn().Strs("keys", env.Keys()).Msg("no handler for message")
	default:
		req.Key = rt.key
		result, err = c.dispatch(ctx, rt, req)
	}

	if err != nil {
		c.log.Error().Stack().Err(err).Str("key", req.Key).Msg("could not process message")
		c.dump(DumpFailed, raw)
		if owed {
			c.reply(ctx, []byte(failurePrefix+err.Error()))
		}
		return
	}
	if !owed {
		return
	}

	var payload []byte
	switch v := result.(type) {
	case []byte:
		payload = v
	case nil:
		payload, err = envelope.Marshal(defaultReply)
	default:
		payload, err = envelope.Marshal(v)
	}
	if err != nil {
		err = errors.Wrapf(err, "zipc: could not encode %q reply", req.Key)
		c.log.Error().Err(err).Msg("could not process message")
		payload = []byte(failurePrefix + err.Error())
	}
	c.reply(ctx, payload)
}

// dispatch runs the handler of rt, turning panics into errors.
func (c *Client) dispatch(ctx context.Context, rt route, req *Request) (result interface{}, err error) {
	defer func() {
		if e := recover(); e != nil {
			result = nil
			err = errors.Errorf("zipc: handler %q panicked: %v", rt.key, e)
		}
	}()

	start := time.Now()
	result, err = rt.h.ServeMessage(ctx, req)
	c.log.Debug().Str("key", rt.key).Dur("elapsed", time.Since(start)).Msg("handled message")
	if err != nil {
		err = errors.Wrapf(err, "handler %q", rt.key)
	}
	return result, err
}

func (c *Client) reply(ctx context.Context, payload []byte) {
	err := c.b.Send(ctx, zmq4.NewMsg(payload))
	switch {
	case err == nil:
	case IsBenign(err):
		c.log.Debug().Err(err).Msg("reply dropped")
	default:
		c.b.heal(err, "reply")
	}
}
