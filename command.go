// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// MaxAttempts bounds the number of sends of one command.
const MaxAttempts = 5

// Result is the outcome of a command exchange.
type Result struct {
	Sent     bool        // the command was handed to the socket
	Reply    interface{} // decoded reply, when the pattern expects one
	Attempts int         // sends tried
}

// SendCommand sends the named command with the extra fields and, for
// patterns expecting one, returns the decoded reply.
//
// Send failures are retried up to MaxAttempts times. Benign timeouts are
// retried silently, other transport errors reconnect the socket (in connect
// mode only). Once retries are exhausted, SendCommand returns an error
// wrapping ErrRetriesExhausted.
func (c *Client) SendCommand(ctx context.Context, name string, fields map[string]interface{}, format envelope.Format) (Result, error) {
	env := envelope.TaggedCommand(c.cfg.commandTag, name, fields)
	c.log.Info().Str("command", name).Fields(map[string]interface{}(env)).Msg("command")

	payload, err := format.Codec().Marshal(env)
	if err != nil {
		return Result{}, errors.Wrapf(err, "zipc: could not encode command %q", name)
	}

	var msg zmq4.Msg
	switch format {
	case envelope.JSON:
		// empty leading frame keeps multipart receivers symmetric with the
		// binary path.
		msg = zmq4.NewMsgFrom([]byte{}, payload)
	default:
		msg = zmq4.NewMsg(payload)
	}
	return c.exchangeRetry(ctx, msg, name)
}

// SendControl sends a legacy acquisition control command.
func (c *Client) SendControl(ctx context.Context, cmd envelope.CommandType, name string) error {
	payload, err := envelope.JSON.Codec().Marshal(envelope.Control(cmd, name))
	if err != nil {
		return err
	}
	_, _, err = c.exchange(ctx, zmq4.NewMsg(payload))
	if err != nil {
		c.b.heal(err, "control")
		return errors.Wrapf(err, "zipc: could not send %v", cmd)
	}
	return nil
}

func (c *Client) exchangeRetry(ctx context.Context, msg zmq4.Msg, name string) (Result, error) {
	var (
		res  Result
		last error
	)
	for res.Attempts < MaxAttempts {
		res.Attempts++

		reply, replied, err := c.exchange(ctx, msg)
		if err == nil {
			res.Sent = true
			if !replied {
				return res, nil
			}
			v, err := decodeReply(reply)
			res.Reply = v
			if err == nil {
				c.log.Info().Str("command", name).Interface("reply", v).Msg("answer")
			}
			return res, err
		}

		last = err
		switch {
		case ctx.Err() != nil:
			return Result{Attempts: res.Attempts}, ctx.Err()
		case errors.Is(err, ErrClosed):
			return Result{Attempts: res.Attempts}, err
		case IsBenign(err):
			continue
		}

		c.log.Error().Err(err).Str("command", name).Int("attempt", res.Attempts).Msg("transport failure")
		if !c.ep.Bind {
			if rerr := c.b.Reconnect(); rerr != nil {
				c.log.Error().Err(rerr).Msg("could not reconnect")
			}
		}
		if res.Attempts == 1 || res.Attempts == MaxAttempts {
			continue
		}
		if err := sleep(ctx, c.cfg.backoff.Delay(res.Attempts-1)); err != nil {
			return Result{Attempts: res.Attempts}, err
		}
	}
	return Result{Attempts: res.Attempts}, errors.Wrapf(ErrRetriesExhausted,
		"zipc: command %q not sent after %d attempts: %v", name, res.Attempts, last,
	)
}

// decodeReply decodes the last frame of a reply: a failure acknowledgement,
// a msgpack value or a JSON value.
func decodeReply(reply zmq4.Msg) (interface{}, error) {
	if len(reply.Frames) == 0 {
		return nil, nil
	}
	raw := reply.Frames[len(reply.Frames)-1]
	if perr, ok := ParseFailure(raw); ok {
		return nil, perr
	}
	v, err := envelope.Msgpack.Codec().UnmarshalValue(raw)
	if err == nil {
		return v, nil
	}
	if v, jerr := envelope.JSON.Codec().UnmarshalValue(raw); jerr == nil {
		return v, nil
	}
	return raw, errors.Wrap(err, "zipc: could not decode reply")
}
