// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

func newTestClient(t *testing.T, ep Endpoint, f *fakeFactory, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), ep, testOptions(t, f, opts...)...)
	if err != nil {
		t.Fatalf("could not create client: %+v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := envelope.Marshal(v)
	if err != nil {
		t.Fatalf("could not marshal %v: %+v", v, err)
	}
	return raw
}

func TestSendCommandReply(t *testing.T) {
	f := &fakeFactory{setup: func(fs *fakeSocket) {
		fs.onSend = func(fs *fakeSocket, msg zmq4.Msg) error {
			fs.in <- zmq4.NewMsg(mustMarshal(t, map[string]interface{}{"status": "ok", "exposure": 12}))
			return nil
		}
	}}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req), f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := c.SendCommand(ctx, "start", map[string]interface{}{"exposure": 12, "command": "shadowed"}, envelope.Msgpack)
	if err != nil {
		t.Fatalf("could not send command: %+v", err)
	}
	if !res.Sent || res.Attempts != 1 {
		t.Fatalf("invalid result: %+v", res)
	}
	reply, ok := res.Reply.(envelope.Envelope)
	if !ok {
		t.Fatalf("invalid reply type %T", res.Reply)
	}
	if v, _ := reply.String("status"); v != "ok" {
		t.Fatalf("invalid reply: %v", reply)
	}

	sent := f.last().messages()
	if len(sent) != 1 || len(sent[0].Frames) != 1 {
		t.Fatalf("invalid sent messages: %v", sent)
	}
	env, err := envelope.Unmarshal(sent[0].Frames[0])
	if err != nil {
		t.Fatalf("could not decode command: %+v", err)
	}
	if v, _ := env.String(envelope.KeyCommand); v != "start" {
		t.Fatalf("invalid command name: %v", env)
	}
	if v, _ := env.Int(envelope.KeyType); v != int(envelope.TagCommand) {
		t.Fatalf("invalid command tag: %v", env)
	}
	if v, _ := env.Int("exposure"); v != 12 {
		t.Fatalf("invalid extra field: %v", env)
	}
}

func TestSendCommandTag(t *testing.T) {
	f := &fakeFactory{}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Pub), f, WithCommandTag(9))

	if _, err := c.SendCommand(context.Background(), "start", map[string]interface{}{"type": 1}, envelope.Msgpack); err != nil {
		t.Fatalf("could not send command: %+v", err)
	}
	env, err := envelope.Unmarshal(f.last().next(t).Frames[0])
	if err != nil {
		t.Fatalf("could not decode command: %+v", err)
	}
	if v, _ := env.Int(envelope.KeyType); v != 9 {
		t.Fatalf("invalid command tag: %v", env)
	}
}

func TestSendCommandJSON(t *testing.T) {
	f := &fakeFactory{setup: func(fs *fakeSocket) {
		fs.onSend = replyWith([]byte(`{"status":"ok"}`))
	}}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req), f)

	res, err := c.SendCommand(context.Background(), "stop", nil, envelope.JSON)
	if err != nil {
		t.Fatalf("could not send command: %+v", err)
	}
	if reply, ok := res.Reply.(envelope.Envelope); !ok || !reply.Has("status") {
		t.Fatalf("invalid reply: %#v", res.Reply)
	}

	sent := f.last().messages()[0]
	if got, want := len(sent.Frames), 2; got != want {
		t.Fatalf("invalid number of frames: got=%d, want=%d", got, want)
	}
	if len(sent.Frames[0]) != 0 {
		t.Fatalf("first frame not empty: %q", sent.Frames[0])
	}
	env, err := envelope.JSON.Codec().Unmarshal(sent.Frames[1])
	if err != nil {
		t.Fatalf("could not decode JSON command: %+v", err)
	}
	if v, _ := env.String(envelope.KeyCommand); v != "stop" {
		t.Fatalf("invalid command: %v", env)
	}
}

func TestSendCommandNoReply(t *testing.T) {
	f := &fakeFactory{}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Pub), f)

	res, err := c.SendCommand(context.Background(), "flash", nil, envelope.Msgpack)
	if err != nil {
		t.Fatalf("could not send command: %+v", err)
	}
	if !res.Sent || res.Reply != nil || res.Attempts != 1 {
		t.Fatalf("invalid result: %+v", res)
	}
}

func TestSendCommandPeerFailure(t *testing.T) {
	f := &fakeFactory{setup: func(fs *fakeSocket) {
		fs.onSend = replyWith([]byte(failurePrefix + "unknown command"))
	}}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req), f)

	res, err := c.SendCommand(context.Background(), "dance", nil, envelope.Msgpack)
	var perr *PeerError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a peer error, got %+v", err)
	}
	if perr.Reason != "unknown command" {
		t.Fatalf("invalid reason: %q", perr.Reason)
	}
	if !res.Sent || res.Attempts != 1 {
		t.Fatalf("undecodable replies must not be retried: %+v", res)
	}
}

func TestSendCommandRetries(t *testing.T) {
	for _, tc := range []struct {
		name       string
		bind       bool
		err        error
		reconnects int64
	}{
		{
			name: "benign",
			err:  context.DeadlineExceeded,
		},
		{
			name:       "transport-connect",
			err:        errors.New("broken pipe"),
			reconnects: MaxAttempts,
		},
		{
			name: "transport-bind",
			bind: true,
			err:  errors.New("broken pipe"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFactory{setup: func(fs *fakeSocket) {
				fs.onSend = failWith(tc.err)
			}}
			ep := NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req)
			ep.Bind = tc.bind
			c := newTestClient(t, ep, f)

			res, err := c.SendCommand(context.Background(), "start", nil, envelope.Msgpack)
			if !errors.Is(err, ErrRetriesExhausted) {
				t.Fatalf("expected exhausted retries, got %+v", err)
			}
			if res.Sent || res.Attempts != MaxAttempts {
				t.Fatalf("invalid result: %+v", res)
			}
			if got, want := c.Binding().Reconnects(), tc.reconnects; got != want {
				t.Fatalf("invalid number of reconnects: got=%d, want=%d", got, want)
			}
			socks := f.sockets()
			if got, want := len(socks), int(tc.reconnects)+1; got != want {
				t.Fatalf("invalid number of sockets: got=%d, want=%d", got, want)
			}
			for i, fs := range socks[:len(socks)-1] {
				if n := fs.closes(); n != 1 {
					t.Fatalf("socket %d closed %d times", i, n)
				}
			}
		})
	}
}

func TestSendCommandRecovers(t *testing.T) {
	f := &fakeFactory{}
	f.setup = func(fs *fakeSocket) {
		// the first socket is broken, its replacement works.
		if len(f.socks) == 0 {
			fs.onSend = failWith(errors.New("connection reset"))
			return
		}
		fs.onSend = replyWith(mustMarshal(t, "OK"))
	}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req), f)

	res, err := c.SendCommand(context.Background(), "start", nil, envelope.Msgpack)
	if err != nil {
		t.Fatalf("could not send command: %+v", err)
	}
	if res.Attempts != 2 || res.Reply != "OK" {
		t.Fatalf("invalid result: %+v", res)
	}
	if got := c.Binding().Reconnects(); got != 1 {
		t.Fatalf("invalid number of reconnects: %d", got)
	}
}

func TestSendCommandCanceled(t *testing.T) {
	f := &fakeFactory{setup: func(fs *fakeSocket) {
		fs.onSend = failWith(errors.New("broken pipe"))
	}}
	c := newTestClient(t, NewEndpoint("tcp://127.0.0.1:5555", zmq4.Req), f,
		WithRetryBackoff(Backoff{Initial: time.Hour, Multiplier: 1}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := c.SendCommand(ctx, "start", nil, envelope.Msgpack)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %+v", err)
	}
	if res.Attempts != 2 {
		t.Fatalf("invalid number of attempts: %d", res.Attempts)
	}
}

func TestSendControl(t *testing.T) {
	f := &fakeFactory{setup: func(fs *fakeSocket) {
		fs.onSend = replyWith(mustMarshal(t, "OK"))
	}}
	c := newTestClient(t, NewEndpoint("ipc:///tmp/zipc-test/control", zmq4.Req), f)

	if err := c.SendControl(context.Background(), envelope.StartAcquisition, "cam0"); err != nil {
		t.Fatalf("could not send control: %+v", err)
	}
	env, err := envelope.JSON.Codec().Unmarshal(f.last().messages()[0].Frames[0])
	if err != nil {
		t.Fatalf("could not decode control: %+v", err)
	}
	if v, _ := env.Int(envelope.KeyType); v != int(envelope.TagControl) {
		t.Fatalf("invalid control tag: %v", env)
	}
	if v, _ := env.Int(envelope.KeyCommand); v != int(envelope.StartAcquisition) {
		t.Fatalf("invalid control command: %v", env)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Multiplier: 2, Max: 50 * time.Millisecond}
	for i, want := range []time.Duration{
		0,
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	} {
		if got := b.Delay(i); got != want {
			t.Fatalf("delay(%d): got=%v, want=%v", i, got, want)
		}
	}
	if got := (Backoff{}).Delay(3); got != 0 {
		t.Fatalf("zero backoff must not wait: %v", got)
	}
}
