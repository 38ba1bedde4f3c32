// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zipc/internal/logging"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

var (
	errFakeClosed    = errors.New("fake: socket closed")
	errFakeNoRequest = errors.New("fake: no request outstanding")
)

// fakeSocket is an in-memory zmq4.Socket.
// Messages pushed on in are received; sent messages are recorded and
// forwarded on out. Like zmq4 REQ sockets, a fake REQ socket fails to
// receive before anything was sent.
type fakeSocket struct {
	typ zmq4.SocketType

	in  chan zmq4.Msg
	out chan zmq4.Msg

	mu      sync.Mutex
	sent    []zmq4.Msg
	opts    map[string][]interface{}
	addr    string
	nclose  int
	onSend  func(fs *fakeSocket, msg zmq4.Msg) error
	closing chan struct{}
}

func newFakeSocket(typ zmq4.SocketType) *fakeSocket {
	return &fakeSocket{
		typ:     typ,
		in:      make(chan zmq4.Msg, 16),
		out:     make(chan zmq4.Msg, 64),
		opts:    make(map[string][]interface{}),
		closing: make(chan struct{}),
	}
}

func (fs *fakeSocket) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nclose++
	if fs.nclose == 1 {
		close(fs.closing)
	}
	return nil
}

func (fs *fakeSocket) closes() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.nclose
}

func (fs *fakeSocket) Send(msg zmq4.Msg) error {
	fs.mu.Lock()
	hook := fs.onSend
	fs.mu.Unlock()
	if hook != nil {
		if err := hook(fs, msg); err != nil {
			return err
		}
	}
	fs.mu.Lock()
	fs.sent = append(fs.sent, msg)
	fs.mu.Unlock()
	select {
	case fs.out <- msg:
	default:
	}
	return nil
}

func (fs *fakeSocket) SendMulti(msg zmq4.Msg) error { return fs.Send(msg) }

func (fs *fakeSocket) Recv() (zmq4.Msg, error) {
	fs.mu.Lock()
	idle := fs.typ == zmq4.Req && len(fs.sent) == 0
	fs.mu.Unlock()
	if idle {
		return zmq4.Msg{}, errFakeNoRequest
	}
	select {
	case msg := <-fs.in:
		return msg, nil
	case <-fs.closing:
		return zmq4.Msg{}, errFakeClosed
	}
}

func (fs *fakeSocket) Listen(ep string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.addr = ep
	return nil
}

func (fs *fakeSocket) Dial(ep string) error { return fs.Listen(ep) }

func (fs *fakeSocket) Type() zmq4.SocketType { return fs.typ }
func (fs *fakeSocket) Addr() net.Addr        { return nil }

func (fs *fakeSocket) GetOption(name string) (interface{}, error) {
	return nil, errors.Errorf("fake: unknown option %q", name)
}

func (fs *fakeSocket) SetOption(name string, value interface{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.opts[name] = append(fs.opts[name], value)
	return nil
}

func (fs *fakeSocket) messages() []zmq4.Msg {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]zmq4.Msg(nil), fs.sent...)
}

// next returns the next sent message.
func (fs *fakeSocket) next(t *testing.T) zmq4.Msg {
	t.Helper()
	select {
	case msg := <-fs.out:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatalf("no message sent")
		return zmq4.Msg{}
	}
}

// fakeFactory records every socket it creates; setup configures each new
// socket before it is handed to the binding.
type fakeFactory struct {
	mu    sync.Mutex
	socks []*fakeSocket
	setup func(fs *fakeSocket)
}

func (f *fakeFactory) new(ctx context.Context, typ zmq4.SocketType, opts ...zmq4.Option) (zmq4.Socket, error) {
	fs := newFakeSocket(typ)
	if f.setup != nil {
		f.setup(fs)
	}
	f.mu.Lock()
	f.socks = append(f.socks, fs)
	f.mu.Unlock()
	return fs, nil
}

func (f *fakeFactory) sockets() []*fakeSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSocket(nil), f.socks...)
}

func (f *fakeFactory) last() *fakeSocket {
	socks := f.sockets()
	return socks[len(socks)-1]
}

// testOptions returns the options shared by tests: quiet logs and no
// diagnostics written to the working directory.
func testOptions(t *testing.T, f *fakeFactory, opts ...Option) []Option {
	t.Helper()
	o := []Option{
		WithLogger(logging.New(logging.Test(), "zipc-test")),
		WithDumpDir(t.TempDir()),
		WithRetryBackoff(Backoff{}),
	}
	if f != nil {
		o = append(o, WithSocketFactory(f.new))
	}
	return append(o, opts...)
}

// replyWith makes a fake socket answer every send with the given frames.
func replyWith(frames ...[]byte) func(fs *fakeSocket, msg zmq4.Msg) error {
	return func(fs *fakeSocket, msg zmq4.Msg) error {
		fs.in <- zmq4.NewMsgFrom(frames...)
		return nil
	}
}

func failWith(err error) func(fs *fakeSocket, msg zmq4.Msg) error {
	return func(*fakeSocket, zmq4.Msg) error { return err }
}
