// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build czmq4
// +build czmq4

package zipc

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	czmq4 "github.com/go-zeromq/goczmq/v4"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// WithCZMQ selects sockets backed by libczmq, for interoperability checks
// against libzmq peers.
func WithCZMQ() Option {
	return WithSocketFactory(newCSocket)
}

var ctypes = map[zmq4.SocketType]int{
	zmq4.Pair: czmq4.Pair,
	zmq4.Req:  czmq4.Req,
	zmq4.Rep:  czmq4.Rep,
	zmq4.Pub:  czmq4.Pub,
	zmq4.Sub:  czmq4.Sub,
}

// cpoll bounds a libczmq receive, so that Close can interleave with a
// pending Recv. libczmq sockets are not safe for concurrent use.
const cpoll = 100 * time.Millisecond

type csocket struct {
	typ  zmq4.SocketType
	addr net.Addr

	mu     sync.Mutex
	sock   *czmq4.Sock
	closed bool
}

// newCSocket creates a libczmq socket with the socket timeouts of a Binding.
// Options other than the zmq4 send timeout are ignored.
func newCSocket(ctx context.Context, typ zmq4.SocketType, _ ...zmq4.Option) (zmq4.Socket, error) {
	ctyp, ok := ctypes[typ]
	if !ok {
		return nil, errors.Wrapf(errInvalidType, "socket type %q", typ)
	}
	sck := &csocket{typ: typ, sock: czmq4.NewSock(ctyp)}
	sck.sock.SetOption(czmq4.SockSetSndtimeo(int(DefaultSendTimeout.Milliseconds())))
	sck.sock.SetOption(czmq4.SockSetRcvtimeo(int(cpoll.Milliseconds())))
	if typ == zmq4.Req {
		sck.sock.SetOption(czmq4.SockSetReqRelaxed(1))
		sck.sock.SetOption(czmq4.SockSetReqCorrelate(1))
	}
	return sck, nil
}

func (sck *csocket) Close() error {
	sck.mu.Lock()
	defer sck.mu.Unlock()
	if sck.closed {
		return nil
	}
	sck.closed = true
	sck.sock.Destroy()
	return nil
}

func (sck *csocket) Send(msg zmq4.Msg) error {
	sck.mu.Lock()
	defer sck.mu.Unlock()
	if sck.closed {
		return ErrClosed
	}
	return sck.sock.SendMessage(msg.Frames)
}

func (sck *csocket) SendMulti(msg zmq4.Msg) error {
	return sck.Send(msg)
}

// Recv polls the socket until a message arrives or the socket is closed.
func (sck *csocket) Recv() (zmq4.Msg, error) {
	for {
		frames, closed, err := sck.recv()
		switch {
		case closed:
			return zmq4.Msg{}, ErrClosed
		case err == nil:
			return zmq4.Msg{Frames: frames}, nil
		}
	}
}

func (sck *csocket) recv() ([][]byte, bool, error) {
	sck.mu.Lock()
	defer sck.mu.Unlock()
	if sck.closed {
		return nil, true, nil
	}
	frames, err := sck.sock.RecvMessage()
	return frames, false, err
}

func (sck *csocket) Listen(ep string) error {
	sck.mu.Lock()
	defer sck.mu.Unlock()
	port, err := sck.sock.Bind(ep)
	if err != nil {
		return err
	}
	addr, err := cnetAddr(port, ep)
	if err != nil {
		return err
	}
	sck.addr = addr
	return nil
}

func (sck *csocket) Dial(ep string) error {
	sck.mu.Lock()
	defer sck.mu.Unlock()
	return sck.sock.Connect(ep)
}

func (sck *csocket) Type() zmq4.SocketType { return sck.typ }

func (sck *csocket) Addr() net.Addr { return sck.addr }

func (sck *csocket) GetOption(name string) (interface{}, error) {
	return nil, errors.Errorf("zipc: czmq4 option %q not supported", name)
}

func (sck *csocket) SetOption(name string, value interface{}) error {
	topic, ok := value.(string)
	if !ok {
		return errors.Errorf("zipc: czmq4 option %q: invalid value %T", name, value)
	}
	sck.mu.Lock()
	defer sck.mu.Unlock()
	switch name {
	case zmq4.OptionSubscribe:
		sck.sock.SetOption(czmq4.SockSetSubscribe(topic))
	case zmq4.OptionUnsubscribe:
		sck.sock.SetOption(czmq4.SockSetUnsubscribe(topic))
	default:
		return errors.Errorf("zipc: czmq4 option %q not supported", name)
	}
	return nil
}

func cnetAddr(port int, ep string) (net.Addr, error) {
	network, addr, err := splitAddr(ep)
	if err != nil {
		return nil, err
	}
	if network == "ipc" {
		network = "unix"
	}
	if i := strings.Index(addr, ":"); i != -1 {
		addr = addr[:i]
	}
	return caddr{host: addr, port: fmt.Sprintf("%d", port), net: network}, nil
}

type caddr struct {
	host string
	port string
	net  string
}

func (addr caddr) Network() string { return addr.net }
func (addr caddr) String() string  { return addr.host + ":" + addr.port }

var (
	_ zmq4.Socket = (*csocket)(nil)
	_ net.Addr    = (*caddr)(nil)
)
