// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"strings"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// NoPeer is the PeerID of an endpoint without a peer identifier.
const NoPeer = -1

// Endpoint describes one side of a zipc connection.
// It is immutable once handed to Open or New.
type Endpoint struct {
	Addr   string          // end-point, e.g. "ipc:///tmp/cam/control" or "tcp://127.0.0.1:5555"
	Bind   bool            // listen on Addr instead of dialing it
	Type   zmq4.SocketType // PAIR, REQ, REP, PUB or SUB
	PeerID int             // passed to handlers when >= 0
	Queued bool            // start a send worker draining a priority queue
	Topics []string        // SUB subscriptions (default: everything)
}

// NewEndpoint returns an endpoint dialing addr with a socket of the given type.
func NewEndpoint(addr string, typ zmq4.SocketType) Endpoint {
	return Endpoint{Addr: addr, Type: typ, PeerID: NoPeer}
}

// Validate checks the end-point scheme and socket type.
func (ep Endpoint) Validate() error {
	if _, _, err := splitAddr(ep.Addr); err != nil {
		return err
	}
	switch ep.Type {
	case zmq4.Pair, zmq4.Req, zmq4.Rep, zmq4.Pub, zmq4.Sub:
		return nil
	default:
		return errors.Wrapf(errInvalidType, "socket type %q", ep.Type)
	}
}

// ExpectsReply reports whether every message sent on this endpoint is
// answered by the peer (and every received one must be answered).
func (ep Endpoint) ExpectsReply() bool {
	return expectsReply(ep.Type)
}

func (ep Endpoint) topics() []string {
	if len(ep.Topics) == 0 {
		return []string{""}
	}
	return ep.Topics
}

func (ep Endpoint) mode() string {
	if ep.Bind {
		return "bind"
	}
	return "connect"
}

func expectsReply(typ zmq4.SocketType) bool {
	switch typ {
	case zmq4.Pair, zmq4.Rep, zmq4.Req:
		return true
	default:
		return false
	}
}

func canRecv(typ zmq4.SocketType) bool {
	return typ != zmq4.Pub
}

// splitAddr returns the pair (scheme, address) of an end-point.
func splitAddr(v string) (scheme, addr string, err error) {
	ep := strings.Split(v, "://")
	if len(ep) != 2 || ep[1] == "" {
		return "", "", errors.Wrapf(errInvalidAddress, "end-point %q", v)
	}
	scheme = ep[0]
	if _, ok := schemes.get(scheme); !ok {
		return "", "", errors.Errorf("zipc: unknown transport %q", scheme)
	}
	return scheme, ep[1], nil
}
