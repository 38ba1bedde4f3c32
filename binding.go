// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	stdlog "log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	errReplaced    = errors.Wrap(ErrTimeout, "zipc: connection was replaced")
	errPumpStopped = errors.New("zipc: receive pump stopped")
	errNoRecv      = errors.New("zipc: socket type can't receive messages")
)

type recvResult struct {
	msg zmq4.Msg
	err error
}

// connState is the live side of a Binding: one socket and its receive pump.
// A Binding exclusively owns its connState; Reconnect closes it and installs
// a fresh one.
//
// The pump only calls Recv on the socket when a receive was requested.
// zmq4 REQ sockets fail to receive before a request was sent, and REP
// sockets route the next reply to the sender of the last message read.
type connState struct {
	sck     zmq4.Socket
	replies bool

	want    chan struct{} // receive requests, at most one outstanding
	in      chan recvResult
	done    chan struct{} // closed when the state is discarded
	stopped chan struct{} // closed when the pump returns
	once    sync.Once

	mu      sync.Mutex
	pending bool // a receive was requested and its result not consumed yet
}

func newConnState(sck zmq4.Socket, replies bool) *connState {
	return &connState{
		sck:     sck,
		replies: replies,
		want:    make(chan struct{}, 1),
		in:      make(chan recvResult),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// pump moves requested messages to the in channel until the socket fails or
// the state is discarded.
func (cs *connState) pump() {
	defer close(cs.stopped)
	for {
		select {
		case <-cs.want:
		case <-cs.done:
			return
		}
		msg, err := cs.sck.Recv()
		select {
		case cs.in <- recvResult{msg: msg, err: err}:
		case <-cs.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// request asks the pump for one message, unless a receive is already
// outstanding.
func (cs *connState) request() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.pending {
		return
	}
	cs.pending = true
	cs.want <- struct{}{}
}

// consumed marks the outstanding receive as delivered.
func (cs *connState) consumed() {
	cs.mu.Lock()
	cs.pending = false
	cs.mu.Unlock()
}

func (cs *connState) discarded() bool {
	select {
	case <-cs.done:
		return true
	default:
		return false
	}
}

func (cs *connState) close() error {
	var err error
	cs.once.Do(func() {
		close(cs.done)
		err = cs.sck.Close()
	})
	return err
}

// Binding wraps one ZeroMQ socket bound or connected to an Endpoint and
// re-creates it on transport failures.
type Binding struct {
	ep  Endpoint
	cfg config
	log zerolog.Logger

	ctx    context.Context // life-line of every socket of this binding
	cancel context.CancelFunc

	mu     sync.Mutex
	state  *connState
	closed bool

	reconnects atomic.Int64
}

// Open creates the socket described by ep and binds or connects it.
func Open(ctx context.Context, ep Endpoint, opts ...Option) (*Binding, error) {
	return openBinding(ctx, ep, newConfig(opts...))
}

func openBinding(ctx context.Context, ep Endpoint, cfg config) (*Binding, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	b := &Binding{
		ep:     ep,
		cfg:    cfg,
		log:    cfg.log.With().Str("endpoint", ep.Addr).Str("type", string(ep.Type)).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	st, err := b.connect(true)
	if err != nil {
		cancel()
		return nil, err
	}
	b.state = st
	return b, nil
}

// Endpoint returns the configuration of the binding.
func (b *Binding) Endpoint() Endpoint { return b.ep }

// ExpectsReply reports whether the socket pattern pairs every send with a receive.
func (b *Binding) ExpectsReply() bool { return b.ep.ExpectsReply() }

// Reconnects returns how many times the socket was re-created.
func (b *Binding) Reconnects() int64 { return b.reconnects.Load() }

func (b *Binding) connect(verbose bool) (*connState, error) {
	scheme, addr, err := splitAddr(b.ep.Addr)
	if err != nil {
		return nil, err
	}

	sck, err := b.cfg.factory(b.ctx, b.ep.Type,
		b.cfg.socketOptions(stdlog.New(b.log, "zmq4: ", 0))...,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "zipc: could not create %s socket", b.ep.Type)
	}

	if b.ep.Bind {
		if verbose {
			b.log.Info().Msg("binding")
		}
		s, _ := schemes.get(scheme)
		if err := s.BeforeListen(addr); err != nil {
			sck.Close()
			return nil, err
		}
		if err := sck.Listen(b.ep.Addr); err != nil {
			sck.Close()
			return nil, errors.Wrapf(err, "zipc: could not listen on %q", b.ep.Addr)
		}
		if err := s.AfterListen(addr); err != nil {
			sck.Close()
			return nil, err
		}
	} else {
		if verbose {
			b.log.Info().Msg("connecting")
		}
		if err := sck.Dial(b.ep.Addr); err != nil {
			sck.Close()
			return nil, errors.Wrapf(err, "zipc: could not dial %q", b.ep.Addr)
		}
	}

	if b.ep.Type == zmq4.Sub {
		for _, topic := range b.ep.topics() {
			if err := sck.SetOption(zmq4.OptionSubscribe, topic); err != nil {
				sck.Close()
				return nil, errors.Wrapf(err, "zipc: could not subscribe to %q", topic)
			}
		}
	}

	st := newConnState(sck, b.ep.ExpectsReply())
	if canRecv(b.ep.Type) {
		go st.pump()
	} else {
		close(st.stopped)
	}
	return st, nil
}

// Reconnect closes the current socket, if any, and opens a new one with the
// same configuration.
func (b *Binding) Reconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.log.Warn().Str("mode", b.ep.mode()).Msg("reconnecting")
	if b.state != nil {
		if err := b.state.close(); err != nil {
			b.log.Debug().Err(err).Msg("closing previous socket")
		}
		b.state = nil
	}

	st, err := b.connect(false)
	if err != nil {
		return errors.Wrap(err, "zipc: reconnect failed")
	}
	b.state = st
	b.reconnects.Add(1)
	return nil
}

// heal applies the reconnect policy to err: benign errors are left to the
// caller's retry loop, anything else is logged and triggers a Reconnect.
// heal reports whether a reconnect was attempted.
func (b *Binding) heal(err error, op string) bool {
	if err == nil || IsBenign(err) || errors.Is(err, ErrClosed) {
		return false
	}
	if b.ctx.Err() != nil {
		return false
	}
	b.log.Error().Err(err).Str("op", op).Msg("transport failure")
	if rerr := b.Reconnect(); rerr != nil {
		b.log.Error().Err(rerr).Msg("could not reconnect")
	}
	return true
}

func (b *Binding) current() (*connState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return nil, ErrClosed
	case b.state == nil:
		return nil, errors.New("zipc: not connected")
	}
	return b.state, nil
}

func (b *Binding) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Send sends msg, as a multipart message if it holds several frames.
// Send blocks at most for the send timeout.
func (b *Binding) Send(ctx context.Context, msg zmq4.Msg) error {
	st, err := b.current()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.ep.Type == zmq4.Req {
		// relaxed REQ: a reply to an earlier, abandoned request must not be
		// mistaken for the reply to this one.
		if n := b.discard(st); n > 0 {
			b.log.Debug().Int("messages", n).Msg("discarded stale replies")
		}
	}
	if err := st.sck.Send(msg); err != nil {
		return b.wrap(err, "send")
	}
	return nil
}

// Recv receives a complete message. It returns an error wrapping ErrTimeout
// when nothing arrives within the receive timeout.
func (b *Binding) Recv(ctx context.Context) (zmq4.Msg, error) {
	if !canRecv(b.ep.Type) {
		return zmq4.Msg{}, errors.Wrapf(errNoRecv, "zipc: %s", b.ep.Type)
	}
	st, err := b.current()
	if err != nil {
		return zmq4.Msg{}, err
	}

	st.request()
	timer := time.NewTimer(b.cfg.recvTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return zmq4.Msg{}, ctx.Err()
	case <-timer.C:
		return zmq4.Msg{}, errors.Wrapf(ErrTimeout, "zipc: nothing received within %v", b.cfg.recvTimeout)
	case <-st.done:
		return zmq4.Msg{}, b.discarded()
	case r := <-st.in:
		st.consumed()
		if r.err != nil {
			if st.discarded() {
				return zmq4.Msg{}, b.discarded()
			}
			return r.msg, b.wrap(r.err, "recv")
		}
		return r.msg, nil
	case <-st.stopped:
		if st.discarded() {
			return zmq4.Msg{}, b.discarded()
		}
		return zmq4.Msg{}, errPumpStopped
	}
}

// discarded returns the error of an operation interrupted by Close or
// Reconnect.
func (b *Binding) discarded() error {
	if b.isClosed() {
		return ErrClosed
	}
	return errReplaced
}

func (b *Binding) discard(st *connState) int {
	n := 0
	for {
		select {
		case r := <-st.in:
			st.consumed()
			if r.err != nil {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (b *Binding) wrap(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "zipc: %s: %v", op, err)
	}
	if b.isClosed() {
		return ErrClosed
	}
	return errors.Wrapf(err, "zipc: %s", op)
}

// Close closes the socket. A closed binding can't be reopened.
func (b *Binding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.state != nil {
		err = b.state.close()
		b.state = nil
	}
	b.cancel()
	return err
}

// Exchange sends msg and, when the socket pattern expects one, waits for the
// reply. replied is false for patterns without replies.
func (b *Binding) Exchange(ctx context.Context, msg zmq4.Msg) (reply zmq4.Msg, replied bool, err error) {
	st, err := b.current()
	if err != nil {
		return reply, false, err
	}
	if err := b.Send(ctx, msg); err != nil {
		return reply, false, err
	}
	if !st.replies {
		return reply, false, nil
	}
	reply, err = b.Recv(ctx)
	if err != nil {
		return reply, false, err
	}
	return reply, true, nil
}
