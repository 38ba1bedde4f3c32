// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	stdlog "log"
	"time"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/go-zeromq/zmq4/security/plain"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRecvTimeout bounds every blocking receive.
	DefaultRecvTimeout = 20000 * time.Millisecond
	// DefaultSendTimeout bounds every blocking send.
	DefaultSendTimeout = 5000 * time.Millisecond
)

// SocketFactory creates an unbound ZeroMQ socket of the given type.
type SocketFactory func(ctx context.Context, typ zmq4.SocketType, opts ...zmq4.Option) (zmq4.Socket, error)

// Option configures some aspect of a Binding or Client.
type Option func(cfg *config)

type config struct {
	log         zerolog.Logger
	factory     SocketFactory
	dumpDir     string
	backoff     Backoff
	pixelsFirst bool
	recvTimeout time.Duration
	sendTimeout time.Duration
	dialRetry   time.Duration
	security    zmq4.Security
	commandTag  envelope.ParameterType
}

func newConfig(opts ...Option) config {
	cfg := config{
		log:         log.Logger.With().Str("component", "zipc").Logger(),
		factory:     newZmq4Socket,
		dumpDir:     ".",
		backoff:     DefaultBackoff,
		recvTimeout: DefaultRecvTimeout,
		sendTimeout: DefaultSendTimeout,
		dialRetry:   250 * time.Millisecond,
		commandTag:  envelope.TagCommand,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets a dedicated logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.log = l
	}
}

// WithSocketFactory replaces the constructor of the underlying sockets.
func WithSocketFactory(f SocketFactory) Option {
	return func(cfg *config) {
		if f != nil {
			cfg.factory = f
		}
	}
}

// WithDumpDir sets the directory receiving diagnostic copies of
// messages that could not be processed.
func WithDumpDir(dir string) Option {
	return func(cfg *config) {
		cfg.dumpDir = dir
	}
}

// WithRetryBackoff configures the delay between command send attempts.
func WithRetryBackoff(b Backoff) Option {
	return func(cfg *config) {
		cfg.backoff = b
	}
}

// WithPixelsFirst frames raw images as [pixels, header] instead of
// [header, pixels], for peers expecting the pixel buffer first.
func WithPixelsFirst() Option {
	return func(cfg *config) {
		cfg.pixelsFirst = true
	}
}

// WithRecvTimeout overrides DefaultRecvTimeout.
func WithRecvTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.recvTimeout = d
	}
}

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.sendTimeout = d
	}
}

// WithDialerRetry configures the time to wait between two failed attempts
// at dialing an endpoint.
func WithDialerRetry(retry time.Duration) Option {
	return func(cfg *config) {
		cfg.dialRetry = retry
	}
}

// WithPlainAuth authenticates connections with the ZMTP PLAIN mechanism.
// Both peers must use the same credentials.
func WithPlainAuth(user, pass string) Option {
	return func(cfg *config) {
		cfg.security = plain.Security(user, pass)
	}
}

// WithCommandTag sets the "type" tag of command envelopes, for peers whose
// COMMAND parameter type is not envelope.TagCommand.
func WithCommandTag(tag envelope.ParameterType) Option {
	return func(cfg *config) {
		cfg.commandTag = tag
	}
}

// socketOptions returns the zmq4 options of every socket of a binding.
func (cfg config) socketOptions(logger *stdlog.Logger) []zmq4.Option {
	opts := []zmq4.Option{
		zmq4.WithTimeout(cfg.sendTimeout),
		zmq4.WithDialerRetry(cfg.dialRetry),
		zmq4.WithLogger(logger),
	}
	if cfg.security != nil {
		opts = append(opts, zmq4.WithSecurity(cfg.security))
	}
	return opts
}

func newZmq4Socket(ctx context.Context, typ zmq4.SocketType, opts ...zmq4.Option) (zmq4.Socket, error) {
	switch typ {
	case zmq4.Pair:
		return zmq4.NewPair(ctx, opts...), nil
	case zmq4.Req:
		return zmq4.NewReq(ctx, opts...), nil
	case zmq4.Rep:
		return zmq4.NewRep(ctx, opts...), nil
	case zmq4.Pub:
		return zmq4.NewPub(ctx, opts...), nil
	case zmq4.Sub:
		return zmq4.NewSub(ctx, opts...), nil
	default:
		return nil, errors.Wrapf(errInvalidType, "socket type %q", typ)
	}
}
