// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build czmq4
// +build czmq4

package zipc

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func TestCZMQInterop(t *testing.T) {
	for _, tc := range []struct {
		name    string
		srvOpts []Option
		cliOpts []Option
	}{
		{name: "czmq-rep", srvOpts: []Option{WithCZMQ()}},
		{name: "czmq-req", cliOpts: []Option{WithCZMQ()}},
		{name: "czmq-both", srvOpts: []Option{WithCZMQ()}, cliOpts: []Option{WithCZMQ()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ep := tcpEndpoint(t)

			ctx, timeout := context.WithTimeout(context.Background(), 20*time.Second)
			defer timeout()

			srvEP := NewEndpoint(ep, zmq4.Rep)
			srvEP.Bind = true
			srv := newTestClient(t, srvEP, nil, tc.srvOpts...)
			cli := newTestClient(t, NewEndpoint(ep, zmq4.Req), nil, tc.cliOpts...)

			r := NewRouter()
			r.HandleFunc(envelope.KeyCommand, func(ctx context.Context, req *Request) (interface{}, error) {
				name, _ := req.Envelope.String(envelope.KeyCommand)
				return name, nil
			})

			srvCtx, stop := context.WithCancel(ctx)
			grp, _ := errgroup.WithContext(ctx)
			grp.Go(func() error {
				err := srv.Serve(srvCtx, r, envelope.Msgpack)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return errors.Wrap(err, "serve")
			})

			res, err := cli.SendCommand(ctx, "ping", nil, envelope.Msgpack)
			if err != nil {
				t.Fatalf("could not send command: %+v", err)
			}
			if res.Reply != "ping" {
				t.Fatalf("invalid reply: %#v", res.Reply)
			}

			stop()
			if err := grp.Wait(); err != nil {
				t.Fatalf("error: %+v", err)
			}
		})
	}
}
