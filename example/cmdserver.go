// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore

// Command server.
//
// Binds a REP socket to tcp://*:5559 and answers every command envelope
// with the command name in upper case.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ep := zipc.NewEndpoint("tcp://*:5559", zmq4.Rep)
	ep.Bind = true

	c, err := zipc.New(ctx, ep)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open socket")
	}
	defer c.Close()

	r := zipc.NewRouter()
	r.HandleFunc(envelope.KeyCommand, func(ctx context.Context, req *zipc.Request) (interface{}, error) {
		name, _ := req.Envelope.String(envelope.KeyCommand)
		log.Info().Str("command", name).Strs("keys", req.Envelope.Keys()).Msg("received")
		return map[string]interface{}{"status": strings.ToUpper(name)}, nil
	})

	if err := c.Serve(ctx, r, envelope.Msgpack); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("serve failed")
	}
}
