// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore

// Frame sink.
//
// Binds a PAIR socket to ipc:///tmp/zipc/frames and logs the geometry of
// every image it receives, raw or compressed.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zipc/raster"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ep := zipc.NewEndpoint("ipc:///tmp/zipc/frames", zmq4.Pair)
	ep.Bind = true

	c, err := zipc.New(ctx, ep, zipc.WithDumpDir(os.TempDir()))
	if err != nil {
		log.Fatal().Err(err).Msg("could not open socket")
	}
	defer c.Close()

	r := zipc.NewRouter()
	r.HandleImage(envelope.KeyDataFormat, func(ctx context.Context, req *zipc.Request, img *raster.Raster) (interface{}, error) {
		log.Info().Stringer("shape", img.Shape()).Int("bytes", len(img.Pix)).Msg("frame")
		return nil, nil
	})

	if err := c.Serve(ctx, r, envelope.Msgpack); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("serve failed")
	}
}
