// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore

// Frame source.
//
// Connects a PAIR socket to ipc:///tmp/zipc/frames and sends a 320x240
// RGB gradient every 100ms through the send queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

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
	ep.Queued = true

	c, err := zipc.New(ctx, ep)
	if err != nil {
		log.Fatal().Err(err).Msg("could not dial")
	}
	defer c.Close()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for i := 0; ; i++ {
		// queued frames share their pixels with the send worker.
		img := raster.New(240, 320, 3)
		for j := range img.Pix {
			img.Pix[j] = byte(i + j)
		}
		_, err := c.EnqueueImage(img, map[string]interface{}{"frame": i}, envelope.Msgpack, zipc.PriorityDefault)
		if err != nil {
			log.Fatal().Err(err).Msg("could not encode frame")
		}

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
