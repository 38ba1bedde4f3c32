// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build ignore

// Command client.
//
// Connects a REQ socket to tcp://localhost:5559, sends ten "start"
// commands and prints the replies.
package main

import (
	"context"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx := context.Background()

	c, err := zipc.New(ctx, zipc.NewEndpoint("tcp://localhost:5559", zmq4.Req))
	if err != nil {
		log.Fatal().Err(err).Msg("could not dial")
	}
	defer c.Close()

	for i := 0; i < 10; i++ {
		res, err := c.SendCommand(ctx, "start", map[string]interface{}{"seq": i}, envelope.Msgpack)
		if err != nil {
			log.Fatal().Err(err).Int("attempts", res.Attempts).Msg("could not send command")
		}
		log.Info().Int("seq", i).Interface("reply", res.Reply).Msg("received reply")
	}
}
