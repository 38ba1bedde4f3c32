// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zipc/raster"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	handlers []string
	saveDir  string
	strict   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive envelopes and dispatch them by key",
	Long: `serve runs a receive loop on the configured socket (REP by default).
Every envelope holding one of the handler keys is logged; images are decoded
and, with --save-dir, written as PNG files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultType(zmq4.Rep)
		ctx := cmd.Context()

		keys := serveFlags.handlers
		if !cmd.Flags().Changed("handle") && len(cfg.Handlers) > 0 {
			keys = cfg.Handlers
		}
		if serveFlags.saveDir != "" {
			if err := os.MkdirAll(serveFlags.saveDir, 0o755); err != nil {
				return errors.Wrap(err, "could not create save directory")
			}
		}

		c, format, err := openClient(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()

		r := zipc.NewRouter()
		r.Strict = serveFlags.strict
		s := &saver{dir: serveFlags.saveDir}
		for _, key := range keys {
			r.HandleFunc(key, s.serve)
		}
		logger.Info().Strs("keys", r.Keys()).Str("format", format.String()).Msg("serving")

		err = c.Serve(ctx, r, format)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

type saver struct {
	dir string
	n   atomic.Int64
}

func (s *saver) serve(ctx context.Context, req *zipc.Request) (interface{}, error) {
	ev := logger.Info().Str("key", req.Key).Strs("keys", req.Envelope.Keys()).Int("parts", len(req.Frames))
	if peer, ok := req.Peer(); ok {
		ev = ev.Int("peer", peer)
	}
	if name, ok := req.Envelope.String(envelope.KeyCommand); ok {
		ev = ev.Str("command", name)
	}
	ev.Msg("received")

	if !req.Envelope.Has(envelope.KeyDataFormat) {
		return nil, nil
	}
	img, err := req.Raster()
	if err != nil {
		return nil, err
	}
	logger.Info().Stringer("shape", img.Shape()).Msg("image")
	if s.dir == "" {
		return nil, nil
	}
	return nil, s.save(img)
}

func (s *saver) save(r *raster.Raster) error {
	img, err := r.Image()
	if err != nil {
		return err
	}
	fname := filepath.Join(s.dir, fmt.Sprintf("frame-%06d.png", s.n.Add(1)))
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "could not create image file")
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "could not encode %q", fname)
	}
	return f.Close()
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveFlags.handlers, "handle", []string{envelope.KeyDataFormat, envelope.KeyCommand}, "envelope keys to dispatch")
	serveCmd.Flags().StringVar(&serveFlags.saveDir, "save-dir", "", "directory receiving decoded images as PNG")
	serveCmd.Flags().BoolVar(&serveFlags.strict, "strict", false, "reject envelopes matching several keys")
	rootCmd.AddCommand(serveCmd)
}
