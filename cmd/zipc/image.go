// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/raster"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var imageFlags struct {
	raw bool
}

var imageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Send an image file",
	Long: `image sends a JPEG or PNG file to the peer.
By default the compressed bitstream is sent ahead of any other queued
message; with --raw the image is decoded and its pixels are sent as a
two-part [header, pixels] message.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "could not read image")
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return errors.Wrapf(err, "could not decode %q", args[0])
		}
		r := raster.FromImage(img)
		meta := map[string]interface{}{"source": args[0]}

		ctx := cmd.Context()
		c, format, err := openClient(ctx, !imageFlags.raw)
		if err != nil {
			return err
		}
		defer c.Close()

		if imageFlags.raw {
			reply, err := c.SendImage(ctx, r, meta, format)
			if err != nil {
				return errors.Wrap(err, "could not send image")
			}
			printReply(cmd, reply)
			return nil
		}

		p, err := c.SendImageEncoded(ctx, data, r.Shape(), meta)
		if err != nil {
			return err
		}
		if err := p.Wait(ctx); err != nil {
			return errors.Wrap(err, "could not send image")
		}
		logger.Info().Stringer("shape", r.Shape()).Int("bytes", len(data)).Msg("image sent")
		return nil
	},
}

func printReply(cmd *cobra.Command, reply [][]byte) {
	if len(reply) == 0 {
		return
	}
	last := reply[len(reply)-1]
	if perr, ok := zipc.ParseFailure(last); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "peer: %s\n", perr.Reason)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%q\n", last)
}

func init() {
	imageCmd.Flags().BoolVar(&imageFlags.raw, "raw", false, "send decoded pixels instead of the compressed file")
	rootCmd.AddCommand(imageCmd)
}
