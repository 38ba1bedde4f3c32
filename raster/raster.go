// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package raster frames 8-bit images into zipc envelopes and back.
//
// An image travels in one of three representations, named by the
// "dataformat.type" tag of its envelope:
//
//	raw   flat interleaved pixels, rows*cols*channels bytes
//	jpg   a compressed bitstream (JPEG, PNG)
//	both  flat pixels delivered inline alongside an encoded copy
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // jpg decoding
	_ "image/png"  // png decoding

	"github.com/pkg/errors"
)

var (
	// ErrShape reports a pixel buffer whose length contradicts its header.
	ErrShape = errors.New("raster: shape mismatch")
	// ErrFormat reports an unknown or missing dataformat.
	ErrFormat = errors.New("raster: invalid dataformat")
)

// Format is the dataformat.type tag of an image envelope.
type Format string

const (
	Raw  Format = "raw"
	JPG  Format = "jpg"
	Both Format = "both"
)

// Header field names.
const (
	keyRows     = "rows"
	keyCols     = "cols"
	keyChannels = "channels"
)

// Raster is an 8-bit image stored row-major with interleaved channels.
type Raster struct {
	Rows     int
	Cols     int
	Channels int
	Pix      []byte
}

// New allocates a zeroed raster.
func New(rows, cols, channels int) *Raster {
	return &Raster{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Pix:      make([]byte, rows*cols*channels),
	}
}

// Shape returns (rows, cols, channels).
func (r *Raster) Shape() Shape {
	return Shape{Rows: r.Rows, Cols: r.Cols, Channels: r.Channels}
}

// At returns the channel values of the pixel at (row, col).
func (r *Raster) At(row, col int) []byte {
	i := (row*r.Cols + col) * r.Channels
	return r.Pix[i : i+r.Channels]
}

// Validate checks the pixel buffer against the dimensions.
func (r *Raster) Validate() error {
	return r.Shape().check(len(r.Pix))
}

// Image converts r to an image.Image (gray, RGB or RGBA).
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Cols, r.Rows)
	switch r.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, r.Pix)
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
			img.Pix[j+0] = r.Pix[i+0]
			img.Pix[j+1] = r.Pix[i+1]
			img.Pix[j+2] = r.Pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		copy(img.Pix, r.Pix)
		return img, nil
	default:
		return nil, errors.Wrapf(ErrShape, "no image model for %d channels", r.Channels)
	}
}

// FromImage converts img to a raster: gray images keep one channel, images
// with an alpha channel keep four, everything else becomes RGB.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	switch img.ColorModel() {
	case color.GrayModel:
		r := New(rows, cols, 1)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				r.Pix[y*cols+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
		return r
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model:
		if !opaque(img) {
			r := New(rows, cols, 4)
			for y := 0; y < rows; y++ {
				for x := 0; x < cols; x++ {
					c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
					copy(r.At(y, x), []byte{c.R, c.G, c.B, c.A})
				}
			}
			return r
		}
	}
	r := New(rows, cols, 3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			copy(r.At(y, x), []byte{c.R, c.G, c.B})
		}
	}
	return r
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Shape is the declared geometry of an image.
type Shape struct {
	Rows     int
	Cols     int
	Channels int
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.Rows, s.Cols, s.Channels)
}

// check reports whether n bytes hold exactly s. Dimensions come from peers,
// so the product is never computed: it could overflow.
func (s Shape) check(n int) error {
	if s.Rows <= 0 || s.Cols <= 0 || s.Channels <= 0 {
		return errors.Wrapf(ErrShape, "invalid shape %v", s)
	}
	if n%s.Rows != 0 || (n/s.Rows)%s.Cols != 0 || n/s.Rows/s.Cols != s.Channels {
		return errors.Wrapf(ErrShape, "shape %v does not match %d bytes", s, n)
	}
	return nil
}

// decodeBitstream decodes a compressed image with the registered decoders.
func decodeBitstream(data []byte) (*Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "could not decode %d-byte bitstream: %v", len(data), err)
	}
	return FromImage(img), nil
}
