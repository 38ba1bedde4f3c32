// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raster

import (
	"github.com/go-zeromq/zipc/envelope"
	"github.com/pkg/errors"
)

// Header returns the dataformat field describing an image.
func Header(f Format, s Shape) envelope.Envelope {
	return envelope.Envelope{
		envelope.KeyType: string(f),
		keyRows:          s.Rows,
		keyCols:          s.Cols,
		keyChannels:      s.Channels,
	}
}

// Encode returns the header envelope of a raw image. The pixels are not
// embedded: they travel as a separate message part.
// A raster without channels is a 2-dimensional buffer and gets one.
func Encode(r *Raster, meta map[string]interface{}) (envelope.Envelope, error) {
	s := r.Shape()
	if s.Channels == 0 {
		s.Channels = 1
	}
	if err := s.check(len(r.Pix)); err != nil {
		return nil, err
	}
	env := envelope.Envelope{envelope.KeyDataFormat: Header(Raw, s)}
	if meta != nil {
		env[envelope.KeyMeta] = meta
	}
	return env, nil
}

// EncodeCompressed returns the envelope of an already encoded image.
// The bitstream is embedded in the "data" field.
func EncodeCompressed(data []byte, s Shape, f Format, meta map[string]interface{}) (envelope.Envelope, error) {
	switch f {
	case JPG, Both:
	default:
		return nil, errors.Wrapf(ErrFormat, "can't embed %q images", f)
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrFormat, "empty bitstream")
	}
	env := envelope.Envelope{
		envelope.KeyDataFormat: Header(f, s),
		envelope.KeyData:       data,
	}
	if meta != nil {
		env[envelope.KeyMeta] = meta
	}
	return env, nil
}

// Assemble attaches pixels received as a separate message part to their
// header, yielding the envelope Decode expects.
func Assemble(hdr envelope.Envelope, data []byte) envelope.Envelope {
	env := hdr.Clone()
	env[envelope.KeyData] = data
	return env
}

// ParseHeader extracts the dataformat of an image envelope.
// A missing channel count means a 2-dimensional image.
func ParseHeader(env envelope.Envelope) (Format, Shape, error) {
	df, ok := env.Map(envelope.KeyDataFormat)
	if !ok {
		return "", Shape{}, errors.Wrap(ErrFormat, "no dataformat")
	}
	typ, ok := df.String(envelope.KeyType)
	if !ok {
		return "", Shape{}, errors.Wrap(ErrFormat, "no dataformat type")
	}
	var s Shape
	s.Rows, _ = df.Int(keyRows)
	s.Cols, _ = df.Int(keyCols)
	s.Channels, ok = df.Int(keyChannels)
	if !ok {
		s.Channels = 1
	}
	return Format(typ), s, nil
}

// Decode converts an assembled image envelope into a raster.
// Raw and inline pixels are reshaped to the declared geometry, compressed
// bitstreams are decoded.
func Decode(env envelope.Envelope) (*Raster, error) {
	f, s, err := ParseHeader(env)
	if err != nil {
		return nil, err
	}
	data, ok := env.Bytes(envelope.KeyData)
	if !ok {
		return nil, errors.Wrapf(ErrFormat, "%q image without data", f)
	}

	switch f {
	case JPG:
		return decodeBitstream(data)
	case Raw, Both:
		if err := s.check(len(data)); err != nil {
			return nil, err
		}
		return &Raster{Rows: s.Rows, Cols: s.Cols, Channels: s.Channels, Pix: data}, nil
	default:
		return nil, errors.Wrapf(ErrFormat, "unknown type %q", f)
	}
}
