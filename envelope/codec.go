// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	// ErrMalformed reports a payload that is not a valid envelope.
	ErrMalformed = errors.New("envelope: malformed payload")

	// ErrUnhashableKey reports a map whose key is itself a map or an array.
	// Such payloads come from buggy senders and can't be represented.
	ErrUnhashableKey = errors.New("envelope: unhashable map key")
)

// Format selects the wire encoding of an envelope.
type Format int

const (
	Msgpack Format = iota // compact binary encoding
	JSON                  // human-readable text encoding
)

func (f Format) String() string {
	switch f {
	case Msgpack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "msgpack" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack", "binary":
		return Msgpack, nil
	case "json", "text":
		return JSON, nil
	default:
		return 0, errors.Errorf("envelope: unknown format %q", s)
	}
}

// Codec encodes and decodes envelopes.
type Codec interface {
	Format() Format
	// Marshal encodes any value: envelopes, replies, acknowledgements.
	Marshal(v interface{}) ([]byte, error)
	// Unmarshal decodes a top-level map.
	Unmarshal(data []byte) (Envelope, error)
	// UnmarshalValue decodes any value, maps becoming Envelope.
	UnmarshalValue(data []byte) (interface{}, error)
}

// Codec returns the codec for f.
func (f Format) Codec() Codec {
	if f == JSON {
		return jsonCodec{}
	}
	return msgpackCodec{}
}

// Marshal encodes v with the msgpack codec.
func Marshal(v interface{}) ([]byte, error) {
	return msgpackCodec{}.Marshal(v)
}

// Unmarshal decodes a msgpack envelope.
func Unmarshal(data []byte) (Envelope, error) {
	return msgpackCodec{}.Unmarshal(data)
}

type msgpackCodec struct{}

func (msgpackCodec) Format() Format { return Msgpack }

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "envelope: could not encode msgpack")
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Unmarshal(data []byte) (Envelope, error) {
	v, err := c.UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	env, ok := v.(Envelope)
	if !ok {
		return nil, errors.Wrapf(ErrMalformed, "top-level value is %T, not a map", v)
	}
	return env, nil
}

func (msgpackCodec) UnmarshalValue(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty payload")
	}
	r := bytes.NewReader(data)
	d := &decoder{r: r, dec: msgpack.NewDecoder(r)}

	v, err := d.value()
	switch {
	case err == nil:
	case errors.Is(err, ErrUnhashableKey), errors.Is(err, ErrMalformed):
		return nil, err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.Wrapf(ErrMalformed, "truncated payload of %d bytes", len(data))
	default:
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	if n := r.Len(); n != 0 {
		return nil, errors.Wrapf(ErrMalformed, "%d trailing bytes", n)
	}
	return v, nil
}

// decoder decodes msgpack values, turning maps at any depth into Envelopes.
//
// Container lengths are declared by the peer: a length larger than the
// bytes left in the payload is rejected before anything is allocated.
type decoder struct {
	r   *bytes.Reader // the decoder reads r directly, without buffering
	dec *msgpack.Decoder
}

func (d *decoder) value() (interface{}, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		return d.decodeMap()
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		return d.decodeArray()
	}
	return d.dec.DecodeInterface()
}

// checkLen rejects n elements of at least one byte each when fewer bytes
// remain.
func (d *decoder) checkLen(n int) error {
	if left := d.r.Len(); n > left {
		return errors.Wrapf(ErrMalformed, "declared length %d, only %d bytes left", n, left)
	}
	return nil
}

// decodeMap decodes a map. Non-string scalar keys are tolerated and
// rendered as strings.
func (d *decoder) decodeMap() (interface{}, error) {
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if err := d.checkLen(n); err != nil {
		return nil, err
	}
	m := make(Envelope, n)
	for i := 0; i < n; i++ {
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		key, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
	return m, nil
}

func (d *decoder) decodeArray() (interface{}, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if err := d.checkLen(n); err != nil {
		return nil, err
	}
	vs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func mapKey(k interface{}) (string, error) {
	switch k := k.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	case Envelope, map[string]interface{}, []interface{}:
		return "", errors.Wrapf(ErrUnhashableKey, "key of type %T", k)
	default:
		return fmt.Sprint(k), nil
	}
}

type jsonCodec struct{}

func (jsonCodec) Format() Format { return JSON }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "envelope: could not encode json")
	}
	return b, nil
}

func (c jsonCodec) Unmarshal(data []byte) (Envelope, error) {
	v, err := c.UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	env, ok := v.(Envelope)
	if !ok {
		return nil, errors.Wrapf(ErrMalformed, "top-level value is %T, not an object", v)
	}
	return env, nil
}

func (jsonCodec) UnmarshalValue(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	return fromJSON(v), nil
}

func fromJSON(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		m := make(Envelope, len(v))
		for k, e := range v {
			m[k] = fromJSON(e)
		}
		return m
	case []interface{}:
		for i, e := range v {
			v[i] = fromJSON(e)
		}
		return v
	default:
		return v
	}
}
