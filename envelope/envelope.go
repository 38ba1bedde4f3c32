// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package envelope implements the structured header carried in part 0 of
// every zipc message, and its msgpack and JSON encodings.
package envelope

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Well-known envelope fields.
const (
	KeyCommand    = "command"
	KeyType       = "type"
	KeyName       = "name"
	KeyDataFormat = "dataformat"
	KeyMeta       = "meta"
	KeyData       = "data"
	KeyBase64     = "base64"
)

// Envelope is a decoded message header. Nested maps are Envelope values too.
type Envelope map[string]interface{}

// Has reports whether key is a top-level field of e.
func (e Envelope) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// Keys returns the sorted top-level field names of e.
func (e Envelope) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns the nested envelope stored under key.
func (e Envelope) Map(key string) (Envelope, bool) {
	return asEnvelope(e[key])
}

// Bytes returns the binary (or string) field stored under key.
func (e Envelope) Bytes(key string) ([]byte, bool) {
	switch v := e[key].(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// String returns the string field stored under key.
func (e Envelope) String(key string) (string, bool) {
	switch v := e[key].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Int returns the integral field stored under key, whatever the width the
// peer encoded it with.
func (e Envelope) Int(key string) (int, bool) {
	return asInt(e[key])
}

// Clone returns a shallow copy of e.
func (e Envelope) Clone() Envelope {
	o := make(Envelope, len(e))
	for k, v := range e {
		o[k] = v
	}
	return o
}

func asEnvelope(v interface{}) (Envelope, bool) {
	switch v := v.(type) {
	case Envelope:
		return v, true
	case map[string]interface{}:
		return Envelope(v), true
	default:
		return nil, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case float32:
		return asInt(float64(v))
	case json.Number:
		n, err := strconv.Atoi(string(v))
		return n, err == nil
	default:
		return 0, false
	}
}
