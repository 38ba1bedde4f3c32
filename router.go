// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"sync"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zipc/raster"
	"github.com/pkg/errors"
)

// Request is a received message handed to a Handler.
type Request struct {
	// Envelope is the decoded part 0, with part 1 attached as "data" and
	// part 2 as "base64".
	Envelope envelope.Envelope
	// Key is the route key that selected the handler.
	Key string
	// Frames are the raw message parts.
	Frames [][]byte

	peer int
}

// Peer returns the peer identifier of the endpoint, if one was configured.
func (req *Request) Peer() (int, bool) {
	return req.peer, req.peer >= 0
}

// Raster decodes the image carried by the request.
func (req *Request) Raster() (*raster.Raster, error) {
	return raster.Decode(req.Envelope)
}

// Handler processes a request. A non-nil result is sent back to peers
// expecting a reply: []byte as is, anything else msgpack-encoded.
type Handler interface {
	ServeMessage(ctx context.Context, req *Request) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (interface{}, error)

// ServeMessage calls f(ctx, req).
func (f HandlerFunc) ServeMessage(ctx context.Context, req *Request) (interface{}, error) {
	return f(ctx, req)
}

// ImageHandlerFunc handles messages carrying an image.
type ImageHandlerFunc func(ctx context.Context, req *Request, img *raster.Raster) (interface{}, error)

// ServeMessage decodes the image of req and calls f.
func (f ImageHandlerFunc) ServeMessage(ctx context.Context, req *Request) (interface{}, error) {
	img, err := req.Raster()
	if err != nil {
		return nil, errors.Wrapf(err, "zipc: could not decode %q image", req.Key)
	}
	return f(ctx, req, img)
}

type route struct {
	key string
	h   Handler
}

// Router dispatches envelopes on the presence of a top-level key.
//
// Routes are tried in registration order and the first key present in the
// envelope wins. A Strict router rejects envelopes matching several keys
// with ErrAmbiguous instead.
type Router struct {
	Strict bool

	mu     sync.RWMutex
	routes []route
	index  map[string]int
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{index: make(map[string]int)}
}

// Handle registers h for envelopes holding key. Registering a key twice
// replaces its handler and keeps its original position.
func (r *Router) Handle(key string, h Handler) {
	if key == "" {
		panic("zipc: empty route key")
	}
	if h == nil {
		panic("zipc: nil handler for " + key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, dup := r.index[key]; dup {
		r.routes[i].h = h
		return
	}
	r.index[key] = len(r.routes)
	r.routes = append(r.routes, route{key: key, h: h})
}

// HandleFunc registers f for envelopes holding key.
func (r *Router) HandleFunc(key string, f func(ctx context.Context, req *Request) (interface{}, error)) {
	r.Handle(key, HandlerFunc(f))
}

// HandleImage registers f for image envelopes holding key.
func (r *Router) HandleImage(key string, f ImageHandlerFunc) {
	r.Handle(key, f)
}

// Keys returns the route keys in dispatch order.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.routes))
	for i, rt := range r.routes {
		keys[i] = rt.key
	}
	return keys
}

// match returns the route selected by env.
func (r *Router) match(env envelope.Envelope) (route, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found route
		ok    bool
	)
	for _, rt := range r.routes {
		if !env.Has(rt.key) {
			continue
		}
		if !ok {
			found, ok = rt, true
			if !r.Strict {
				break
			}
			continue
		}
		return route{}, false, errors.Wrapf(ErrAmbiguous, "keys %q and %q", found.key, rt.key)
	}
	return found, ok, nil
}
