// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is the benign "try again" condition: a send deadline or
	// receive timeout expired before the socket could complete the operation.
	ErrTimeout = errors.New("zipc: operation timed out")

	// ErrClosed is returned by operations on a closed Binding or Client.
	ErrClosed = errors.New("zipc: closed")

	// ErrNoQueue is reported by Enqueue when queued sending is disabled.
	ErrNoQueue = errors.New("zipc: queued sending is not enabled")

	// ErrRetriesExhausted is returned by SendCommand after MaxAttempts failed sends.
	ErrRetriesExhausted = errors.New("zipc: retries exhausted")

	// ErrAmbiguous is reported by a strict Router when an envelope matches
	// more than one registered key.
	ErrAmbiguous = errors.New("zipc: envelope matches several routes")

	errInvalidAddress = errors.New("zipc: invalid address")
	errInvalidType    = errors.New("zipc: unsupported socket type")
)

// failurePrefix starts every failure acknowledgement sent to a peer.
const failurePrefix = "failed to process request: "

// PeerError is a failure acknowledgement received from the peer.
type PeerError struct {
	Reason string
}

func (e *PeerError) Error() string {
	return "zipc: peer failure: " + e.Reason
}

// ParseFailure reports whether reply is a failure acknowledgement and
// returns it.
func ParseFailure(reply []byte) (*PeerError, bool) {
	s := string(reply)
	if !strings.HasPrefix(s, failurePrefix) {
		return nil, false
	}
	return &PeerError{Reason: strings.TrimPrefix(s, failurePrefix)}, true
}

// IsBenign reports whether err is the transient busy condition that callers
// retry locally without reconnecting.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
