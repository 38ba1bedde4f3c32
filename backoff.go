// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"context"
	"math"
	"time"
)

// Backoff describes the delay between two command send attempts.
// The zero value disables waiting.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff is used by SendCommand unless WithRetryBackoff is given.
var DefaultBackoff = Backoff{
	Initial:    50 * time.Millisecond,
	Multiplier: 2,
	Max:        time.Second,
}

// Delay returns the wait before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if b.Initial <= 0 || n < 1 {
		return 0
	}
	mul := b.Multiplier
	if mul < 1 {
		mul = 1
	}
	d := float64(b.Initial) * math.Pow(mul, float64(n-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
