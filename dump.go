// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"os"
	"path/filepath"
)

// Diagnostic copies of messages the receive loop could not process.
// Each file holds the raw bytes of the last offending message part 0.
const (
	DumpUnhashable = "unhashable_msgpack.bin"
	DumpMalformed  = "msgpack_error_raw.bin"
	DumpFailed     = "failed_message.bin"
)

// dump writes data to name under the diagnostics directory.
// An empty directory disables dumps.
func (c *Client) dump(name string, data []byte) {
	if c.cfg.dumpDir == "" {
		return
	}
	fname := filepath.Join(c.cfg.dumpDir, name)
	if err := os.WriteFile(fname, data, 0o644); err != nil {
		c.log.Warn().Err(err).Str("file", fname).Msg("could not write diagnostics")
		return
	}
	c.log.Debug().Str("file", fname).Int("bytes", len(data)).Msg("wrote diagnostics")
}
