// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Scheme prepares the local resources of a listening end-point.
type Scheme interface {
	// BeforeListen runs before the socket binds to addr.
	BeforeListen(addr string) error
	// AfterListen runs once the socket is bound to addr.
	AfterListen(addr string) error
}

// Schemes returns the sorted list of currently registered end-point schemes.
func Schemes() []string {
	return schemes.names()
}

// RegisterScheme registers a new end-point scheme with the zipc package.
// The scheme must also be known to the socket implementation.
func RegisterScheme(name string, s Scheme) error {
	return schemes.add(name, s)
}

type schemeRegistry struct {
	sync.RWMutex
	db map[string]Scheme
}

func (r *schemeRegistry) get(name string) (Scheme, bool) {
	r.RLock()
	defer r.RUnlock()

	v, ok := r.db[name]
	return v, ok
}

func (r *schemeRegistry) add(name string, s Scheme) error {
	r.Lock()
	defer r.Unlock()

	if old, dup := r.db[name]; dup {
		return errors.Errorf("zipc: duplicate scheme %q (%T)", name, old)
	}
	r.db[name] = s
	return nil
}

func (r *schemeRegistry) names() []string {
	r.RLock()
	defer r.RUnlock()

	o := make([]string, 0, len(r.db))
	for k := range r.db {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

var schemes = schemeRegistry{
	db: make(map[string]Scheme),
}

func init() {
	must := func(err error) {
		if err != nil {
			panic(errors.Wrap(err, "zipc"))
		}
	}

	must(RegisterScheme("ipc", ipcScheme{}))
	must(RegisterScheme("tcp", netScheme{}))
	must(RegisterScheme("udp", netScheme{}))
	must(RegisterScheme("inproc", netScheme{}))
}

// netScheme needs no local preparation.
type netScheme struct{}

func (netScheme) BeforeListen(string) error { return nil }
func (netScheme) AfterListen(string) error  { return nil }

// ipcPerm is applied to the socket directory and file so that peers running
// under other users can connect.
const ipcPerm os.FileMode = 0o777

// ipcScheme creates the directory of a unix socket and opens up its permissions.
// Abstract sockets ("ipc://@name") live outside the filesystem and are left alone.
type ipcScheme struct{}

func (ipcScheme) BeforeListen(addr string) error {
	if isAbstract(addr) {
		return nil
	}
	if fi, err := os.Lstat(addr); err == nil && fi.Mode()&os.ModeSocket != 0 {
		// stale socket file left by a crashed process.
		if err := os.Remove(addr); err != nil {
			return errors.Wrapf(err, "zipc: could not remove stale ipc socket %q", addr)
		}
	}
	dir := filepath.Dir(addr)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, ipcPerm); err != nil {
		return errors.Wrapf(err, "zipc: could not create ipc directory %q", dir)
	}
	// MkdirAll is subject to the umask.
	if err := os.Chmod(dir, ipcPerm); err != nil {
		return errors.Wrapf(err, "zipc: could not chmod ipc directory %q", dir)
	}
	return nil
}

func (ipcScheme) AfterListen(addr string) error {
	if isAbstract(addr) {
		return nil
	}
	if err := os.Chmod(addr, ipcPerm); err != nil {
		return errors.Wrapf(err, "zipc: could not chmod ipc socket %q", addr)
	}
	return nil
}

func isAbstract(addr string) bool {
	return strings.HasPrefix(addr, "@")
}
