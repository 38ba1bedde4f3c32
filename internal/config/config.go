// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the configuration files of the zipc command.
//
// Files are TOML or YAML, selected by extension:
//
//	format    = "msgpack"
//	dump_dir  = "/var/tmp/zipc"
//	log_level = "debug"
//	handlers  = ["frame", "command"]
//
//	[endpoint]
//	addr = "ipc:///tmp/zipc/frames"
//	bind = true
//	type = "REP"
package config // import "github.com/go-zeromq/zipc/internal/config"

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Endpoint is the socket section of a configuration file.
type Endpoint struct {
	Addr   string   `toml:"addr" yaml:"addr"`
	Bind   bool     `toml:"bind" yaml:"bind"`
	Type   string   `toml:"type" yaml:"type"`
	PeerID *int     `toml:"peer_id" yaml:"peer_id"`
	Queued bool     `toml:"queued" yaml:"queued"`
	Topics []string `toml:"topics" yaml:"topics"`
}

// Auth holds the ZMTP PLAIN credentials shared by both peers.
type Auth struct {
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
}

// File is the content of a configuration file.
type File struct {
	Endpoint    Endpoint `toml:"endpoint" yaml:"endpoint"`
	Auth        *Auth    `toml:"auth" yaml:"auth"`
	Format      string   `toml:"format" yaml:"format"`
	DumpDir     string   `toml:"dump_dir" yaml:"dump_dir"`
	LogLevel    string   `toml:"log_level" yaml:"log_level"`
	Handlers    []string `toml:"handlers" yaml:"handlers"`
	PixelsFirst bool     `toml:"pixels_first" yaml:"pixels_first"`
	RecvTimeout string   `toml:"recv_timeout" yaml:"recv_timeout"`
	SendTimeout string   `toml:"send_timeout" yaml:"send_timeout"`
	CommandTag  *int     `toml:"command_tag" yaml:"command_tag"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Endpoint: Endpoint{
			Addr: "tcp://127.0.0.1:5555",
			Type: string(zmq4.Req),
		},
		Format:   envelope.Msgpack.String(),
		DumpDir:  ".",
		LogLevel: "info",
	}
}

// Load reads the TOML or YAML file at path on top of the defaults and
// validates the result.
func Load(path string) (File, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "config: could not read file")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(raw, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		return cfg, errors.Errorf("config: unknown file extension %q", ext)
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "config: could not decode %q", path)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (f *File) normalize() {
	f.Endpoint.Addr = strings.TrimSpace(f.Endpoint.Addr)
	f.Endpoint.Type = strings.ToUpper(strings.TrimSpace(f.Endpoint.Type))
	handlers := f.Handlers[:0]
	for _, h := range f.Handlers {
		if h = strings.TrimSpace(h); h != "" {
			handlers = append(handlers, h)
		}
	}
	f.Handlers = handlers
}

// Validate checks the configuration is usable.
func (f File) Validate() error {
	if _, err := f.ZipcEndpoint(); err != nil {
		return err
	}
	if _, err := f.CodecFormat(); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := f.Options(); err != nil {
		return err
	}
	return nil
}

// ZipcEndpoint converts the endpoint section.
func (f File) ZipcEndpoint() (zipc.Endpoint, error) {
	ep := zipc.NewEndpoint(f.Endpoint.Addr, zmq4.SocketType(strings.ToUpper(f.Endpoint.Type)))
	ep.Bind = f.Endpoint.Bind
	ep.Queued = f.Endpoint.Queued
	ep.Topics = f.Endpoint.Topics
	if f.Endpoint.PeerID != nil {
		ep.PeerID = *f.Endpoint.PeerID
	}
	if err := ep.Validate(); err != nil {
		return ep, errors.Wrap(err, "config: invalid endpoint")
	}
	return ep, nil
}

// CodecFormat returns the envelope format.
func (f File) CodecFormat() (envelope.Format, error) {
	return envelope.ParseFormat(f.Format)
}

// Options returns the client options described by the file.
func (f File) Options() ([]zipc.Option, error) {
	opts := []zipc.Option{zipc.WithDumpDir(f.DumpDir)}
	if f.Auth != nil {
		if f.Auth.User == "" {
			return nil, errors.New("config: auth without user")
		}
		opts = append(opts, zipc.WithPlainAuth(f.Auth.User, f.Auth.Password))
	}
	if f.CommandTag != nil {
		opts = append(opts, zipc.WithCommandTag(envelope.ParameterType(*f.CommandTag)))
	}
	if f.PixelsFirst {
		opts = append(opts, zipc.WithPixelsFirst())
	}
	if f.RecvTimeout != "" {
		d, err := parseDuration("recv_timeout", f.RecvTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, zipc.WithRecvTimeout(d))
	}
	if f.SendTimeout != "" {
		d, err := parseDuration("send_timeout", f.SendTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, zipc.WithSendTimeout(d))
	}
	return opts, nil
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "config: invalid %s", name)
	}
	if d <= 0 {
		return 0, errors.Errorf("config: %s must be positive", name)
	}
	return d, nil
}
