// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zmq4"
)

func TestLoad(t *testing.T) {
	const (
		tomlFile = `
format    = "json"
dump_dir  = "/var/tmp/zipc"
log_level = "debug"
handlers  = ["frame", " ", "command"]
recv_timeout = "2s"
command_tag  = 7

[auth]
user     = "cam"
password = "secret"

[endpoint]
addr    = "ipc:///tmp/zipc/frames"
bind    = true
type    = "rep"
peer_id = 3
`
		yamlFile = `
format: json
dump_dir: /var/tmp/zipc
log_level: debug
handlers: [frame, command]
recv_timeout: 2s
command_tag: 7
auth:
  user: cam
  password: secret
endpoint:
  addr: ipc:///tmp/zipc/frames
  bind: true
  type: REP
  peer_id: 3
`
	)

	for _, tc := range []struct {
		name, content string
	}{
		{"zipc.toml", tomlFile},
		{"zipc.yaml", yamlFile},
		{"zipc.yml", yamlFile},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(t.TempDir(), tc.name)
			if err := os.WriteFile(fname, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(fname)
			if err != nil {
				t.Fatalf("could not load config: %+v", err)
			}

			ep, err := cfg.ZipcEndpoint()
			if err != nil {
				t.Fatalf("invalid endpoint: %+v", err)
			}
			want := zipc.Endpoint{
				Addr:   "ipc:///tmp/zipc/frames",
				Bind:   true,
				Type:   zmq4.Rep,
				PeerID: 3,
			}
			if !reflect.DeepEqual(ep, want) {
				t.Fatalf("invalid endpoint:\ngot= %+v\nwant=%+v", ep, want)
			}

			format, err := cfg.CodecFormat()
			if err != nil || format != envelope.JSON {
				t.Fatalf("invalid format: %v (err=%v)", format, err)
			}
			if got, want := cfg.Handlers, []string{"frame", "command"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid handlers: got=%q, want=%q", got, want)
			}
			if cfg.DumpDir != "/var/tmp/zipc" || cfg.LogLevel != "debug" {
				t.Fatalf("invalid file: %+v", cfg)
			}
			opts, err := cfg.Options()
			if err != nil {
				t.Fatalf("invalid options: %+v", err)
			}
			if cfg.Auth == nil || cfg.Auth.User != "cam" {
				t.Fatalf("invalid auth: %+v", cfg.Auth)
			}
			if cfg.CommandTag == nil || *cfg.CommandTag != 7 {
				t.Fatalf("invalid command tag: %v", cfg.CommandTag)
			}
			if got, want := len(opts), 4; got != want {
				t.Fatalf("invalid number of options: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(fname, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}
	ep, err := cfg.ZipcEndpoint()
	if err != nil {
		t.Fatalf("invalid endpoint: %+v", err)
	}
	if ep.Type != zmq4.Req || ep.Bind || ep.PeerID != zipc.NoPeer {
		t.Fatalf("invalid default endpoint: %+v", ep)
	}
	if format, _ := cfg.CodecFormat(); format != envelope.Msgpack {
		t.Fatalf("invalid default format: %v", format)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name, content string
	}{
		{"zipc.ini", "addr=tcp://127.0.0.1:5555"},
		{"bad-syntax.toml", "[endpoint"},
		{"bad-scheme.toml", "[endpoint]\naddr = \"http://example.com\""},
		{"bad-type.toml", "[endpoint]\ntype = \"DEALER\""},
		{"bad-format.yaml", "format: xml"},
		{"bad-timeout.yaml", "send_timeout: soon"},
		{"neg-timeout.yaml", "send_timeout: -1s"},
		{"no-user.yaml", "auth:\n  password: secret"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(t.TempDir(), tc.name)
			if err := os.WriteFile(fname, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(fname); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
