// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command zipc exchanges commands and images with a zipc peer.
//
// Usage:
//
//	zipc serve   --addr ipc:///tmp/cam/frames --bind --type REP --save-dir ./frames
//	zipc command --addr tcp://127.0.0.1:5555 start --field exposure=12
//	zipc image   --addr tcp://127.0.0.1:5556 --type PAIR frame.jpg
package main // import "github.com/go-zeromq/zipc/cmd/zipc"

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-zeromq/zipc"
	"github.com/go-zeromq/zipc/envelope"
	"github.com/go-zeromq/zipc/internal/config"
	"github.com/go-zeromq/zipc/internal/logging"
	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	flags   struct {
		addr     string
		bind     bool
		typ      string
		format   string
		dumpDir  string
		logLevel string
	}

	// set during PersistentPreRunE
	cfg    config.File
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zipc",
	Short: "Exchange commands and images over ZeroMQ sockets",
	Long: `zipc is a command-line peer for zipc clients.
It serves incoming envelopes, sends commands and pushes images over
PAIR, REQ/REP and PUB/SUB sockets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}

		p, err := logging.Runtime().FromEnv()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || os.Getenv(logging.EnvLevel) == "" {
			lvl, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			p.Level = lvl
		}
		logger = logging.Init(p, "zipc")
		return nil
	},
}

func init() {
	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "TOML or YAML configuration file")
	pf.StringVar(&flags.addr, "addr", "", "end-point, e.g. tcp://127.0.0.1:5555")
	pf.BoolVar(&flags.bind, "bind", false, "listen on the end-point instead of dialing it")
	pf.StringVar(&flags.typ, "type", "", "socket type: PAIR, REQ, REP, PUB or SUB")
	pf.StringVar(&flags.format, "format", "", "envelope format: msgpack or json")
	pf.StringVar(&flags.dumpDir, "dump-dir", "", "directory receiving undecodable messages")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (default info)")
}

// loadConfig reads the configuration file, if any, and applies the flags
// explicitly set on cmd.
func loadConfig(cmd *cobra.Command) (config.File, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return cfg, err
		}
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overrides the configuration file with explicit flags.
func applyFlags(cmd *cobra.Command, cfg *config.File) {
	pf := cmd.Flags()
	if pf.Changed("addr") {
		cfg.Endpoint.Addr = flags.addr
	}
	if pf.Changed("bind") {
		cfg.Endpoint.Bind = flags.bind
	}
	if pf.Changed("type") {
		cfg.Endpoint.Type = strings.ToUpper(flags.typ)
	}
	if pf.Changed("format") {
		cfg.Format = flags.format
	}
	if pf.Changed("dump-dir") {
		cfg.DumpDir = flags.dumpDir
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
}

// openClient creates the client described by the configuration.
func openClient(ctx context.Context, queued bool) (*zipc.Client, envelope.Format, error) {
	ep, err := cfg.ZipcEndpoint()
	if err != nil {
		return nil, 0, err
	}
	ep.Queued = ep.Queued || queued
	format, err := cfg.CodecFormat()
	if err != nil {
		return nil, 0, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, 0, err
	}
	opts = append(opts, zipc.WithLogger(logger.With().Str("component", "zipc").Logger()))

	c, err := zipc.New(ctx, ep, opts...)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "could not open %s socket on %q", ep.Type, ep.Addr)
	}
	return c, format, nil
}

func defaultType(t zmq4.SocketType) {
	if cfgFile == "" && !rootCmd.PersistentFlags().Changed("type") {
		cfg.Endpoint.Type = string(t)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "zipc:", err)
		stop()
		os.Exit(1)
	}
}
