// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging configures the zerolog loggers of the zipc programs.
package logging // import "github.com/go-zeromq/zipc/internal/logging"

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Environment variables overriding the logger configuration.
const (
	EnvLevel     = "ZIPC_LOG_LEVEL"
	EnvTimestamp = "ZIPC_LOG_TIMESTAMP"
	EnvNoColor   = "ZIPC_LOG_NOCOLOR"
)

// Profile describes how log records are rendered.
type Profile struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

// Runtime is the profile of the command-line programs.
func Runtime() Profile {
	return Profile{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
		Out:       os.Stderr,
	}
}

// Test is the profile of tests: quiet, uncoloured, no timestamps.
func Test() Profile {
	return Profile{
		Level:   zerolog.WarnLevel,
		NoColor: true,
		Out:     os.Stderr,
	}
}

// FromEnv applies the ZIPC_LOG_* environment variables to p.
func (p Profile) FromEnv() (Profile, error) {
	return p.from(os.LookupEnv)
}

func (p Profile) from(lookup func(string) (string, bool)) (Profile, error) {
	if v, ok := lookup(EnvLevel); ok && v != "" {
		lvl, err := ParseLevel(v)
		if err != nil {
			return p, err
		}
		p.Level = lvl
	}
	if v, ok := lookup(EnvTimestamp); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, errors.Wrapf(err, "logging: invalid %s", EnvTimestamp)
		}
		p.Timestamp = b
	}
	if v, ok := lookup(EnvNoColor); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, errors.Wrapf(err, "logging: invalid %s", EnvNoColor)
		}
		p.NoColor = b
	}
	return p, nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "logging: invalid level %q", s)
	}
	return lvl, nil
}

// New returns a console logger rendering records as described by p.
func New(p Profile, app string) zerolog.Logger {
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    p.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !p.Timestamp {
		w.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(w).Level(p.Level).With()
	if p.Timestamp {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}

// Init installs a logger built from p as the global logger and enables
// stack traces of github.com/pkg/errors errors.
func Init(p Profile, app string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := New(p, app)
	log.Logger = logger
	return logger
}
