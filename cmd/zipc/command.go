// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-zeromq/zipc/envelope"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var commandFlags struct {
	fields []string
}

var commandCmd = &cobra.Command{
	Use:   "command <name>",
	Short: "Send a command and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(commandFlags.fields)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, format, err := openClient(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.SendCommand(ctx, args[0], fields, format)
		if err != nil {
			return errors.Wrapf(err, "command %q failed after %d attempt(s)", args[0], res.Attempts)
		}
		if res.Reply == nil {
			return nil
		}
		out, err := json.Marshal(printable(res.Reply))
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", res.Reply)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
		return nil
	},
}

// parseFields parses k=v pairs. Values are integers, floats or booleans
// when they parse as such, strings otherwise.
func parseFields(kvs []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		i := strings.Index(kv, "=")
		if i <= 0 {
			return nil, errors.Errorf("invalid field %q (want key=value)", kv)
		}
		k, v := kv[:i], kv[i+1:]
		switch {
		case isInt(v):
			n, _ := strconv.ParseInt(v, 10, 64)
			fields[k] = n
		case isFloat(v):
			f, _ := strconv.ParseFloat(v, 64)
			fields[k] = f
		case v == "true" || v == "false":
			fields[k] = v == "true"
		default:
			fields[k] = v
		}
	}
	return fields, nil
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// printable converts byte slices to strings for display.
func printable(v interface{}) interface{} {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case envelope.Envelope:
		return printable(map[string]interface{}(v))
	case map[string]interface{}:
		o := make(map[string]interface{}, len(v))
		for k, e := range v {
			o[k] = printable(e)
		}
		return o
	case []interface{}:
		o := make([]interface{}, len(v))
		for i, e := range v {
			o[i] = printable(e)
		}
		return o
	default:
		return v
	}
}

func init() {
	commandCmd.Flags().StringArrayVar(&commandFlags.fields, "field", nil, "extra command field as key=value (repeatable)")
	rootCmd.AddCommand(commandCmd)
}
