// Copyright 2024 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package envelope

// ParameterType is the numeric "type" tag discriminating the messages
// sharing a channel.
type ParameterType int

// The command tag must equal the COMMAND parameter type of the peer.
// Peers using another value are served with zipc.WithCommandTag.
const (
	TagControl ParameterType = 5 // legacy acquisition control messages
	TagCommand ParameterType = 6 // named commands
)

// CommandType enumerates the legacy acquisition control commands.
type CommandType int

const (
	Exit CommandType = iota
	StartAcquisition
	StopAcquisition
	Connect
	SoftwareTrigger
	CameraCommand
)

func (c CommandType) String() string {
	switch c {
	case Exit:
		return "EXIT"
	case StartAcquisition:
		return "START_ACQUISITION"
	case StopAcquisition:
		return "STOP_ACQUISITION"
	case Connect:
		return "CONNECT"
	case SoftwareTrigger:
		return "SOFTWARE_TRIGGER"
	case CameraCommand:
		return "CAMERA_COMMAND"
	default:
		return "UNKNOWN"
	}
}

// Command returns the envelope of the named command. Extra fields are copied
// first, so "command" and "type" can't be overridden by them.
func Command(name string, fields map[string]interface{}) Envelope {
	return TaggedCommand(TagCommand, name, fields)
}

// TaggedCommand is like Command with an explicit type tag.
func TaggedCommand(tag ParameterType, name string, fields map[string]interface{}) Envelope {
	env := make(Envelope, len(fields)+2)
	for k, v := range fields {
		env[k] = v
	}
	env[KeyCommand] = name
	env[KeyType] = int(tag)
	return env
}

// Control returns the envelope of a legacy control command.
func Control(cmd CommandType, name string) Envelope {
	return Envelope{
		KeyType:    int(TagControl),
		KeyCommand: int(cmd),
		KeyName:    name,
	}
}

// IsCommand reports whether env is a named command envelope.
func IsCommand(env Envelope) bool {
	tag, ok := env.Int(KeyType)
	return ok && ParameterType(tag) == TagCommand && env.Has(KeyCommand)
}
