// Package api defines the control commands exchanged between flare processes.
//
// A Command is a closed sum type. On the wire it is JSON with externally
// tagged variants: unit variants are a bare string ("Show") and data variants
// are a single-key object ({"Obfuscate":true}).
package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/runger/flare/internal/errs"
)

// Kind names a Command variant.
type Kind string

const (
	KindShow           Kind = "Show"
	KindClear          Kind = "Clear"
	KindClearAwaiting  Kind = "ClearAwaiting"
	KindObfuscate      Kind = "Obfuscate"
	KindInputOnly      Kind = "InputOnly"
	KindPipe           Kind = "Pipe"
	KindDisplayRaw     Kind = "DisplayRaw"
	KindSwitchMode     Kind = "SwitchMode"
	KindRegisterSocket Kind = "RegisterSocket"
	KindError          Kind = "Error"
)

// Command is one control message. Only the field belonging to Kind is set.
type Command struct {
	Kind    Kind
	Flag    bool        // Obfuscate
	Payload string      // Pipe, DisplayRaw
	Mode    string      // SwitchMode
	Path    *string     // RegisterSocket; nil means "unregister"
	Err     *errs.Error // Error
}

func Show() Command          { return Command{Kind: KindShow} }
func Clear() Command         { return Command{Kind: KindClear} }
func ClearAwaiting() Command { return Command{Kind: KindClearAwaiting} }
func InputOnly() Command     { return Command{Kind: KindInputOnly} }

func Obfuscate(on bool) Command         { return Command{Kind: KindObfuscate, Flag: on} }
func Pipe(payload string) Command       { return Command{Kind: KindPipe, Payload: payload} }
func DisplayRaw(payload string) Command { return Command{Kind: KindDisplayRaw, Payload: payload} }
func SwitchMode(mode string) Command    { return Command{Kind: KindSwitchMode, Mode: mode} }

// RegisterSocket registers path as the reply socket; nil clears it.
func RegisterSocket(path *string) Command { return Command{Kind: KindRegisterSocket, Path: path} }

// Error carries a failure raised outside the consumer.
func Error(err *errs.Error) Command { return Command{Kind: KindError, Err: err} }

func (c Command) String() string {
	switch c.Kind {
	case KindObfuscate:
		return fmt.Sprintf("Obfuscate(%t)", c.Flag)
	case KindPipe, KindDisplayRaw:
		return fmt.Sprintf("%s(%d bytes)", c.Kind, len(c.Payload))
	case KindSwitchMode:
		return fmt.Sprintf("SwitchMode(%s)", c.Mode)
	case KindRegisterSocket:
		if c.Path == nil {
			return "RegisterSocket(none)"
		}
		return fmt.Sprintf("RegisterSocket(%s)", *c.Path)
	case KindError:
		if c.Err == nil {
			return "Error(<nil>)"
		}
		return fmt.Sprintf("Error(%s)", c.Err.Kind)
	case "":
		return "<invalid>"
	default:
		return string(c.Kind)
	}
}

func (c Command) isUnit() bool {
	switch c.Kind {
	case KindShow, KindClear, KindClearAwaiting, KindInputOnly:
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.isUnit() {
		return sonic.Marshal(string(c.Kind))
	}

	var value any
	switch c.Kind {
	case KindObfuscate:
		value = c.Flag
	case KindPipe, KindDisplayRaw:
		value = c.Payload
	case KindSwitchMode:
		value = c.Mode
	case KindRegisterSocket:
		value = c.Path
	case KindError:
		if c.Err == nil {
			return nil, errors.New("error command without error value")
		}
		value = c.Err
	default:
		return nil, fmt.Errorf("unknown command kind %q", c.Kind)
	}
	return sonic.Marshal(map[string]any{string(c.Kind): value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Command) UnmarshalJSON(data []byte) error {
	var unit string
	if err := sonic.Unmarshal(data, &unit); err == nil {
		cmd := Command{Kind: Kind(unit)}
		if !cmd.isUnit() {
			return fmt.Errorf("unknown unit command %q", unit)
		}
		*c = cmd
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("command must be a string or single-key object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("command object must have exactly one key, got %d", len(tagged))
	}

	for key, raw := range tagged {
		cmd := Command{Kind: Kind(key)}
		var err error
		switch cmd.Kind {
		case KindShow, KindClear, KindClearAwaiting, KindInputOnly:
			// {"Show":null} is accepted as an alternate unit spelling.
		case KindObfuscate:
			err = sonic.Unmarshal(raw, &cmd.Flag)
		case KindPipe, KindDisplayRaw:
			err = sonic.Unmarshal(raw, &cmd.Payload)
		case KindSwitchMode:
			err = sonic.Unmarshal(raw, &cmd.Mode)
		case KindRegisterSocket:
			err = sonic.Unmarshal(raw, &cmd.Path)
		case KindError:
			var e errs.Error
			if err = sonic.Unmarshal(raw, &e); err == nil {
				if e.Kind == "" {
					err = errors.New("error command without kind")
				}
				cmd.Err = &e
			}
		default:
			return fmt.Errorf("unknown command kind %q", key)
		}
		if err != nil {
			return fmt.Errorf("invalid %s payload: %w", key, err)
		}
		*c = cmd
	}
	return nil
}

// Encode serializes cmd for the control socket.
func Encode(cmd Command) ([]byte, error) {
	data, err := sonic.Marshal(cmd)
	if err != nil {
		return nil, errs.Wrap(errs.Serialize, "failed to encode command", err)
	}
	return data, nil
}

// Decode parses a serialized Command.
func Decode(data []byte) (Command, error) {
	var cmd Command
	if err := sonic.Unmarshal(data, &cmd); err != nil {
		return Command{}, errs.Wrap(errs.Deserialize, "failed to decode command", err)
	}
	return cmd, nil
}
