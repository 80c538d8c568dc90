// Package command implements named request/response commands that
// components expose on their MQTT root.
package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Command errors.
var (
	ErrCommandNotFound   = errors.New("command not found")
	ErrCommandFailed     = errors.New("command execution failed")
	ErrInvalidParameters = errors.New("invalid command parameters")
	ErrDuplicateCommand  = errors.New("command already registered")
)

// Handler is the function signature for command handlers.
// The params map holds the decoded JSON request. Returns a response map
// (may be nil) or an error.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// DataType is the expected JSON type of a parameter.
type DataType uint8

const (
	DataTypeAny DataType = iota
	DataTypeBool
	DataTypeInt
	DataTypeNumber
	DataTypeString
	DataTypeSeconds
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{"any", "bool", "int", "number", "string", "seconds"}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// Metadata describes a command's properties.
type Metadata struct {
	// Name is the command name, also the last MQTT topic segment.
	Name string

	// Description is a human-readable description.
	Description string

	// Parameters describes the expected parameters.
	Parameters []ParameterMetadata

	// Response describes the response fields.
	Response []ParameterMetadata
}

// ParameterMetadata describes a command parameter or response field.
type ParameterMetadata struct {
	Name        string
	Type        DataType
	Required    bool
	Description string
}

// Command represents a command with its handler.
type Command struct {
	metadata *Metadata
	handler  Handler
}

// New creates a command with the given metadata and handler.
func New(meta *Metadata, handler Handler) *Command {
	return &Command{
		metadata: meta,
		handler:  handler,
	}
}

// Name returns the command name.
func (c *Command) Name() string {
	return c.metadata.Name
}

// Metadata returns the command metadata.
func (c *Command) Metadata() *Metadata {
	return c.metadata
}

// Invoke validates params and executes the handler.
func (c *Command) Invoke(ctx context.Context, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	if err := c.validateParameters(params); err != nil {
		return nil, err
	}
	if c.handler == nil {
		return nil, ErrCommandNotFound
	}
	return c.handler(ctx, params)
}

// validateParameters checks that required parameters are present and that
// every described parameter has the expected type.
func (c *Command) validateParameters(params map[string]any) error {
	for _, p := range c.metadata.Parameters {
		v, exists := params[p.Name]
		if !exists || v == nil {
			if p.Required {
				return fmt.Errorf("%w: missing %s", ErrInvalidParameters, p.Name)
			}
			continue
		}
		if !p.Type.accepts(v) {
			return fmt.Errorf("%w: %s must be %s", ErrInvalidParameters, p.Name, p.Type)
		}
	}
	return nil
}

func (d DataType) accepts(v any) bool {
	switch d {
	case DataTypeBool:
		_, ok := v.(bool)
		return ok
	case DataTypeInt:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case DataTypeNumber, DataTypeSeconds:
		_, ok := toFloat(v)
		return ok
	case DataTypeString:
		_, ok := v.(string)
		return ok
	default:
		return true
	}
}

// SetHandler sets or replaces the command handler.
func (c *Command) SetHandler(handler Handler) {
	c.handler = handler
}

// Int returns the integer parameter name. ok is false if it is absent.
func Int(params map[string]any, name string) (value int, ok bool, err error) {
	v, exists := params[name]
	if !exists || v == nil {
		return 0, false, nil
	}
	f, isNum := toFloat(v)
	if !isNum || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameters, name)
	}
	return int(f), true, nil
}

// maxSeconds is the longest duration a time.Duration can hold, in seconds.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// Seconds returns the duration parameter name given in seconds.
// ok is false if it is absent.
func Seconds(params map[string]any, name string) (value time.Duration, ok bool, err error) {
	v, exists := params[name]
	if !exists || v == nil {
		return 0, false, nil
	}
	f, isNum := toFloat(v)
	if !isNum || math.IsNaN(f) || f < 0 {
		return 0, false, fmt.Errorf("%w: %s must be a non-negative number of seconds", ErrInvalidParameters, name)
	}
	if f >= maxSeconds {
		return 0, false, fmt.Errorf("%w: %s must be below %.0f seconds", ErrInvalidParameters, name, maxSeconds)
	}
	return time.Duration(f * float64(time.Second)), true, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
