package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/farmhub/farmhub-go/pkg/command"
)

// ErrPublishFailed is returned when the transport rejects a message.
var ErrPublishFailed = errors.New("mqtt publish failed")

// Transport moves raw payloads to and from the broker.
type Transport interface {
	Publish(topic string, payload []byte) bool
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// Root is a component's view of the broker.
type Root interface {
	// Prefix returns the full topic prefix of the root.
	Prefix() string

	// ForSuffix returns a child root under prefix/suffix.
	ForSuffix(suffix string) Root

	// Publish sends payload as JSON to prefix/topic.
	Publish(topic string, payload any) error

	// RegisterCommand exposes cmd under prefix/commands/<name>.
	RegisterCommand(cmd *command.Command) error

	// InvokeCommand runs a registered command locally.
	InvokeCommand(ctx context.Context, name string, params map[string]any) (map[string]any, error)
}

// TransportRoot implements Root on top of a Transport.
type TransportRoot struct {
	transport Transport
	prefix    string
	logger    *slog.Logger
	commands  *command.Registry
}

// NewRoot creates a root for prefix. A nil logger uses slog.Default().
func NewRoot(transport Transport, prefix string, logger *slog.Logger) *TransportRoot {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransportRoot{
		transport: transport,
		prefix:    strings.TrimSuffix(prefix, "/"),
		logger:    logger,
		commands:  command.NewRegistry(),
	}
}

// Prefix returns the full topic prefix.
func (r *TransportRoot) Prefix() string {
	return r.prefix
}

// ForSuffix returns a child root sharing the transport.
func (r *TransportRoot) ForSuffix(suffix string) Root {
	return NewRoot(r.transport, r.prefix+"/"+strings.Trim(suffix, "/"), r.logger)
}

// Publish marshals payload to JSON and sends it to prefix/topic.
func (r *TransportRoot) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	full := r.prefix + "/" + topic
	if !r.transport.Publish(full, data) {
		return fmt.Errorf("%w: %s", ErrPublishFailed, full)
	}
	r.logger.Debug("Published", slog.String("topic", full), slog.Int("bytes", len(data)))
	return nil
}

// RegisterCommand subscribes to the command topic of cmd.
func (r *TransportRoot) RegisterCommand(cmd *command.Command) error {
	if err := r.commands.Register(cmd); err != nil {
		return err
	}
	topic := r.prefix + "/commands/" + cmd.Name()
	r.logger.Info("Registering command", slog.String("topic", topic))
	return r.transport.Subscribe(topic, func(_ string, payload []byte) {
		r.handleCommand(cmd.Name(), payload)
	})
}

// InvokeCommand runs the command registered under name.
func (r *TransportRoot) InvokeCommand(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	return r.commands.Invoke(ctx, name, params)
}

// Commands returns the names of registered commands.
func (r *TransportRoot) Commands() []string {
	return r.commands.Names()
}

func (r *TransportRoot) handleCommand(name string, payload []byte) {
	params := map[string]any{}
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			r.logger.Warn("Invalid command payload",
				slog.String("command", name),
				slog.Any("error", err))
			r.respond(name, map[string]any{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	response, err := r.InvokeCommand(context.Background(), name, params)
	if err != nil {
		r.logger.Warn("Command failed",
			slog.String("command", name),
			slog.Any("error", err))
		r.respond(name, map[string]any{"error": err.Error()})
		return
	}
	if response == nil {
		response = map[string]any{}
	}
	r.respond(name, response)
}

func (r *TransportRoot) respond(name string, response map[string]any) {
	if err := r.Publish("responses/"+name, response); err != nil {
		r.logger.Error("Failed to publish command response",
			slog.String("command", name),
			slog.Any("error", err))
	}
}
