package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmhub/farmhub-go/pkg/command"
)

func echoCommand() *command.Command {
	return command.New(&command.Metadata{
		Name: "echo",
		Parameters: []command.ParameterMetadata{
			{Name: "value", Type: command.DataTypeNumber, Required: true},
		},
	}, func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"value": params["value"]}, nil
	})
}

func decode(t *testing.T, msg Message) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out
}

func TestPublish(t *testing.T) {
	transport := NewMemoryTransport()
	root := NewRoot(transport, "farmhub/coop/", nil)

	require.NoError(t, root.Publish("events/state", map[string]any{"state": 1}))

	msgs := transport.Published("")
	require.Len(t, msgs, 1)
	assert.Equal(t, "farmhub/coop/events/state", msgs[0].Topic)
	assert.Equal(t, 1.0, decode(t, msgs[0])["state"])
}

func TestPublishOffline(t *testing.T) {
	transport := NewMemoryTransport()
	transport.SetOffline(true)
	root := NewRoot(transport, "farmhub", nil)

	err := root.Publish("telemetry", map[string]any{})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want %v", err, ErrPublishFailed)
	}
}

func TestPublishUnencodable(t *testing.T) {
	root := NewRoot(NewMemoryTransport(), "farmhub", nil)
	assert.Error(t, root.Publish("telemetry", map[string]any{"bad": make(chan int)}))
}

func TestForSuffix(t *testing.T) {
	transport := NewMemoryTransport()
	root := NewRoot(transport, "farmhub", nil)
	door := root.ForSuffix("/peripherals/door/")

	assert.Equal(t, "farmhub/peripherals/door", door.Prefix())
	require.NoError(t, door.Publish("telemetry", map[string]any{}))
	assert.Len(t, transport.Published("farmhub/peripherals/door/telemetry"), 1)
}

func TestCommandOverTransport(t *testing.T) {
	transport := NewMemoryTransport()
	root := NewRoot(transport, "farmhub/door", nil)
	require.NoError(t, root.RegisterCommand(echoCommand()))

	transport.Deliver("farmhub/door/commands/echo", []byte(`{"value": 42}`))

	responses := transport.Published("farmhub/door/responses/echo")
	require.Len(t, responses, 1)
	assert.Equal(t, 42.0, decode(t, responses[0])["value"])
}

func TestCommandErrorsAreReported(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"InvalidJSON", `{"value":`},
		{"MissingParameter", `{}`},
		{"EmptyPayload", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMemoryTransport()
			root := NewRoot(transport, "farmhub/door", nil)
			require.NoError(t, root.RegisterCommand(echoCommand()))

			transport.Deliver("farmhub/door/commands/echo", []byte(tt.payload))

			responses := transport.Published("responses/echo")
			require.Len(t, responses, 1)
			assert.Contains(t, decode(t, responses[0]), "error")
		})
	}
}

func TestRegisterCommandTwice(t *testing.T) {
	root := NewRoot(NewMemoryTransport(), "farmhub", nil)
	require.NoError(t, root.RegisterCommand(echoCommand()))

	err := root.RegisterCommand(echoCommand())
	if !errors.Is(err, command.ErrDuplicateCommand) {
		t.Errorf("RegisterCommand() error = %v, want %v", err, command.ErrDuplicateCommand)
	}
}

func TestInvokeCommandLocally(t *testing.T) {
	root := NewRoot(NewMemoryTransport(), "farmhub", nil)
	require.NoError(t, root.RegisterCommand(echoCommand()))

	resp, err := root.InvokeCommand(context.Background(), "echo", map[string]any{"value": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, resp["value"])
	assert.Equal(t, []string{"echo"}, root.Commands())
}
