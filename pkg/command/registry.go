package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the commands of one component, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds cmd. Registering the same name twice is an error.
func (r *Registry) Register(cmd *Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name())
	}
	r.commands[cmd.Name()] = cmd
	return nil
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the command registered under name.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	cmd, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return cmd.Invoke(ctx, params)
}
