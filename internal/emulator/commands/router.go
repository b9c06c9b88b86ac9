// Package commands implements the Emulator's ?-command surface: parsing,
// routing, authorization with escalating warnings, per-sender rate limiting,
// and the audit trail behind it.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command is a parsed ?-command.
type Command struct {
	Name    string
	Args    []string
	RawText string
}

// ArgText returns the arguments joined back into one string, for commands
// like ?command that take free text.
func (c *Command) ArgText() string {
	return strings.Join(c.Args, " ")
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers use errors.Is to tell this expected case from
// real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// ErrUnknownCommand is returned by Route for a prefixed message whose name
// has no registered handler.
var ErrUnknownCommand = errors.New("unknown command")

// Handler handles one command.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers.
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a router for the given prefix ("?").
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a handler under a bare command name ("help", "sys").
func (r *Router) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// Known reports whether name has a registered handler.
func (r *Router) Known(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Parse splits a prefixed message into a Command.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	return &Command{
		Name:    strings.ToLower(parts[0]),
		Args:    parts[1:],
		RawText: text,
	}, nil
}

// Route parses text and invokes the matching handler.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s%s", ErrUnknownCommand, r.prefix, cmd.Name)
	}
	return handler(ctx, cmd, evt)
}
