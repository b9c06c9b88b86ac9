package commands_test

import (
	"context"
	"errors"
	"testing"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/rabit232/emulator/internal/emulator/commands"
)

// TestParse pins the prefix handling and argument splitting.
func TestParse(t *testing.T) {
	r := commands.NewRouter("?")

	cmd, err := r.Parse("?command open ms paint and draw a house")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != "command" {
		t.Errorf("Name = %q", cmd.Name)
	}
	if got := cmd.ArgText(); got != "open ms paint and draw a house" {
		t.Errorf("ArgText = %q", got)
	}

	cmd, err = r.Parse("  ?HELP  ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != "help" || len(cmd.Args) != 0 {
		t.Errorf("cmd = %+v", cmd)
	}
}

// TestParseNotACommand verifies the sentinel for ordinary chat.
func TestParseNotACommand(t *testing.T) {
	r := commands.NewRouter("?")

	if _, err := r.Parse("hello there"); !errors.Is(err, commands.ErrNotACommand) {
		t.Errorf("Parse(chat) error = %v, want ErrNotACommand", err)
	}
	if _, err := r.Parse("?"); err == nil {
		t.Error("Parse(bare prefix) should fail")
	}
}

// TestRoute verifies dispatch and the unknown-command sentinel.
func TestRoute(t *testing.T) {
	r := commands.NewRouter("?")
	r.Register("ping", func(ctx context.Context, cmd *commands.Command, evt *event.Event) (string, error) {
		return "pong", nil
	})

	evt := &event.Event{Sender: id.UserID("@u:example.org")}

	got, err := r.Route(context.Background(), "?ping", evt)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got != "pong" {
		t.Errorf("Route = %q", got)
	}

	if _, err := r.Route(context.Background(), "?nope", evt); !errors.Is(err, commands.ErrUnknownCommand) {
		t.Errorf("Route(unknown) error = %v, want ErrUnknownCommand", err)
	}

	if !r.Known("ping") || r.Known("nope") {
		t.Error("Known misreported registrations")
	}
}
