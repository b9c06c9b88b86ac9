package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"maunium.net/go/mautrix/event"

	"github.com/rabit232/emulator/common/trace"
	"github.com/rabit232/emulator/internal/emulator/engine"
	"github.com/rabit232/emulator/internal/emulator/settings"
)

// RoomLister answers how many rooms the bot is in, for the ?sys report.
type RoomLister interface {
	JoinedRooms(ctx context.Context) ([]string, error)
}

// AuditStore persists command dispatches and the unauthorized-attempt
// counters. *store.Store satisfies it.
type AuditStore interface {
	WriteCommandAudit(ctx context.Context, traceID, senderMXID, command, args, result, errorMsg string) error
	BumpUnauthorized(ctx context.Context, senderMXID string) (int, error)
}

// restricted lists the commands gated behind the authorized-user list.
// ?help stays open to everyone.
var restricted = map[string]bool{
	"sys":     true,
	"status":  true,
	"command": true,
}

// Config wires the command surface's collaborators.
type Config struct {
	Engine   *engine.Engine
	Settings *settings.Manager
	Store    AuditStore
	Rooms    RoomLister
}

// Handlers is the command surface: a router plus the authorization, rate
// limiting, and audit wrapping around it.
type Handlers struct {
	router   *Router
	engine   *engine.Engine
	settings *settings.Manager
	store    AuditStore
	rooms    RoomLister
	limiter  *RateLimiter
}

// New builds the command surface and registers the built-in commands.
func New(cfg Config) *Handlers {
	sec := cfg.Settings.Security()
	h := &Handlers{
		router:   NewRouter("?"),
		engine:   cfg.Engine,
		settings: cfg.Settings,
		store:    cfg.Store,
		rooms:    cfg.Rooms,
		limiter:  NewRateLimiter(sec.MaxRequestsPerMinute, time.Minute),
	}

	h.router.Register("help", h.handleHelp)
	h.router.Register("sys", h.handleSys)
	h.router.Register("status", h.handleStatus)
	h.router.Register("command", h.handleCommand)
	return h
}

// Handle runs one message through the command surface. It returns the reply
// and true when the message was a command (including denials and unknown
// commands); (_, false) means the message is ordinary chat.
func (h *Handlers) Handle(ctx context.Context, text string, evt *event.Event) (string, bool) {
	cmd, err := h.router.Parse(text)
	if err != nil {
		if errors.Is(err, ErrNotACommand) {
			return "", false
		}
		return "Use ?help for available commands.", true
	}

	sender := evt.Sender.String()
	traceID := trace.GenerateID()
	ctx = trace.WithTraceID(ctx, traceID)

	sec := h.settings.Security()
	if sec.RateLimiting && !h.limiter.Allow(sender) {
		h.audit(ctx, traceID, sender, cmd, "rate_limited", "")
		return "You're sending commands too quickly. Please wait a moment.", true
	}

	if sec.CommandAuthorization && restricted[cmd.Name] && !h.settings.IsAuthorized(sender) {
		attempts, err := h.store.BumpUnauthorized(ctx, sender)
		if err != nil {
			slog.Error("commands: attempt counter failed", "trace_id", traceID, "err", err)
			attempts = 1
		}
		h.audit(ctx, traceID, sender, cmd, "denied", "")
		slog.Warn("commands: unauthorized attempt",
			"trace_id", traceID, "sender", sender, "command", cmd.Name, "attempts", attempts)
		return warningFor(attempts), true
	}

	reply, err := h.router.Route(ctx, text, evt)
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			h.audit(ctx, traceID, sender, cmd, "unknown", "")
			return fmt.Sprintf("Unknown command: ?%s. Use ?help for available commands.", cmd.Name), true
		}
		h.audit(ctx, traceID, sender, cmd, "error", err.Error())
		slog.Error("commands: handler failed", "trace_id", traceID, "command", cmd.Name, "err", err)
		return "Error processing command.", true
	}

	h.audit(ctx, traceID, sender, cmd, "success", "")
	return reply, true
}

func (h *Handlers) audit(ctx context.Context, traceID, sender string, cmd *Command, result, errorMsg string) {
	if err := h.store.WriteCommandAudit(ctx, traceID, sender, "?"+cmd.Name, cmd.ArgText(), result, errorMsg); err != nil {
		slog.Warn("commands: audit write failed", "trace_id", traceID, "err", err)
	}
}

func (h *Handlers) handleHelp(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return `**The Emulator Commands**

**Chat:**
- say 'emulator <message>' to chat with me
- !reset - clear conversation context

**General Commands:**
- ?help - show this help

**Authorized Commands** (restricted users only):
- ?sys - system status
- ?status - bot status
- ?command <action> - execute actions

**Examples:**
- ?command open ms paint and draw a house
- emulator tell me about quantum computing
- emulator what are your capabilities?

I am The Emulator, an advanced AI system with emotional intelligence, ` +
		`multi-language programming support, and sophisticated reasoning capabilities. ` +
		`How may I assist you today?`, nil
}

// handleSys reports host and bot health, the Go analogue of the original
// psutil report.
func (h *Handlers) handleSys(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var b strings.Builder
	b.WriteString("**System Status**\n\n")

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		fmt.Fprintf(&b, "**CPU:** %.1f%%\n", percents[0])
	} else {
		b.WriteString("**CPU:** unavailable\n")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Fprintf(&b, "**Memory:** %.1f%% (%dGB / %dGB)\n",
			vm.UsedPercent, vm.Used>>30, vm.Total>>30)
	} else {
		b.WriteString("**Memory:** unavailable\n")
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		fmt.Fprintf(&b, "**Disk:** %.1f%% (%dGB / %dGB)\n",
			du.UsedPercent, du.Used>>30, du.Total>>30)
	} else {
		b.WriteString("**Disk:** unavailable\n")
	}

	if h.rooms != nil {
		if rooms, err := h.rooms.JoinedRooms(ctx); err == nil {
			fmt.Fprintf(&b, "**Matrix Rooms:** %d\n", len(rooms))
		}
	}

	b.WriteString("**Status:** Operational")
	return b.String(), nil
}

func (h *Handlers) handleStatus(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	stats := h.engine.SessionStats()
	snap := h.engine.EmotionSnapshot()
	traits := h.engine.PersonalityTraits()

	var b strings.Builder
	b.WriteString("**The Emulator Status**\n\n")
	b.WriteString("**Core Status:** Operational\n")
	fmt.Fprintf(&b, "**Dominant Emotion:** %s\n", snap.Dominant)
	fmt.Fprintf(&b, "**Active Emotions:** %d\n", stats.ActiveEmotions)
	fmt.Fprintf(&b, "**Requests Handled:** %d\n", stats.Requests)
	fmt.Fprintf(&b, "**Knowledge Entries:** %d\n", stats.KnowledgeEntries)
	fmt.Fprintf(&b, "**Logged Interactions:** %d\n", stats.Interactions)

	b.WriteString("\n**Capabilities:**\n")
	for _, capability := range h.engine.Capabilities() {
		fmt.Fprintf(&b, "- %s\n", capability)
	}

	fmt.Fprintf(&b, "\n**Personality:** %s\n", strings.Join(traits.CoreTraits, ", "))
	fmt.Fprintf(&b, "**Session ID:** %s", stats.SessionID)
	return b.String(), nil
}

// handleCommand runs the requested action through the decision pipeline and
// reports the analysis. Nothing is actually executed on the host.
func (h *Handlers) handleCommand(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	action := cmd.ArgText()
	if action == "" {
		return "Usage: ?command <action>", nil
	}

	decision := h.engine.GetDecision("Execute this action: " + action)
	return fmt.Sprintf("**Action Analysis:** %s\n\n**AI Response:** %s\n\n"+
		"*Note: actual system execution requires additional security implementation.*",
		action, decision), nil
}
