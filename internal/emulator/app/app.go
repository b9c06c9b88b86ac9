// Package app wires the Emulator together: settings, the SQLite store, the
// knowledge base, the decision engine, the command surface, and the Matrix
// transport, plus the message pipeline connecting them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"maunium.net/go/mautrix/event"

	"github.com/rabit232/emulator/internal/emulator/commands"
	"github.com/rabit232/emulator/internal/emulator/emotion"
	"github.com/rabit232/emulator/internal/emulator/engine"
	"github.com/rabit232/emulator/internal/emulator/knowledge"
	"github.com/rabit232/emulator/internal/emulator/matrix"
	"github.com/rabit232/emulator/internal/emulator/memory"
	"github.com/rabit232/emulator/internal/emulator/settings"
	"github.com/rabit232/emulator/internal/emulator/store"
)

// DefaultBotName is the spoken trigger when none is configured.
const DefaultBotName = "ribit.2.0"

// Config carries the process-level inputs the settings file cannot hold.
type Config struct {
	// SettingsPath locates the settings file.
	SettingsPath string
	// DBPath locates the SQLite database.
	DBPath string
	// Password and AccessToken are the Matrix credentials; exactly one is
	// needed. They come from the environment, never from the settings file.
	Password    string
	AccessToken string
	// BotName overrides the spoken trigger word.
	BotName string
}

// App is the assembled bot.
type App struct {
	settings *settings.Manager
	store    *store.Store
	engine   *engine.Engine
	context  *memory.Tracker
	client   *matrix.Client
	handlers *commands.Handlers
	botName  string
}

// New assembles the application from config.
func New(config *Config) (*App, error) {
	cfg := settings.Load(config.SettingsPath)
	emulatorCfg := cfg.Emulator()
	matrixCfg := cfg.Matrix()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: emulatorCfg.LogLevel,
	})))

	db, err := store.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Personality: emulatorCfg.Personality,
		Registry:    mustRegistry(),
		Knowledge:   knowledge.Open(emulatorCfg.KnowledgeFile),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	botName := config.BotName
	if botName == "" {
		botName = DefaultBotName
	}

	client, err := matrix.New(&matrix.Config{
		Homeserver:    matrixCfg.Homeserver,
		Username:      matrixCfg.Username,
		Password:      config.Password,
		AccessToken:   config.AccessToken,
		BotName:       botName,
		AutoJoinRooms: matrixCfg.AutoJoinRooms,
		DB:            db.DB(),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build matrix client: %w", err)
	}

	a := &App{
		settings: cfg,
		store:    db,
		engine:   eng,
		context:  memory.NewTracker(emulatorCfg.MaxContextLength),
		client:   client,
		botName:  botName,
	}
	a.handlers = commands.New(commands.Config{
		Engine:   eng,
		Settings: cfg,
		Store:    db,
		Rooms:    client,
	})
	return a, nil
}

// Run starts the Matrix sync loop and blocks until an interrupt signal.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync", "bot_name", a.botName, "session_id", a.engine.SessionID())
	if err := a.client.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("start matrix client: %w", err)
	}

	slog.Info("the Emulator is running; press Ctrl+C to stop",
		"personality", a.engine.Personality())

	a.announce(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop tears the application down.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.client.Stop()

	slog.Info("closing database")
	a.store.Close()
}

// announce posts a startup notice to every joined room. Notices are used so
// other bots ignore the announcement. Best effort: a failed room is logged
// and skipped.
func (a *App) announce(ctx context.Context) {
	rooms, err := a.client.JoinedRooms(ctx)
	if err != nil {
		slog.Warn("startup announcement skipped", "err", err)
		return
	}
	text := fmt.Sprintf("The Emulator is online. Say '%s' to chat, or use ?help for commands.", a.botName)
	for _, roomID := range rooms {
		if err := a.client.SendNotice(ctx, roomID, text); err != nil {
			slog.Warn("startup announcement failed", "room", roomID, "err", err)
		}
	}
}

// handleMessage is the message pipeline: filter, clean, then route to the
// command surface, the context reset, or the decision engine.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}
	body := msg.Body
	sender := evt.Sender.String()
	roomID := evt.RoomID.String()

	if a.settings.IsBlocked(sender) {
		slog.Debug("dropping message from blocked user", "sender", sender)
		return
	}
	if !a.isForBot(body) {
		return
	}

	clean := a.cleanMessage(body)

	// Best-effort typing indicator while the reply is prepared.
	if err := a.client.SetTyping(ctx, roomID, true, 10*time.Second); err == nil {
		defer a.client.SetTyping(ctx, roomID, false, 0)
	}

	if reply, handled := a.handlers.Handle(ctx, clean, evt); handled {
		a.send(ctx, roomID, reply)
		return
	}

	if strings.Contains(strings.ToLower(clean), "!reset") {
		a.context.Reset(roomID)
		a.send(ctx, roomID, "Conversation context reset. How may I assist you?")
		return
	}

	a.context.AddUser(roomID, clean)
	response := a.engine.GetDecision(clean)
	a.context.AddBot(roomID, response)

	a.send(ctx, roomID, response)
}

// isForBot reports whether a room message is addressed to the bot: its name,
// the word "emulator", a ?-command, or a context reset.
func (a *App) isForBot(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, strings.ToLower(a.botName)) ||
		strings.Contains(lowered, "emulator") ||
		strings.HasPrefix(strings.TrimSpace(message), "?") ||
		strings.Contains(lowered, "!reset")
}

// cleanMessage strips bot name mentions so the engine sees only the prompt.
func (a *App) cleanMessage(message string) string {
	clean := removeWordFold(message, a.botName)
	clean = removeWordFold(clean, "emulator")
	return strings.TrimSpace(clean)
}

// removeWordFold removes case-insensitive occurrences of word from s. The
// scan works rune by rune: case mapping can change a rune's byte length, so
// byte offsets found in a lowered copy must never be applied to the original.
func removeWordFold(s, word string) string {
	target := []rune(strings.ToLower(word))
	if len(target) == 0 {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	for i := 0; i < len(runes); {
		if foldMatchAt(runes, i, target) {
			i += len(target)
			continue
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

// foldMatchAt reports whether the runes at position at lower-case to target,
// which is already lower-cased.
func foldMatchAt(runes []rune, at int, target []rune) bool {
	if at+len(target) > len(runes) {
		return false
	}
	for j, want := range target {
		if unicode.ToLower(runes[at+j]) != want {
			return false
		}
	}
	return true
}

// send delivers a reply, rendering the handlers' Markdown subset as HTML
// with the raw text as fallback.
func (a *App) send(ctx context.Context, roomID, text string) {
	if text == "" {
		return
	}
	var err error
	if strings.Contains(text, "**") || strings.Contains(text, "```") || strings.Contains(text, "`") {
		err = a.client.SendFormattedMessage(ctx, roomID, markdownToHTML(text), text)
	} else {
		err = a.client.SendMessage(ctx, roomID, text)
	}
	if err != nil {
		slog.Error("failed to send reply", "room", roomID, "err", err)
	}
}

// mustRegistry loads the embedded emotion table. The table ships inside the
// binary, so a load failure is a build defect.
func mustRegistry() *emotion.Registry {
	reg, err := emotion.NewRegistry()
	if err != nil {
		panic(fmt.Sprintf("load emotion registry: %v", err))
	}
	return reg
}
