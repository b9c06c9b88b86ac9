// Package matrix provides the Emulator's Matrix transport: login, the sync
// loop with reconnection back-off, invite auto-join, and message sending.
// Message semantics (triggers, commands, context) live in the app layer; this
// package only moves events in and text out.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver string
	// Username is the full Matrix user ID (@emulator:example.org).
	Username string
	// Password logs in with m.login.password when AccessToken is empty.
	Password string
	// AccessToken skips the login call when set.
	AccessToken string
	// BotName is the spoken trigger word, used in the room welcome message.
	BotName string
	// AutoJoinRooms enables accepting room invites.
	AutoJoinRooms bool
	// DB is an optional SQLite connection used to persist the sync token
	// across restarts. When nil, history replays on every restart.
	DB *sql.DB
}

// MessageHandler processes incoming text messages.
type MessageHandler func(ctx context.Context, evt *event.Event)

// Reconnect delays for the sync loop. A sync that stays up for at least
// healthySyncAge before failing resets the ladder to backoffMin.
const (
	backoffMin     = 2 * time.Second
	backoffMax     = 5 * time.Minute
	healthySyncAge = time.Minute
)

// nextBackoff doubles the reconnect delay, capped at backoffMax.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > backoffMax {
		return backoffMax
	}
	return d
}

// Client wraps the mautrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	startedAt  time.Time
	msgHandler MessageHandler
}

// New creates a Matrix client. When an access token is configured the client
// is ready immediately; otherwise Start performs a password login first.
func New(config *Config) (*Client, error) {
	var userID id.UserID
	if config.AccessToken != "" {
		userID = id.UserID(config.Username)
	}
	client, err := mautrix.NewClient(config.Homeserver, userID, config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}

	if config.DB != nil {
		client.Store = newSyncStore(config.DB)
		slog.Info("matrix: using persistent sync store")
	} else {
		slog.Warn("matrix: no database configured, sync token is in-memory and history will replay on restart")
	}

	return &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}, nil
}

// Start logs in if needed, registers event handlers, and launches the sync
// loop in the background. The loop reconnects with exponential back-off; a
// transient homeserver error must not leave the bot deaf.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler
	c.startedAt = time.Now()

	if c.config.AccessToken == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	if c.config.AutoJoinRooms {
		syncer.OnEventType(event.StateMember, c.handleMembership)
	}

	go func() {
		backoff := backoffMin
		for {
			started := time.Now()
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				// A sync that survived for a while means the connection
				// recovered; the next failure starts the ladder over.
				if time.Since(started) >= healthySyncAge {
					backoff = backoffMin
				}
				slog.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff = nextBackoff(backoff)
				continue
			}
			// Sync returns nil only after a clean StopSync.
			return
		}
	}()

	return nil
}

// login performs an m.login.password flow and keeps the returned credentials
// on the client.
func (c *Client) login(ctx context.Context) error {
	resp, err := c.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: c.config.Username,
		},
		Password:                 c.config.Password,
		InitialDeviceDisplayName: "emulator-matrix-bot",
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}
	slog.Info("matrix: logged in", "user_id", resp.UserID, "device_id", resp.DeviceID)
	return nil
}

// Stop shuts down the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// UserID returns the bot's own user ID. Only valid after login.
func (c *Client) UserID() string {
	return c.client.UserID.String()
}

// StartedAt returns when the sync loop was started.
func (c *Client) StartedAt() time.Time {
	return c.startedAt
}

// JoinedRooms returns the rooms the bot is currently in.
func (c *Client) JoinedRooms(ctx context.Context) ([]string, error) {
	resp, err := c.client.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list joined rooms: %w", err)
	}
	rooms := make([]string, 0, len(resp.JoinedRooms))
	for _, r := range resp.JoinedRooms {
		rooms = append(rooms, r.String())
	}
	return rooms, nil
}

// SendMessage sends a plain text message to a room.
func (c *Client) SendMessage(ctx context.Context, roomID, message string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendFormattedMessage sends an HTML message with a plain text fallback.
func (c *Client) SendFormattedMessage(ctx context.Context, roomID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("send formatted message: %w", err)
	}
	return nil
}

// SendNotice sends a notice, which clients render less intrusively and other
// bots conventionally ignore.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator while a response is being composed.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

// handleMessage forwards incoming text messages to the registered handler.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == c.client.UserID {
		return
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText {
		return
	}
	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// handleMembership auto-joins rooms the bot is invited to and greets them.
func (c *Client) handleMembership(ctx context.Context, evt *event.Event) {
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != c.client.UserID.String() {
		return
	}

	slog.Info("matrix: invited to room", "room", evt.RoomID, "inviter", evt.Sender)
	if err := c.joinRoom(ctx, evt.RoomID); err != nil {
		slog.Error("matrix: failed to join invited room", "room", evt.RoomID, "err", err)
		return
	}

	welcome := fmt.Sprintf("Greetings! I am The Emulator, an advanced AI system with "+
		"emotional intelligence and sophisticated reasoning capabilities. "+
		"Say '%s' to chat with me, or use ?help for commands.", c.config.BotName)
	if err := c.SendMessage(ctx, evt.RoomID.String(), welcome); err != nil {
		slog.Warn("matrix: welcome message failed", "room", evt.RoomID, "err", err)
	}
}

// joinRoom joins a room, tolerating the M_FORBIDDEN the homeserver returns
// when the bot is already a member.
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	if _, err := c.client.JoinRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("matrix: join denied or already a member", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
