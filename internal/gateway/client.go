package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rteja-dev/trivia-bot/internal/trivia"
)

// event mirrors the chat backend's wire format for channel traffic.
type event struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
}

// outbound is what the bot writes back to the backend.
type outbound struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	Payload   any    `json:"payload,omitempty"`
}

// Client maintains one websocket connection to the chat backend. It tracks
// the latest message per channel, fans out coalesced new-message signals to
// session waiters, and feeds the full inbound stream to the command layer.
// Reconnection is the operator's job; a dropped connection surfaces as a
// channel read failure in every live session.
type Client struct {
	conn   *websocket.Conn
	selfID string
	logger zerolog.Logger

	mu      sync.RWMutex
	latest  map[string]trivia.Message
	waiters map[string][]chan struct{}

	writeMu sync.Mutex

	events    chan trivia.Message
	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ trivia.ChannelGateway = (*Client)(nil)
	_ trivia.Notifier       = (*Client)(nil)
)

// Dial connects to the chat backend and starts the read pump. selfID is the
// author id the backend assigns to this bot's own messages.
func Dial(ctx context.Context, rawURL, selfID string, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat gateway: %w", err)
	}
	c := newClient(conn, selfID, logger)
	go c.readPump()
	return c, nil
}

func newClient(conn *websocket.Conn, selfID string, logger zerolog.Logger) *Client {
	return &Client{
		conn:    conn,
		selfID:  selfID,
		logger:  logger,
		latest:  make(map[string]trivia.Message),
		waiters: make(map[string][]chan struct{}),
		events:  make(chan trivia.Message, 256),
		closed:  make(chan struct{}),
	}
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		var ev event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("gateway read error")
			}
			return
		}
		if ev.Type != "" && ev.Type != "message" {
			continue
		}

		msg := trivia.Message{
			ID:        ev.MessageID,
			ChannelID: ev.ChannelID,
			AuthorID:  ev.AuthorID,
			Text:      ev.Text,
		}

		c.mu.Lock()
		c.latest[ev.ChannelID] = msg
		waiters := append([]chan struct{}(nil), c.waiters[ev.ChannelID]...)
		c.mu.Unlock()

		for _, ch := range waiters {
			select {
			case ch <- struct{}{}:
			default:
				// Waiter already has a pending signal; it re-reads the
				// latest message anyway.
			}
		}

		select {
		case c.events <- msg:
		default:
			c.logger.Warn().Str("channel_id", ev.ChannelID).Msg("event stream full, dropping message")
		}
	}
}

// LatestMessage implements trivia.ChannelGateway. A nil message means the
// channel has no observed history yet.
func (c *Client) LatestMessage(_ context.Context, channelID string) (*trivia.Message, error) {
	select {
	case <-c.closed:
		return nil, fmt.Errorf("gateway connection closed")
	default:
	}

	c.mu.RLock()
	msg, ok := c.latest[channelID]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := msg
	return &out, nil
}

// Subscribe implements trivia.Notifier with a buffered, coalescing channel.
func (c *Client) Subscribe(channelID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.waiters[channelID] = append(c.waiters[channelID], ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.waiters[channelID]
		for i, w := range list {
			if w == ch {
				c.waiters[channelID] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Messages exposes the full inbound stream for the command layer.
func (c *Client) Messages() <-chan trivia.Message {
	return c.events
}

// Send writes one typed payload addressed to a channel.
func (c *Client) Send(channelID, kind string, payload any) error {
	select {
	case <-c.closed:
		return fmt.Errorf("gateway connection closed")
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(outbound{Type: kind, ChannelID: channelID, Payload: payload}); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

// SelfID returns the bot's own author id.
func (c *Client) SelfID() string {
	return c.selfID
}

// DMChannelID maps a user to their private channel, the backend's convention
// for bot-to-user direct messages.
func (c *Client) DMChannelID(userID string) string {
	return "dm:" + userID
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return c.conn.Close()
}
