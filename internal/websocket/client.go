package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Outbound buffer per client
	defaultSendBufferSize = 256
)

// Options tunes per-client connection behavior. Zero values fall back to
// the package defaults.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	SendBufferSize int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = defaultSendBufferSize
	}
	return o
}

// Connection abstracts the underlying websocket connection so tests can
// substitute a mock.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub    *Hub
	conn   Connection
	fileID string

	// Buffered channel of outbound messages. sendMu serializes enqueues
	// against closeSend so a drop can never race a late delivery into a
	// send on a closed channel.
	send   chan []byte
	sendMu sync.Mutex
	closed bool

	opts        Options
	id          string
	remoteAddr  string
	connectedAt time.Time
	logger      *slog.Logger
}

// NewClient creates a client bound to a file id's update stream
func NewClient(hub *Hub, conn Connection, fileID string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	id := uuid.New().String()
	return &Client{
		hub:         hub,
		conn:        conn,
		fileID:      fileID,
		send:        make(chan []byte, opts.SendBufferSize),
		opts:        opts,
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("file_id", fileID),
		),
	}
}

// enqueue attempts a non-blocking delivery to the client's outbound
// buffer. Returns false if the client is closed or the buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once. Safe to call
// concurrently with enqueue.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// inboundMessage is the shape of messages clients may send us
type inboundMessage struct {
	Type string `json:"type"`
}

// ReadPump pumps messages from the websocket connection. The only
// inbound message handled is a ping, answered with a pong; everything
// else is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.logger.Info("websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unsubscribe(c.fileID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close",
					slog.String("error", err.Error()))
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.hub.SendTo(c, Pong(c.fileID))
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	// Ping with room to spare before the peer's pong deadline
	ticker := time.NewTicker((c.opts.PongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("error writing to websocket",
					slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS registers a new client on the hub and starts its pumps
func ServeWS(hub *Hub, conn Connection, fileID string, opts Options, logger *slog.Logger) *Client {
	client := NewClient(hub, conn, fileID, opts, logger)
	hub.Subscribe(fileID, client)

	go client.WritePump()
	go client.ReadPump()

	return client
}
