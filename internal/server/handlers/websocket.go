// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"civicpulse/internal/adapter/events"
	"civicpulse/internal/logging"
)

// Subscriber is the subset of *nats.Conn used by the rollup feed
type Subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware
		return true
	},
}

// feedClient is one dashboard connection on the rollup feed
type feedClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	region string
	sub    *nats.Subscription
	config WebSocketConfig
	logger *zap.Logger
	once   sync.Once
}

// RollupFeedHandler relays rollup events from NATS to WebSocket clients.
// The optional region query parameter restricts the feed to one region.
func RollupFeedHandler(subscriber Subscriber, logger *zap.Logger) http.HandlerFunc {
	logger = logging.OrNop(logger)

	return func(w http.ResponseWriter, r *http.Request) {
		region := r.URL.Query().Get("region")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
			return
		}

		client := &feedClient{
			conn:   conn,
			send:   make(chan []byte, 64),
			done:   make(chan struct{}),
			region: region,
			config: DefaultWebSocketConfig(),
			logger: logger,
		}

		sub, err := subscriber.Subscribe(events.SubjectRollupUpserted, client.deliver)
		if err != nil {
			logger.Error("Failed to subscribe to rollup events", zap.Error(err))
			client.close()
			return
		}
		client.sub = sub

		go client.writePump()
		go client.readPump()

		logger.Debug("Rollup feed connected", zap.String("region", region))
	}
}

// deliver forwards a NATS message when it matches the client's region.
// Slow clients drop events instead of blocking the NATS dispatcher.
func (c *feedClient) deliver(msg *nats.Msg) {
	if !matchesRegion(msg.Data, c.region) {
		return
	}

	select {
	case <-c.done:
	case c.send <- msg.Data:
	default:
		c.logger.Warn("Dropping rollup event for slow client", zap.String("region", c.region))
	}
}

// matchesRegion reports whether a rollup event belongs to region.
// An empty region matches everything.
func matchesRegion(data []byte, region string) bool {
	if region == "" {
		return true
	}

	var event events.RollupEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return false
	}
	return event.Rollup.Region == region
}

// readPump drains the connection so pongs and close frames are processed
func (c *feedClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps events to the WebSocket connection
func (c *feedClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close unsubscribes and closes the connection once
func (c *feedClient) close() {
	c.once.Do(func() {
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		close(c.done)
		c.conn.Close()
	})
}
