package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"securechat/internal/feed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one WebSocket connection and the feed topics it follows.
// All writes go through the send queue; a client whose queue overflows is
// disconnected.
type Client struct {
	UserID string

	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]*feed.Subscription
}

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
		subs:   make(map[string]*feed.Subscription),
	}
}

type frame struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic,omitempty"`
	Message string      `json:"message,omitempty"`
	Event   *feed.Event `json:"event,omitempty"`
}

func (c *Client) enqueue(v any) {
	select {
	case <-c.done:
	case c.send <- v:
	default:
		c.Close()
	}
}

func (c *Client) sendError(msg string) {
	c.enqueue(frame{Type: "error", Message: msg})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribe starts forwarding topic events to the client. Subscribing twice
// to the same topic is a no-op.
func (c *Client) subscribe(ctx context.Context, broker feed.Broker, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return nil
	}
	sub, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	c.subs[topic] = sub

	go func() {
		for ev := range sub.C {
			ev := ev
			c.enqueue(frame{Type: "event", Topic: ev.Topic, Event: &ev})
		}
	}()
	return nil
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Close drops every subscription and closes the connection. Safe to call
// more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()

		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[string]*feed.Subscription)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.Close()
		}
	})
}
