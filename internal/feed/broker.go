// Package feed fans appended chat records out to live subscribers.
// It is decoupled from the store: a failed publish never undoes an append.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	TypeDirectMessage = "direct_message"
	TypeGroupMessage  = "group_message"
)

var ErrClosed = errors.New("feed broker closed")

// Event is one record delivered on a topic.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// NewEvent marshals payload and stamps the event with a ULID.
func NewEvent(typ, topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Event{
		ID:      ulid.Make().String(),
		Type:    typ,
		Topic:   topic,
		Payload: raw,
		At:      time.Now().UTC(),
	}, nil
}

// Broker publishes events to topics and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// Subscription receives events for one topic until Close is called
// or the context passed to Subscribe is done.
type Subscription struct {
	Topic  string
	C      <-chan Event
	cancel func()
}

func (s *Subscription) Close() {
	s.cancel()
}

// DirectTopic is the same for (a, b) and (b, a).
func DirectTopic(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

func GroupTopic(groupID int64) string {
	return "group:" + strconv.FormatInt(groupID, 10)
}

// ParseTopic splits a topic into its kind ("dm" or "group") and parts.
func ParseTopic(topic string) (kind string, parts []string, ok bool) {
	fields := strings.Split(topic, ":")
	switch {
	case len(fields) == 3 && fields[0] == "dm" && fields[1] != "" && fields[2] != "":
		return "dm", fields[1:], true
	case len(fields) == 2 && fields[0] == "group" && fields[1] != "":
		if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
			return "", nil, false
		}
		return "group", fields[1:], true
	}
	return "", nil, false
}
