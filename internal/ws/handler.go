package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"securechat/internal/domain"
	"securechat/internal/feed"
	"securechat/internal/security"
)

// GroupMembership answers whether a user may follow a group topic.
type GroupMembership interface {
	IsMember(ctx context.Context, groupID int64, userID string) (bool, error)
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, wildcard := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			// Non-browser clients send no Origin; they still need a token.
			return true
		}
		if wildcard {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// inbound is a client frame. A subscription target is given either as a
// topic or as a peer user id or group id from which the topic is derived.
type inbound struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	UserID  string `json:"user_id"`
	GroupID int64  `json:"group_id"`
}

func (in inbound) topic(self string) string {
	switch {
	case in.Topic != "":
		return in.Topic
	case in.UserID != "":
		return feed.DirectTopic(self, in.UserID)
	case in.GroupID != 0:
		return feed.GroupTopic(in.GroupID)
	}
	return ""
}

// authorizeTopic allows a direct topic only to one of its two users and a
// group topic only to group members.
func authorizeTopic(ctx context.Context, groups GroupMembership, userID, topic string) error {
	kind, parts, ok := feed.ParseTopic(topic)
	if !ok {
		return fmt.Errorf("%w: unknown topic %q", domain.ErrInvalidInput, topic)
	}
	switch kind {
	case "dm":
		if feed.DirectTopic(parts[0], parts[1]) != topic {
			return fmt.Errorf("%w: direct topic must list ids in order", domain.ErrInvalidInput)
		}
		if parts[0] != userID && parts[1] != userID {
			return domain.ErrUnauthorized
		}
		return nil
	case "group":
		id, _ := strconv.ParseInt(parts[0], 10, 64)
		member, err := groups.IsMember(ctx, id, userID)
		if err != nil {
			return err
		}
		if !member {
			return domain.ErrNotGroupMember
		}
		return nil
	}
	return domain.ErrInvalidInput
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then serves frames:
//   - subscribe   -> follow a direct or group topic after an access check
//   - unsubscribe -> stop following a topic
//   - ping        -> pong
//
// Every event published on a followed topic is forwarded as {"type":"event"}.
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	groups GroupMembership,
	broker feed.Broker,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		logger := zerolog.Ctx(ctx)

		user, err := users.GetByID(ctx, sub)
		if err != nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := newClient(user.ID, conn)
		hub.Register(client)
		defer func() {
			hub.Unregister(client)
			client.Close()
		}()
		go client.writePump()

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			var in inbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Str("user_id", user.ID).Msg("ws read failed")
				}
				return
			}

			switch in.Type {
			case "subscribe":
				topic := in.topic(user.ID)
				if err := authorizeTopic(ctx, groups, user.ID, topic); err != nil {
					client.sendError(subscribeErrorMessage(err))
					continue
				}
				if err := client.subscribe(ctx, broker, topic); err != nil {
					logger.Error().Err(err).Str("topic", topic).Msg("ws subscribe failed")
					client.sendError("subscribe failed")
					continue
				}
				client.enqueue(frame{Type: "subscribed", Topic: topic})

			case "unsubscribe":
				topic := in.topic(user.ID)
				client.unsubscribe(topic)
				client.enqueue(frame{Type: "unsubscribed", Topic: topic})

			case "ping":
				client.enqueue(frame{Type: "pong"})

			default:
				client.sendError(fmt.Sprintf("unknown frame type %q", in.Type))
			}
		}
	}
}

func subscribeErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid topic"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotGroupMember):
		return "not allowed for this topic"
	}
	return "subscribe failed"
}
