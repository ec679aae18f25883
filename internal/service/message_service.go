package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"securechat/internal/domain"
	"securechat/internal/feed"
	"securechat/internal/security"
)

// TimestampLayout is the wire format of every record timestamp.
const TimestampLayout = time.RFC3339Nano

// MessageService is the delivery layer for direct messages: it resolves both
// participants, appends, and formats the stored record.
type MessageService struct {
	users     domain.UserRepository
	messages  domain.MessageRepository
	encryptor *security.Encryptor
	pub       publisher
}

func NewMessageService(
	users domain.UserRepository,
	messages domain.MessageRepository,
	encryptor *security.Encryptor,
	broker feed.Broker,
) *MessageService {
	return &MessageService{
		users:     users,
		messages:  messages,
		encryptor: encryptor,
		pub:       publisher{broker: broker},
	}
}

type MessageRecord struct {
	ID               int64  `json:"id"`
	SenderID         string `json:"sender_id"`
	SenderUsername   string `json:"sender"`
	ReceiverID       string `json:"receiver_id"`
	ReceiverUsername string `json:"receiver"`
	Content          string `json:"content"`
	Timestamp        string `json:"timestamp"`
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*MessageRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}

	sender, err := s.participant(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.participant(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	enc, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	m := &domain.DirectMessage{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    enc,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	rec := &MessageRecord{
		ID:               m.ID,
		SenderID:         sender.ID,
		SenderUsername:   sender.Username,
		ReceiverID:       receiver.ID,
		ReceiverUsername: receiver.Username,
		Content:          content,
		Timestamp:        m.CreatedAt.UTC().Format(TimestampLayout),
	}
	s.pub.publish(ctx, feed.TypeDirectMessage, feed.DirectTopic(sender.ID, receiver.ID), rec)
	return rec, nil
}

// History returns the conversation between a and b oldest first.
// History(a, b) and History(b, a) return the same sequence.
func (s *MessageService) History(ctx context.Context, userA, userB string) ([]*MessageRecord, error) {
	msgs, err := s.messages.ListBetween(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	res := make([]*MessageRecord, 0, len(msgs))
	if len(msgs) == 0 {
		return res, nil
	}

	names := usernameCache{users: s.users}
	for _, m := range msgs {
		res = append(res, &MessageRecord{
			ID:               m.ID,
			SenderID:         m.SenderID,
			SenderUsername:   names.lookup(ctx, m.SenderID),
			ReceiverID:       m.ReceiverID,
			ReceiverUsername: names.lookup(ctx, m.ReceiverID),
			Content:          decryptOrRaw(s.encryptor, m.Content),
			Timestamp:        m.CreatedAt.UTC().Format(TimestampLayout),
		})
	}
	return res, nil
}

func (s *MessageService) participant(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// decryptOrRaw returns the plaintext, or the stored value when it was not
// written by any known key.
func decryptOrRaw(e *security.Encryptor, stored string) string {
	if dec, err := e.Decrypt(stored); err == nil {
		return dec
	}
	return stored
}

type usernameCache struct {
	users domain.UserRepository
	names map[string]string
}

func (c *usernameCache) lookup(ctx context.Context, id string) string {
	if name, ok := c.names[id]; ok {
		return name
	}
	if c.names == nil {
		c.names = make(map[string]string)
	}
	var name string
	if u, err := c.users.GetByID(ctx, id); err == nil {
		name = u.Username
	}
	c.names[id] = name
	return name
}
