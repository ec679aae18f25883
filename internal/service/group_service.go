package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"securechat/internal/domain"
	"securechat/internal/feed"
	"securechat/internal/security"
)

// GroupService manages groups, their membership and group messages.
// Only members may post to or read a group.
type GroupService struct {
	users     domain.UserRepository
	groups    domain.GroupRepository
	messages  domain.GroupMessageRepository
	encryptor *security.Encryptor
	pub       publisher
}

func NewGroupService(
	users domain.UserRepository,
	groups domain.GroupRepository,
	messages domain.GroupMessageRepository,
	encryptor *security.Encryptor,
	broker feed.Broker,
) *GroupService {
	return &GroupService{
		users:     users,
		groups:    groups,
		messages:  messages,
		encryptor: encryptor,
		pub:       publisher{broker: broker},
	}
}

type GroupCreateInput struct {
	Name        string
	Description *string
	// CreatorID, when set, becomes the first member.
	CreatorID string
}

type GroupRecord struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
}

type GroupMessageRecord struct {
	ID             int64  `json:"id"`
	GroupID        int64  `json:"group_id"`
	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

func (s *GroupService) CreateGroup(ctx context.Context, in GroupCreateInput) (*domain.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return nil, fmt.Errorf("%w: group name exceeds %d characters", domain.ErrInvalidInput, MaxGroupNameLength)
	}

	g := &domain.Group{Name: name, Description: in.Description}
	var members []string
	if in.CreatorID != "" {
		members = []string{in.CreatorID}
	}
	if err := s.groups.Create(ctx, g, members); err != nil {
		return nil, err
	}
	return g, nil
}

// AddMembers adds every listed user to the group in one transaction.
// Repeated ids and existing members are ignored.
func (s *GroupService) AddMembers(ctx context.Context, groupID int64, userIDs []string) error {
	return s.groups.AddMembers(ctx, groupID, dedupe(userIDs))
}

func (s *GroupService) SendGroupMessage(ctx context.Context, groupID int64, senderID, content string) (*GroupMessageRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	if err := s.CheckMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender: %w", err)
	}

	enc, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	m := &domain.GroupMessage{
		GroupID:  groupID,
		SenderID: sender.ID,
		Content:  enc,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	rec := &GroupMessageRecord{
		ID:             m.ID,
		GroupID:        groupID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Content:        content,
		Timestamp:      m.CreatedAt.UTC().Format(TimestampLayout),
	}
	s.pub.publish(ctx, feed.TypeGroupMessage, feed.GroupTopic(groupID), rec)
	return rec, nil
}

// GroupHistory returns the group's messages oldest first. The reader must be
// a member.
func (s *GroupService) GroupHistory(ctx context.Context, groupID int64, userID string) ([]*GroupMessageRecord, error) {
	if err := s.CheckMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	names := usernameCache{users: s.users}
	res := make([]*GroupMessageRecord, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, &GroupMessageRecord{
			ID:             m.ID,
			GroupID:        m.GroupID,
			SenderID:       m.SenderID,
			SenderUsername: names.lookup(ctx, m.SenderID),
			Content:        decryptOrRaw(s.encryptor, m.Content),
			Timestamp:      m.CreatedAt.UTC().Format(TimestampLayout),
		})
	}
	return res, nil
}

func (s *GroupService) ListGroupsForUser(ctx context.Context, userID string) ([]GroupRecord, error) {
	groups, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make([]GroupRecord, 0, len(groups))
	for _, g := range groups {
		res = append(res, GroupRecord{GroupID: g.ID, Name: g.Name})
	}
	return res, nil
}

func (s *GroupService) ListMembers(ctx context.Context, groupID int64) ([]*domain.GroupMember, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.groups.ListMembers(ctx, groupID)
}

func (s *GroupService) IsMember(ctx context.Context, groupID int64, userID string) (bool, error) {
	return s.groups.IsMember(ctx, groupID, userID)
}

// CheckMember returns ErrGroupNotFound for an unknown group and
// ErrNotGroupMember when userID is not in it.
func (s *GroupService) CheckMember(ctx context.Context, groupID int64, userID string) error {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	ok, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check member: %w", err)
	}
	if !ok {
		return domain.ErrNotGroupMember
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
