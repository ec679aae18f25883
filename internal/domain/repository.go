package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
// Lookups return ErrNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	RecordLogin(ctx context.Context, id string, at time.Time, addressHash *string) error
}

// ContactRepository defines persistence operations for contact edges.
type ContactRepository interface {
	Create(ctx context.Context, c *Contact) error
	ListForOwner(ctx context.Context, ownerID string) ([]*Contact, error)
	Delete(ctx context.Context, ownerID, targetID string) error
}

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, m *DirectMessage) error
	ListBetween(ctx context.Context, userA, userB string) ([]*DirectMessage, error)
}

// GroupRepository defines persistence operations for groups and memberships.
type GroupRepository interface {
	Create(ctx context.Context, g *Group, memberIDs []string) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	AddMembers(ctx context.Context, groupID int64, userIDs []string) error
	IsMember(ctx context.Context, groupID int64, userID string) (bool, error)
	ListMembers(ctx context.Context, groupID int64) ([]*GroupMember, error)
	ListForUser(ctx context.Context, userID string) ([]*Group, error)
}

// GroupMessageRepository defines persistence operations for group messages.
type GroupMessageRepository interface {
	Create(ctx context.Context, m *GroupMessage) error
	ListForGroup(ctx context.Context, groupID int64) ([]*GroupMessage, error)
}
