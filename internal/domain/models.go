package domain

import "time"

// User represents a registered account.
type User struct {
	ID             string     `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	HashedPassword string     `db:"hashed_password" json:"-"`
	RegisteredAt   time.Time  `db:"registered_at" json:"registration_date"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	AddressHash    *string    `db:"address_hash" json:"-"`
	UserAgent      *string    `db:"user_agent" json:"user_agent,omitempty"`
	Platform       *string    `db:"platform" json:"os,omitempty"`
}

// ClientMeta is the request metadata captured at registration and login.
// Address is the raw network address and must be hashed before it is stored.
type ClientMeta struct {
	Address   string
	UserAgent string
	Platform  string
}

// Contact is a one-directional "owner tracks target" edge.
type Contact struct {
	ID             int64     `db:"id"`
	OwnerID        string    `db:"owner_id"`
	TargetID       string    `db:"target_id"`
	TargetUsername string    `db:"target_username"`
	CreatedAt      time.Time `db:"created_at"`
}

// DirectMessage is an immutable message between two users.
type DirectMessage struct {
	ID         int64     `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Content    string    `db:"content"` // encrypted at rest
	CreatedAt  time.Time `db:"created_at"`
}

// Group is a named set of members sharing a message stream.
type Group struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GroupMember is the membership of a user in a group.
type GroupMember struct {
	GroupID  int64     `db:"group_id"`
	UserID   string    `db:"user_id"`
	Username string    `db:"username"`
	JoinedAt time.Time `db:"joined_at"`
}

// GroupMessage is an immutable message posted to a group.
type GroupMessage struct {
	ID        int64     `db:"id"`
	GroupID   int64     `db:"group_id"`
	SenderID  string    `db:"sender_id"`
	Content   string    `db:"content"` // encrypted at rest
	CreatedAt time.Time `db:"created_at"`
}
