package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"securechat/internal/domain"
)

type ContactService struct {
	users    domain.UserRepository
	contacts domain.ContactRepository
}

func NewContactService(users domain.UserRepository, contacts domain.ContactRepository) *ContactService {
	return &ContactService{users: users, contacts: contacts}
}

type ContactRecord struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// AddEdge records that owner tracks the user named targetUsername.
// The reverse edge is not implied.
func (s *ContactService) AddEdge(ctx context.Context, ownerID, targetUsername string) (*domain.Contact, error) {
	target, err := s.users.GetByUsername(ctx, strings.TrimSpace(targetUsername))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	if target.ID == ownerID {
		return nil, fmt.Errorf("%w: cannot add yourself as a contact", domain.ErrInvalidInput)
	}

	c := &domain.Contact{
		OwnerID:        ownerID,
		TargetID:       target.ID,
		TargetUsername: target.Username,
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContactService) ListEdges(ctx context.Context, ownerID string) ([]ContactRecord, error) {
	contacts, err := s.contacts.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	res := make([]ContactRecord, 0, len(contacts))
	for _, c := range contacts {
		res = append(res, ContactRecord{Username: c.TargetUsername, UserID: c.TargetID})
	}
	return res, nil
}

func (s *ContactService) RemoveEdge(ctx context.Context, ownerID, targetID string) error {
	return s.contacts.Delete(ctx, ownerID, targetID)
}
