package chat

import (
	"context"
	"strings"
	"time"

	"epay/epay/sources/psql/models"

	"github.com/google/uuid"
)

type SavedReplyRepository interface {
	CreateSavedReply(ctx context.Context, reply *models.SavedReply) error
	ListSavedReplies(ctx context.Context) ([]models.SavedReply, error)
	DeleteSavedReply(ctx context.Context, id uuid.UUID) (bool, error)
}

// SavedReplyStore manages the workspace's canned replies.
type SavedReplyStore struct {
	repo    SavedReplyRepository
	timeout time.Duration
}

func NewSavedReplyStore(repo SavedReplyRepository, timeout time.Duration) *SavedReplyStore {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &SavedReplyStore{repo: repo, timeout: timeout}
}

// List returns replies newest first.
func (s *SavedReplyStore) List(ctx context.Context) ([]models.SavedReply, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	replies, err := s.repo.ListSavedReplies(ctx)
	if err != nil {
		return nil, storeErr("list_saved_replies", err)
	}
	return replies, nil
}

// Create stores a reply. Titles need not be unique.
func (s *SavedReplyStore) Create(ctx context.Context, title, body string) (*models.SavedReply, error) {
	if strings.TrimSpace(title) == "" {
		return nil, required("title")
	}
	if strings.TrimSpace(body) == "" {
		return nil, required("content")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply := &models.SavedReply{Title: title, Content: body}
	if err := s.repo.CreateSavedReply(ctx, reply); err != nil {
		return nil, storeErr("create_saved_reply", err)
	}
	return reply, nil
}

// Delete removes a reply. Deleting an id that is already gone succeeds.
func (s *SavedReplyStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repo.DeleteSavedReply(ctx, id); err != nil {
		return storeErr("delete_saved_reply", err)
	}
	return nil
}
