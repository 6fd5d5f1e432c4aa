// Package chat is the support inbox core: the message and saved reply
// stores, the conversation aggregator, and the roster and session
// controllers that keep an agent's view in sync with the live event bus.
package chat

import (
	"context"
	"strings"
	"time"

	"epay/epay/sources/psql/models"
	"epay/epay/sources/realtime"
	"epay/epay/sources/storage"
	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"go.uber.org/zap"
)

const DefaultOpTimeout = 10 * time.Second

// MessageRepository is the persistence the message store needs.
type MessageRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Message, error)
	Create(ctx context.Context, msg *models.Message) error
	Recent(ctx context.Context, limit int) ([]models.Message, error)
}

// BlobStore accepts a file and returns a durable public URL.
type BlobStore interface {
	Upload(ctx context.Context, f storage.File, bucket, folder string) (string, error)
}

type StoreOptions struct {
	Timeout     time.Duration
	ImageBucket string // empty means the blob store default
	ImageFolder string
}

// MessageStore is the agent-side access layer over the message log.
type MessageStore struct {
	repo  MessageRepository
	blobs BlobStore
	bus   realtime.Bus
	opts  StoreOptions
}

func NewMessageStore(repo MessageRepository, blobs BlobStore, bus realtime.Bus, opts StoreOptions) *MessageStore {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOpTimeout
	}
	if opts.ImageFolder == "" {
		opts.ImageFolder = "chat"
	}
	return &MessageStore{repo: repo, blobs: blobs, bus: bus, opts: opts}
}

func (s *MessageStore) withTimeout(ctx context.Context, op string) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	timer := metrics.StoreLatency.WithLabelValues(op)
	start := time.Now()
	return ctx, func() {
		timer.Observe(time.Since(start).Seconds())
		cancel()
	}
}

// ListMessages returns the user's log ascending by timestamp.
func (s *MessageStore) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	if userID == "" {
		return nil, required("user_id")
	}
	ctx, done := s.withTimeout(ctx, "list_messages")
	defer done()

	msgs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list_messages", err)
	}
	return msgs, nil
}

// AppendMessage stores an agent-authored message and announces it on the
// bus. A failed announcement is logged only: the row is already durable.
func (s *MessageStore) AppendMessage(ctx context.Context, userID, content string, imageRef *string) (*models.Message, error) {
	if userID == "" {
		return nil, required("user_id")
	}
	if strings.TrimSpace(content) == "" {
		return nil, required("content")
	}
	if imageRef != nil && *imageRef == "" {
		imageRef = nil
	}

	msg := &models.Message{
		UserID:   userID,
		IsAdmin:  true,
		Content:  &content,
		ImageURL: imageRef,
	}

	insertCtx, done := s.withTimeout(ctx, "append_message")
	err := s.repo.Create(insertCtx, msg)
	done()
	if err != nil {
		return nil, storeErr("append_message", err)
	}

	kind := "text"
	if imageRef != nil {
		kind = "image"
	}
	metrics.MessagesSent.WithLabelValues(kind).Inc()

	s.announce(ctx, msg)
	return msg, nil
}

func (s *MessageStore) announce(ctx context.Context, msg *models.Message) {
	if s.bus == nil {
		return
	}
	event, err := realtime.NewInsertEvent(realtime.TableMessages, msg)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		err = s.bus.Publish(pubCtx, event)
		cancel()
	}
	if err != nil {
		logging.ErrorLogger.Error("failed to publish message insert",
			zap.String("message_id", msg.ID.String()),
			zap.String("user_id", msg.UserID),
			zap.Error(err))
	}
}

// UploadAttachment stores f in the blob store under the chat folder.
func (s *MessageStore) UploadAttachment(ctx context.Context, f storage.File) (string, error) {
	if f.Body == nil {
		return "", required("file")
	}
	if s.blobs == nil {
		return "", &UploadError{Op: "upload_attachment", Err: errNoBlobStore}
	}
	ctx, done := s.withTimeout(ctx, "upload_attachment")
	defer done()

	url, err := s.blobs.Upload(ctx, f, s.opts.ImageBucket, s.opts.ImageFolder)
	if err != nil {
		return "", &UploadError{Op: "upload_attachment", Err: err}
	}
	return url, nil
}

// RecentMessages returns the newest limit messages across all users.
func (s *MessageStore) RecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	ctx, done := s.withTimeout(ctx, "recent_messages")
	defer done()

	msgs, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, storeErr("recent_messages", err)
	}
	return msgs, nil
}
