package controllers

import (
	"context"

	"epay/epay/services/chat"
	"epay/epay/sources/psql/models"
	"epay/epay/sources/storage"
	"epay/epay/utils/types"

	"github.com/google/uuid"
)

// ChatController is the stateless REST face of the chat stores.
type ChatController struct {
	messages      *chat.MessageStore
	replies       *chat.SavedReplyStore
	conversations chat.ConversationSource
	placeholder   string
}

func NewChatController(messages *chat.MessageStore, replies *chat.SavedReplyStore, conversations chat.ConversationSource, placeholder string) *ChatController {
	if placeholder == "" {
		placeholder = chat.DefaultImagePlaceholder
	}
	return &ChatController{
		messages:      messages,
		replies:       replies,
		conversations: conversations,
		placeholder:   placeholder,
	}
}

func (c *ChatController) Conversations(ctx context.Context) ([]models.ChatUser, error) {
	return c.conversations.Conversations(ctx)
}

func (c *ChatController) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	msgs, err := c.messages.ListMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (c *ChatController) SendMessage(ctx context.Context, userID string, req types.SendMessageRequest) (*models.Message, error) {
	return c.messages.AppendMessage(ctx, userID, req.Content, req.ImageURL)
}

// SendImage uploads f and stores it as an image message.
func (c *ChatController) SendImage(ctx context.Context, userID string, f storage.File) (*models.Message, error) {
	if userID == "" {
		return nil, &chat.ValidationError{Field: "user_id", Reason: "required"}
	}
	url, err := c.messages.UploadAttachment(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.messages.AppendMessage(ctx, userID, c.placeholder, &url)
}

func (c *ChatController) ListReplies(ctx context.Context) ([]models.SavedReply, error) {
	replies, err := c.replies.List(ctx)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []models.SavedReply{}
	}
	return replies, nil
}

func (c *ChatController) CreateReply(ctx context.Context, req types.CreateSavedReplyRequest) (*models.SavedReply, error) {
	return c.replies.Create(ctx, req.Title, req.Content)
}

func (c *ChatController) DeleteReply(ctx context.Context, id uuid.UUID) error {
	return c.replies.Delete(ctx, id)
}
