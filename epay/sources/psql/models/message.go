package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one entry of a support conversation. IsAdmin marks agent
// authored messages; Content is nil for pure image messages.
type Message struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index:idx_messages_user_created,priority:1"`
	IsAdmin   bool      `json:"is_admin" gorm:"not null;default:false"`
	Content   *string   `json:"content" gorm:"type:text"`
	ImageURL  *string   `json:"image_url" gorm:"type:varchar(1024)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;not null;index:idx_messages_user_created,priority:2;index:idx_messages_created"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Text returns the content or an empty string.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
