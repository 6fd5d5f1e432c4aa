package dao

import (
	"context"

	"epay/epay/sources/psql/models"

	"gorm.io/gorm"
)

type MessageDAO struct {
	DB *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{DB: db}
}

// ListByUser returns a user's messages oldest first. Equal timestamps are
// ordered by id so the order is total.
func (dao *MessageDAO) ListByUser(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Create inserts msg and fills in the server-issued id and timestamp.
func (dao *MessageDAO) Create(ctx context.Context, msg *models.Message) error {
	return dao.DB.WithContext(ctx).Create(msg).Error
}

// Recent returns up to limit messages across all users, newest first.
// Only user_id and created_at are loaded.
func (dao *MessageDAO) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := dao.DB.WithContext(ctx).
		Model(&models.Message{}).
		Select("user_id", "created_at").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
