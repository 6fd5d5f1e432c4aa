package dao

import (
	"context"

	"epay/epay/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SavedReplyDAO struct {
	DB *gorm.DB
}

func NewSavedReplyDAO(db *gorm.DB) *SavedReplyDAO {
	return &SavedReplyDAO{DB: db}
}

func (dao *SavedReplyDAO) CreateSavedReply(ctx context.Context, reply *models.SavedReply) error {
	return dao.DB.WithContext(ctx).Create(reply).Error
}

// ListSavedReplies returns all replies newest first.
func (dao *SavedReplyDAO) ListSavedReplies(ctx context.Context) ([]models.SavedReply, error) {
	var replies []models.SavedReply
	err := dao.DB.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Find(&replies).Error
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// DeleteSavedReply reports whether a row was removed. Deleting an unknown id
// is not an error.
func (dao *SavedReplyDAO) DeleteSavedReply(ctx context.Context, id uuid.UUID) (bool, error) {
	res := dao.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.SavedReply{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
