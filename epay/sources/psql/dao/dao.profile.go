package dao

import (
	"context"

	"epay/epay/sources/psql/models"

	"gorm.io/gorm"
)

type ProfileDAO struct {
	DB *gorm.DB
}

func NewProfileDAO(db *gorm.DB) *ProfileDAO {
	return &ProfileDAO{DB: db}
}

// GetProfilesByIDs resolves ids to chat projections in one query. Unknown
// ids are simply absent from the result.
func (dao *ProfileDAO) GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ChatUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.ChatUser
	err := dao.DB.WithContext(ctx).
		Model(&models.Profile{}).
		Select("id", "email", "full_name", "avatar_url").
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (dao *ProfileDAO) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := dao.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (dao *ProfileDAO) CreateProfile(ctx context.Context, p *models.Profile) error {
	return dao.DB.WithContext(ctx).Create(p).Error
}
