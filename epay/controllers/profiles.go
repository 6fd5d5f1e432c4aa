package controllers

import (
	"context"
	"errors"
	"strings"

	"epay/epay/services/chat"
	"epay/epay/sources/psql/dao"
	"epay/epay/sources/psql/models"
	"epay/epay/utils/types"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileController struct {
	dao *dao.ProfileDAO
}

func NewProfileController(dao *dao.ProfileDAO) *ProfileController {
	return &ProfileController{dao: dao}
}

func (c *ProfileController) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := c.dao.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// CreateProfile registers a directory entry. Used to seed local setups;
// production profiles come from the identity provider.
func (c *ProfileController) CreateProfile(ctx context.Context, req types.CreateProfileRequest) (*models.Profile, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, &chat.ValidationError{Field: "id", Reason: "required"}
	}
	role := req.Role
	if role == "" {
		role = "user"
	}
	p := &models.Profile{
		ID:        req.ID,
		Email:     req.Email,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Role:      role,
	}
	if err := c.dao.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
