package models

import "time"

// Profile is a row of the profile directory. The chat core only reads it.
type Profile struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Email     *string   `json:"email,omitempty" gorm:"type:varchar(255)"`
	FullName  *string   `json:"full_name,omitempty" gorm:"type:varchar(255)"`
	AvatarURL *string   `json:"avatar_url,omitempty" gorm:"type:varchar(512)"`
	Role      string    `json:"role" gorm:"type:varchar(32);not null;default:user"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ChatUser is the read projection of a profile used by the chat roster.
type ChatUser struct {
	ID            string     `json:"id"`
	Email         *string    `json:"email"`
	FullName      *string    `json:"full_name"`
	AvatarURL     *string    `json:"avatar_url"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// DisplayName falls back from full name to email to a fixed label.
func (u ChatUser) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	return "Unknown User"
}
