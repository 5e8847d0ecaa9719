package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Password holds the bcrypt hash and is never serialized.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"_id"`
	Username  string         `gorm:"size:30;not null;index" json:"username"`
	Email     string         `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Identity is the acting user resolved from a bearer credential.
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Snapshot freezes the identity as an author reference for embedded content.
func (i Identity) Snapshot() AuthorSnapshot {
	return AuthorSnapshot{ID: i.UserID, Username: i.Username}
}
