package models

import (
	"time"

	"gorm.io/datatypes"
)

// Catalog records keep the source document verbatim in Document. The typed
// columns exist only for lookup and ordering.

// HeritageSite is a monument or site, addressed by its public string id.
type HeritageSite struct {
	SiteID    string         `gorm:"primaryKey;size:100"`
	Name      string         `gorm:"index"`
	Document  datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// Blog is a published article. Date keeps the source value so ordering
// matches the seeded data.
type Blog struct {
	ID        string         `gorm:"primaryKey;size:100"`
	Date      string         `gorm:"index"`
	Document  datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// State is a regional profile page.
type State struct {
	ID        string         `gorm:"primaryKey;size:100"`
	Document  datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// Tour is a curated list of monuments in visiting order.
type Tour struct {
	ID          string                      `gorm:"primaryKey;size:100"`
	MonumentIDs datatypes.JSONSlice[string] `gorm:"column:monument_ids"`
	Document    datatypes.JSON              `gorm:"not null"`
	UpdatedAt   time.Time
}

// Quiz belongs to exactly one monument.
type Quiz struct {
	MonumentID string         `gorm:"primaryKey;size:100"`
	Document   datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time
}

// Message is a contact-form submission.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:254;not null" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// MessageSummary is the public view of a recent message.
type MessageSummary struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}
