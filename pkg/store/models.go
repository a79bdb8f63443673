package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.

type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Language  string `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type DocumentModel struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"not null;index"`
	FileName     string `gorm:"not null"`
	StorageKey   string
	Status       string `gorm:"not null"`
	ErrorMessage string
	SizeBytes    int64
	Language     string
	Analysis     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
}
