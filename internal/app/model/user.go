package model

import "time"

// User is a member of the marketing team. Every QR code belongs to the
// user that created it.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"size:255;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }
