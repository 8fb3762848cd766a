package model

import "time"

type User struct {
	ID            string `gorm:"primaryKey;type:text;not null"`
	Email         string `gorm:"uniqueIndex;not null;size:255"`
	Username      string `gorm:"uniqueIndex;not null;size:30"`
	Password      string `gorm:"not null"`
	Role          string `gorm:"not null;default:user;size:20"`
	EmailVerified bool   `gorm:"not null;default:false"`
	IsActive      bool   `gorm:"not null;default:true"`
	LastLoginAt   *time.Time
	LastLoginIP   string `gorm:"size:45"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time `gorm:"index"`
}
