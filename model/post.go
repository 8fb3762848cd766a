package model

import "time"

type Post struct {
	ID        string `gorm:"primaryKey;type:text;not null"`
	AuthorID  string `gorm:"not null;index;size:64"`
	Title     string `gorm:"not null;size:200"`
	Slug      string `gorm:"uniqueIndex;not null;size:220"`
	Content   string `gorm:"type:text;not null"`
	Tags      string `gorm:"size:255"` // comma separated, lowercase
	ImageURL  string `gorm:"size:512"`
	Published bool   `gorm:"not null;default:true;index"`
	ViewCount int64  `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
