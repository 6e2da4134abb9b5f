package model

import (
	"time"
)

// DefaultPhotoURL is served for users who never uploaded a profile picture.
const DefaultPhotoURL = "https://res.cloudinary.com/ticketsplit/image/upload/v1/defaults/avatar.png"

// User represents a registered account stored in the database
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password  string    `json:"-" gorm:"type:varchar(255)"`
	Name      string    `json:"name,omitempty" gorm:"type:varchar(100)"`
	Lastname  string    `json:"lastname,omitempty" gorm:"type:varchar(100)"`
	Photo     string    `json:"photo,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhotoOrDefault returns the stored photo URL or the placeholder avatar.
func (u *User) PhotoOrDefault() string {
	if u.Photo == "" {
		return DefaultPhotoURL
	}
	return u.Photo
}
