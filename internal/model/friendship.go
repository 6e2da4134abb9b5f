package model

import (
	"time"
)

// Friendship is a one-directional friend edge owned by UserID. Adding a friend
// does not mirror the edge onto the other user; symmetry is left to the two
// users adding each other.
type Friendship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null;uniqueIndex:idx_user_friend"`
	FriendID  uint      `json:"friend_id" gorm:"index;not null;uniqueIndex:idx_user_friend"`
	Name      string    `json:"name,omitempty" gorm:"type:varchar(100)"` // display name chosen by the caller
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Friend User `json:"friend,omitempty" gorm:"foreignKey:FriendID"`
}
