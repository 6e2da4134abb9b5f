package model

import (
	"time"
)

// Project represents a named group with one owner, aggregating expense tickets
type Project struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	OwnerID     uint      `json:"owner_id" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Owner User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
