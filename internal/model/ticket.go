package model

import (
	"time"
)

// Ticket represents an expense record logged against a project. Distribution
// is the split factor applied to the amount when settling up.
type Ticket struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UploaderID   uint      `json:"uploader_id" gorm:"index;not null"`
	ProjectID    uint      `json:"project_id" gorm:"index;not null"`
	Description  string    `json:"description" gorm:"type:text;not null"`
	Date         time.Time `json:"date" gorm:"not null"`
	Image        string    `json:"image,omitempty" gorm:"type:varchar(255)"`
	Amount       float64   `json:"amount" gorm:"not null"`
	Distribution float64   `json:"distribution" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Uploader User    `json:"uploader,omitempty" gorm:"foreignKey:UploaderID"`
	Project  Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}
