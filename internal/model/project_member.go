package model

import (
	"time"
)

// ProjectMember records the association between a project and a member user.
// The single row carries both directions of the relationship: the project's
// member list and the user's project list are views over the same table, so
// they cannot drift apart. The owner is not listed here; ownership lives on
// the project row itself.
type ProjectMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"index;not null;uniqueIndex:idx_project_user"`
	UserID    uint      `json:"user_id" gorm:"index;not null;uniqueIndex:idx_project_user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
