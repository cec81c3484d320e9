package models

import (
	"eventix/src/types"

	"github.com/google/uuid"
)

type User struct {
	ID    uuid.UUID  `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name  string     `json:"name,omitempty"`
	Email string     `gorm:"uniqueIndex" json:"email,omitempty"`
	Role  types.Role `gorm:"default:'customer'" json:"role,omitempty"`

	types.Timestamps
}
