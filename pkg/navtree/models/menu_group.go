package models

import (
	"time"

	"gorm.io/gorm"
)

// MenuGroup is a top-level named container of root menu items.
// Sibling groups are sequenced by Order; inactive groups are hidden
// from the rendered tree along with everything under them.
type MenuGroup struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Key       *string        `gorm:"uniqueIndex" json:"key"` // stable machine identifier, optional
	Order     int            `gorm:"default:0" json:"order"`
	IsActive  bool           `json:"is_active"`

	// Relationships
	Items []MenuItem `gorm:"foreignKey:MenuGroupID" json:"items,omitempty"`
}

// TableName overrides the default table name
func (MenuGroup) TableName() string {
	return "menu_groups"
}
