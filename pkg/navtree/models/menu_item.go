package models

import (
	"time"

	"gorm.io/gorm"
)

// MenuItem is a single navigation entry. Only the root of a subtree carries
// a direct group reference; descendants are reached via ParentID links.
// PermissionName is an opaque string handed to the presentation layer,
// never interpreted here.
type MenuItem struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	MenuGroupID    *uint          `gorm:"index:idx_menu_items_group_order,priority:1" json:"menu_group_id"`
	Title          string         `gorm:"not null" json:"title"`
	URL            string         `json:"url"`
	Route          string         `json:"route"` // symbolic route name resolved by the client router
	Icon           string         `json:"icon"`  // symbolic icon name resolved by the client
	ParentID       *uint          `gorm:"index:idx_menu_items_parent_order,priority:1" json:"parent_id"`
	Order          int            `gorm:"default:0;index:idx_menu_items_group_order,priority:2;index:idx_menu_items_parent_order,priority:2" json:"order"`
	IsActive       bool           `json:"is_active"`
	PermissionName string         `json:"permission_name"`

	// Relationships
	Group    *MenuGroup `gorm:"foreignKey:MenuGroupID" json:"group,omitempty"`
	Parent   *MenuItem  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []MenuItem `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// TableName overrides the default table name
func (MenuItem) TableName() string {
	return "menu_items"
}
