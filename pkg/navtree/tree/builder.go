// Package tree builds the nested menu structure out of the flat
// menu_groups/menu_items tables. The whole tree is loaded in two queries
// and assembled in memory by parent-id lookup, so formatting never goes
// back to the database per node.
package tree

import (
	"context"

	"github.com/arifmahmud/navtree/pkg/navtree/models"
	"gorm.io/gorm"
)

// DefaultMaxDepth bounds tree nesting. Chains deeper than this are
// truncated rather than recursed into.
const DefaultMaxDepth = 32

// siblingOrder sequences rows by their explicit order, ties broken by id
// so the result is stable across rebuilds.
const siblingOrder = "\"order\" ASC, id ASC"

// GroupView is the public shape of a menu group in the rendered tree.
type GroupView struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Key   *string    `json:"key"`
	Items []ItemView `json:"items"`
}

// ItemView is the public shape of a menu item. The url column is exposed
// as href, and children as items; consumers depend on both renames.
// Items is omitted entirely for leaves, never sent as an empty list.
type ItemView struct {
	ID         uint       `json:"id"`
	Title      string     `json:"title"`
	Href       string     `json:"href"`
	Route      string     `json:"route"`
	Icon       string     `json:"icon"`
	IsActive   bool       `json:"isActive"`
	Permission string     `json:"permission"`
	Items      []ItemView `json:"items,omitempty"`
}

// AdminGroupView is the management shape of a group: unfiltered, with
// ordering and visibility flags exposed for editing.
type AdminGroupView struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Key      *string         `json:"key"`
	Order    int             `json:"order"`
	IsActive bool            `json:"is_active"`
	Items    []AdminItemView `json:"items"`
}

// AdminItemView is the management shape of an item. Children is always
// present, possibly empty.
type AdminItemView struct {
	ID             uint            `json:"id"`
	Title          string          `json:"title"`
	URL            string          `json:"url"`
	Route          string          `json:"route"`
	Icon           string          `json:"icon"`
	Order          int             `json:"order"`
	IsActive       bool            `json:"is_active"`
	PermissionName string          `json:"permission_name"`
	MenuGroupID    *uint           `json:"menu_group_id"`
	ParentID       *uint           `json:"parent_id"`
	Children       []AdminItemView `json:"children"`
}

// Builder constructs menu trees from the database.
type Builder struct {
	db       *gorm.DB
	maxDepth int
}

// NewBuilder creates a tree builder. A maxDepth of 0 selects
// DefaultMaxDepth.
func NewBuilder(db *gorm.DB, maxDepth int) *Builder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Builder{db: db, maxDepth: maxDepth}
}

// forest indexes a flat batch of items for tree assembly: roots grouped
// by their menu group, children grouped by parent. Append order follows
// query order, so sibling sequences stay sorted.
type forest struct {
	rootsByGroup map[uint][]models.MenuItem
	byParent     map[uint][]models.MenuItem
}

func indexItems(items []models.MenuItem) forest {
	f := forest{
		rootsByGroup: make(map[uint][]models.MenuItem),
		byParent:     make(map[uint][]models.MenuItem),
	}
	for _, item := range items {
		switch {
		case item.ParentID != nil:
			f.byParent[*item.ParentID] = append(f.byParent[*item.ParentID], item)
		case item.MenuGroupID != nil:
			f.rootsByGroup[*item.MenuGroupID] = append(f.rootsByGroup[*item.MenuGroupID], item)
		}
	}
	return f
}

// BuildTree returns the active-only, ordered, nested menu structure.
// An inactive item hides its entire subtree: its children are loaded
// keyed under a parent that is never visited.
func (b *Builder) BuildTree(ctx context.Context) ([]GroupView, error) {
	var groups []models.MenuGroup
	if err := b.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(siblingOrder).
		Find(&groups).Error; err != nil {
		return nil, err
	}

	var items []models.MenuItem
	if err := b.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(siblingOrder).
		Find(&items).Error; err != nil {
		return nil, err
	}

	f := indexItems(items)

	out := make([]GroupView, 0, len(groups))
	for _, group := range groups {
		view := GroupView{
			ID:    group.ID,
			Name:  group.Name,
			Key:   group.Key,
			Items: []ItemView{},
		}
		for _, item := range f.rootsByGroup[group.ID] {
			view.Items = append(view.Items, b.formatItem(item, f, 1))
		}
		out = append(out, view)
	}
	return out, nil
}

func (b *Builder) formatItem(item models.MenuItem, f forest, depth int) ItemView {
	view := ItemView{
		ID:         item.ID,
		Title:      item.Title,
		Href:       item.URL,
		Route:      item.Route,
		Icon:       item.Icon,
		IsActive:   item.IsActive,
		Permission: item.PermissionName,
	}
	if depth >= b.maxDepth {
		return view
	}
	children := f.byParent[item.ID]
	if len(children) > 0 {
		view.Items = make([]ItemView, 0, len(children))
		for _, child := range children {
			view.Items = append(view.Items, b.formatItem(child, f, depth+1))
		}
	}
	return view
}

// BuildAdminTree returns every group and item regardless of visibility,
// shaped for the management UI.
func (b *Builder) BuildAdminTree(ctx context.Context) ([]AdminGroupView, error) {
	var groups []models.MenuGroup
	if err := b.db.WithContext(ctx).
		Order(siblingOrder).
		Find(&groups).Error; err != nil {
		return nil, err
	}

	var items []models.MenuItem
	if err := b.db.WithContext(ctx).
		Order(siblingOrder).
		Find(&items).Error; err != nil {
		return nil, err
	}

	f := indexItems(items)

	out := make([]AdminGroupView, 0, len(groups))
	for _, group := range groups {
		view := AdminGroupView{
			ID:       group.ID,
			Name:     group.Name,
			Key:      group.Key,
			Order:    group.Order,
			IsActive: group.IsActive,
			Items:    []AdminItemView{},
		}
		for _, item := range f.rootsByGroup[group.ID] {
			view.Items = append(view.Items, b.formatAdminItem(item, f, 1))
		}
		out = append(out, view)
	}
	return out, nil
}

func (b *Builder) formatAdminItem(item models.MenuItem, f forest, depth int) AdminItemView {
	view := AdminItemView{
		ID:             item.ID,
		Title:          item.Title,
		URL:            item.URL,
		Route:          item.Route,
		Icon:           item.Icon,
		Order:          item.Order,
		IsActive:       item.IsActive,
		PermissionName: item.PermissionName,
		MenuGroupID:    item.MenuGroupID,
		ParentID:       item.ParentID,
		Children:       []AdminItemView{},
	}
	if depth >= b.maxDepth {
		return view
	}
	for _, child := range f.byParent[item.ID] {
		view.Children = append(view.Children, b.formatAdminItem(child, f, depth+1))
	}
	return view
}
