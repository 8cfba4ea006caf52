package menus

import (
	"net/http"
	"strconv"

	"github.com/arifmahmud/navtree/pkg/navtree/cache"
	"github.com/arifmahmud/navtree/pkg/navtree/config"
	"github.com/arifmahmud/navtree/pkg/navtree/models"
	"github.com/arifmahmud/navtree/pkg/navtree/tree"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles menu management requests. Every successful mutation
// invalidates the shared snapshot after the write has been committed,
// so readers can never repopulate the cache from pre-commit state.
type Handler struct {
	db      *gorm.DB
	cache   *cache.Coordinator
	builder *tree.Builder
	cfg     config.Config
}

// NewHandler creates a new menus handler
func NewHandler(db *gorm.DB, coordinator *cache.Coordinator, builder *tree.Builder, cfg config.Config) *Handler {
	return &Handler{db: db, cache: coordinator, builder: builder, cfg: cfg}
}

// GroupRequest is the body for creating or updating a menu group.
type GroupRequest struct {
	Name     string  `json:"name" binding:"required"`
	Key      *string `json:"key"`
	Order    int     `json:"order"`
	IsActive *bool   `json:"is_active"`
}

// ItemRequest is the body for creating or updating a menu item.
// On update, MenuGroupID and ParentID are applied wholesale: an absent
// key means "set to null", not "leave unchanged".
type ItemRequest struct {
	MenuGroupID    *uint  `json:"menu_group_id"`
	ParentID       *uint  `json:"parent_id"`
	Title          string `json:"title" binding:"required"`
	URL            string `json:"url"`
	Route          string `json:"route"`
	Icon           string `json:"icon"`
	Order          int    `json:"order"`
	IsActive       *bool  `json:"is_active"`
	PermissionName string `json:"permission_name"`
}

// GroupOrderTuple positions one group within the reorder batch.
type GroupOrderTuple struct {
	ID    uint `json:"id" binding:"required"`
	Order int  `json:"order"`
}

// ItemOrderTuple positions and reparents one item within the reorder
// batch. Absent ParentID/MenuGroupID set the column to null.
type ItemOrderTuple struct {
	ID          uint  `json:"id" binding:"required"`
	Order       int   `json:"order"`
	ParentID    *uint `json:"parent_id"`
	MenuGroupID *uint `json:"menu_group_id"`
}

// OrderUpdateRequest is the body for the batch reorder endpoint.
type OrderUpdateRequest struct {
	Groups []GroupOrderTuple `json:"groups"`
	Items  []ItemOrderTuple  `json:"items"`
}

// TupleError reports a rejected tuple from a reorder batch.
type TupleError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func validationError(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "field": field})
}

func (h *Handler) groupExists(id uint) bool {
	var count int64
	h.db.Model(&models.MenuGroup{}).Where("id = ?", id).Count(&count)
	return count > 0
}

func (h *Handler) itemExists(id uint) bool {
	var count int64
	h.db.Model(&models.MenuItem{}).Where("id = ?", id).Count(&count)
	return count > 0
}

// keyTaken reports whether another group already uses the key.
func (h *Handler) keyTaken(key string, excludeID uint) bool {
	var count int64
	q := h.db.Model(&models.MenuGroup{}).Where("key = ?", key)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	q.Count(&count)
	return count > 0
}

// wouldCreateCycle walks the ancestor chain of the proposed parent and
// reports whether it passes through the item itself. The visited set
// also stops the walk if the stored chain is already corrupt.
func (h *Handler) wouldCreateCycle(itemID uint, parentID *uint) bool {
	visited := map[uint]bool{itemID: true}
	current := parentID
	for current != nil {
		if visited[*current] {
			return true
		}
		visited[*current] = true

		var parent models.MenuItem
		if err := h.db.Select("id", "parent_id").First(&parent, *current).Error; err != nil {
			return false
		}
		current = parent.ParentID
	}
	return false
}

// Index returns the full unfiltered tree for the management UI
// @Summary List menu groups and items
// @Description Get the full menu tree, including inactive entries, for management
// @Tags menus
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /menu-management [get]
func (h *Handler) Index(c *gin.Context) {
	groups, err := h.builder.BuildAdminTree(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load menu tree"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"menu_groups": groups})
}

// CreateGroup creates a menu group
// @Summary Create a menu group
// @Tags menus
// @Accept json
// @Produce json
// @Param request body GroupRequest true "Group details"
// @Success 201 {object} models.MenuGroup
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 409 {object} map[string]string "Key already in use"
// @Security BearerAuth
// @Router /menu-management/groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Key != nil && h.keyTaken(*req.Key, 0) {
		c.JSON(http.StatusConflict, gin.H{"error": "Key already in use", "field": "key"})
		return
	}

	group := models.MenuGroup{
		Name:     req.Name,
		Key:      req.Key,
		Order:    req.Order,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu group"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusCreated, group)
}

// UpdateGroup updates a menu group
// @Summary Update a menu group
// @Tags menus
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body GroupRequest true "Updated group details"
// @Success 200 {object} models.MenuGroup
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /menu-management/groups/{id} [put]
func (h *Handler) UpdateGroup(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.MenuGroup
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu group not found"})
		return
	}

	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Key != nil && h.keyTaken(*req.Key, group.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Key already in use", "field": "key"})
		return
	}

	group.Name = req.Name
	group.Key = req.Key
	group.Order = req.Order
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}

	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu group"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, group)
}

// DeleteGroup deletes a menu group that owns no items
// @Summary Delete a menu group
// @Tags menus
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} map[string]string "Group deleted"
// @Failure 404 {object} map[string]string "Group not found"
// @Failure 409 {object} map[string]string "Group still owns items"
// @Security BearerAuth
// @Router /menu-management/groups/{id} [delete]
func (h *Handler) DeleteGroup(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.MenuGroup
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu group not found"})
		return
	}

	var itemCount int64
	h.db.Model(&models.MenuItem{}).Where("menu_group_id = ?", group.ID).Count(&itemCount)
	if itemCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete group with menu items"})
		return
	}

	if err := h.db.Delete(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu group"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Menu group deleted"})
}

// CreateItem creates a menu item
// @Summary Create a menu item
// @Tags menus
// @Accept json
// @Produce json
// @Param request body ItemRequest true "Item details"
// @Success 201 {object} models.MenuItem
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /menu-management/items [post]
func (h *Handler) CreateItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MenuGroupID != nil && !h.groupExists(*req.MenuGroupID) {
		validationError(c, "menu_group_id", "Referenced menu group does not exist")
		return
	}
	if req.ParentID != nil && !h.itemExists(*req.ParentID) {
		validationError(c, "parent_id", "Referenced parent item does not exist")
		return
	}

	item := models.MenuItem{
		MenuGroupID:    req.MenuGroupID,
		ParentID:       req.ParentID,
		Title:          req.Title,
		URL:            req.URL,
		Route:          req.Route,
		Icon:           req.Icon,
		Order:          req.Order,
		IsActive:       req.IsActive == nil || *req.IsActive,
		PermissionName: req.PermissionName,
	}
	if err := h.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusCreated, item)
}

// UpdateItem updates a menu item, replacing its parent and group links
// @Summary Update a menu item
// @Tags menus
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param request body ItemRequest true "Updated item details"
// @Success 200 {object} models.MenuItem
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Item not found"
// @Security BearerAuth
// @Router /menu-management/items/{id} [put]
func (h *Handler) UpdateItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var item models.MenuItem
	if err := h.db.First(&item, itemID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ParentID != nil {
		if *req.ParentID == item.ID {
			validationError(c, "parent_id", "An item cannot be its own parent")
			return
		}
		if !h.itemExists(*req.ParentID) {
			validationError(c, "parent_id", "Referenced parent item does not exist")
			return
		}
		if h.wouldCreateCycle(item.ID, req.ParentID) {
			validationError(c, "parent_id", "An item cannot be moved under its own descendant")
			return
		}
	}
	if req.MenuGroupID != nil && !h.groupExists(*req.MenuGroupID) {
		validationError(c, "menu_group_id", "Referenced menu group does not exist")
		return
	}

	item.MenuGroupID = req.MenuGroupID
	item.ParentID = req.ParentID
	item.Title = req.Title
	item.URL = req.URL
	item.Route = req.Route
	item.Icon = req.Icon
	item.Order = req.Order
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	item.PermissionName = req.PermissionName

	// Save writes every column, so cleared parent/group links become NULL.
	if err := h.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, item)
}

// DeleteItem deletes a menu item and its whole subtree
// @Summary Delete a menu item
// @Tags menus
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} map[string]string "Item deleted"
// @Failure 404 {object} map[string]string "Item not found"
// @Security BearerAuth
// @Router /menu-management/items/{id} [delete]
func (h *Handler) DeleteItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var item models.MenuItem
	if err := h.db.First(&item, itemID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	ids, err := h.subtreeIDs(item.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu item"})
		return
	}

	if err := h.db.Delete(&models.MenuItem{}, ids).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu item"})
		return
	}

	h.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}

// subtreeIDs collects the item and all of its transitive descendants.
func (h *Handler) subtreeIDs(rootID uint) ([]uint, error) {
	var items []models.MenuItem
	if err := h.db.Select("id", "parent_id").Find(&items).Error; err != nil {
		return nil, err
	}

	children := make(map[uint][]uint)
	for _, item := range items {
		if item.ParentID != nil {
			children[*item.ParentID] = append(children[*item.ParentID], item.ID)
		}
	}

	ids := []uint{rootID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids, nil
}

// UpdateOrder applies a batch of reorder/reparent tuples
// @Summary Reorder and reparent menu entries
// @Description Apply a batch of order updates. Tuples are applied row by row; a failing tuple is reported and skipped while the rest still apply.
// @Tags menus
// @Accept json
// @Produce json
// @Param request body OrderUpdateRequest true "Order tuples"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /menu-management/update-order [post]
func (h *Handler) UpdateOrder(c *gin.Context) {
	var req OrderUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied := 0
	tupleErrors := []TupleError{}

	for i, tuple := range req.Groups {
		field := "groups." + strconv.Itoa(i)
		if !h.groupExists(tuple.ID) {
			tupleErrors = append(tupleErrors, TupleError{Field: field + ".id", Error: "Menu group does not exist"})
			continue
		}
		if err := h.db.Model(&models.MenuGroup{}).Where("id = ?", tuple.ID).
			Update("order", tuple.Order).Error; err != nil {
			tupleErrors = append(tupleErrors, TupleError{Field: field, Error: "Failed to update group order"})
			continue
		}
		applied++
	}

	for i, tuple := range req.Items {
		field := "items." + strconv.Itoa(i)
		if !h.itemExists(tuple.ID) {
			tupleErrors = append(tupleErrors, TupleError{Field: field + ".id", Error: "Menu item does not exist"})
			continue
		}
		if tuple.ParentID != nil {
			if *tuple.ParentID == tuple.ID {
				tupleErrors = append(tupleErrors, TupleError{Field: field + ".parent_id", Error: "An item cannot be its own parent"})
				continue
			}
			if !h.itemExists(*tuple.ParentID) {
				tupleErrors = append(tupleErrors, TupleError{Field: field + ".parent_id", Error: "Referenced parent item does not exist"})
				continue
			}
			if h.wouldCreateCycle(tuple.ID, tuple.ParentID) {
				tupleErrors = append(tupleErrors, TupleError{Field: field + ".parent_id", Error: "An item cannot be moved under its own descendant"})
				continue
			}
		}
		if tuple.MenuGroupID != nil && !h.groupExists(*tuple.MenuGroupID) {
			tupleErrors = append(tupleErrors, TupleError{Field: field + ".menu_group_id", Error: "Referenced menu group does not exist"})
			continue
		}

		// Nil pointers in the map clear the columns: the tuple replaces
		// parent and group links, it does not patch them.
		if err := h.db.Model(&models.MenuItem{}).Where("id = ?", tuple.ID).
			Updates(map[string]interface{}{
				"order":         tuple.Order,
				"parent_id":     tuple.ParentID,
				"menu_group_id": tuple.MenuGroupID,
			}).Error; err != nil {
			tupleErrors = append(tupleErrors, TupleError{Field: field, Error: "Failed to update item order"})
			continue
		}
		applied++
	}

	if applied > 0 {
		h.cache.Invalidate(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{"applied": applied, "errors": tupleErrors})
}

// RegisterRoutes registers menu management routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Index)
	rg.POST("/items", h.CreateItem)
	rg.PUT("/items/:id", h.UpdateItem)
	rg.DELETE("/items/:id", h.DeleteItem)
	rg.POST("/update-order", h.UpdateOrder)
	rg.POST("/groups", h.CreateGroup)
	rg.PUT("/groups/:id", h.UpdateGroup)
	rg.DELETE("/groups/:id", h.DeleteGroup)
}
