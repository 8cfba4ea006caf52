package menus

import (
	"net/http"

	"github.com/arifmahmud/navtree/pkg/navtree/auth"
	"github.com/arifmahmud/navtree/pkg/navtree/cache"
	"github.com/arifmahmud/navtree/pkg/navtree/config"
	"github.com/arifmahmud/navtree/pkg/navtree/tree"
	"github.com/gin-gonic/gin"
)

// ContextKeyMenu is the key under which ShareMiddleware stores the
// resolved menu snapshot in the gin context.
const ContextKeyMenu = "menu"

// ShouldComputeTree decides whether the menu is computed at all for this
// viewer. When it returns false the cache and builder are both bypassed
// and an empty tree is served.
func ShouldComputeTree(viewerAuthenticated, authRequired bool) bool {
	return !authRequired || viewerAuthenticated
}

// Menu returns the active, nested menu tree for the current viewer
// @Summary Get the navigation menu
// @Description Get the active-only nested menu tree. Returns an empty array for unauthenticated viewers when authentication is required.
// @Tags menus
// @Produce json
// @Success 200 {array} tree.GroupView
// @Router /menu [get]
func (h *Handler) Menu(c *gin.Context) {
	_, authenticated := auth.GetUserID(c)
	if !ShouldComputeTree(authenticated, h.cfg.AuthRequired) {
		c.JSON(http.StatusOK, []tree.GroupView{})
		return
	}

	snapshot, err := h.cache.GetTree(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load menu"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// RegisterMenuRoutes registers the public menu route
func (h *Handler) RegisterMenuRoutes(rg *gin.RouterGroup) {
	rg.GET("/menu", auth.OptionalAuthMiddleware(), h.Menu)
}

// ShareMiddleware resolves the menu once per request and stores it in
// the gin context, so any handler can attach it to its response. A
// resolution failure leaves the context unset rather than failing the
// request.
func ShareMiddleware(coordinator *cache.Coordinator, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AutoShare {
			c.Next()
			return
		}

		_, authenticated := auth.GetUserID(c)
		if !ShouldComputeTree(authenticated, cfg.AuthRequired) {
			c.Set(ContextKeyMenu, []tree.GroupView{})
			c.Next()
			return
		}

		if snapshot, err := coordinator.GetTree(c.Request.Context()); err == nil {
			c.Set(ContextKeyMenu, snapshot)
		}
		c.Next()
	}
}

// SharedMenu returns the menu snapshot stored by ShareMiddleware.
func SharedMenu(c *gin.Context) ([]tree.GroupView, bool) {
	value, exists := c.Get(ContextKeyMenu)
	if !exists {
		return nil, false
	}
	snapshot, ok := value.([]tree.GroupView)
	return snapshot, ok
}
