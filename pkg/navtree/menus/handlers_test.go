package menus

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arifmahmud/navtree/pkg/navtree/auth"
	"github.com/arifmahmud/navtree/pkg/navtree/cache"
	"github.com/arifmahmud/navtree/pkg/navtree/config"
	"github.com/arifmahmud/navtree/pkg/navtree/models"
	"github.com/arifmahmud/navtree/pkg/navtree/tree"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func testConfig() config.Config {
	return config.Config{
		AuthRequired: true,
		AutoShare:    true,
		Cache: config.CacheConfig{
			Enabled: true,
			Key:     "navtree_test_menu",
			TTL:     time.Hour,
		},
	}
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)

	backend := cache.NewMemoryBackend()
	t.Cleanup(backend.Stop)

	cfg := testConfig()
	builder := tree.NewBuilder(db, 0)
	coordinator := cache.NewCoordinator(backend, cache.Config{
		Enabled: cfg.Cache.Enabled,
		Key:     cfg.Cache.Key,
		TTL:     cfg.Cache.TTL,
	}, builder.BuildTree)

	handler := NewHandler(db, coordinator, builder, cfg)

	r := gin.New()
	api := r.Group("/api")
	handler.RegisterMenuRoutes(api)

	mgmt := api.Group("/menu-management")
	mgmt.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	handler.RegisterRoutes(mgmt)

	return r
}

func createTestAdmin(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        "admin@example.com",
		PasswordHash: hash,
		Name:         "Admin",
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test admin: %v", err)
	}
	return user
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	return "Bearer " + token
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func createGroup(t *testing.T, db *gorm.DB, name string, order int, active bool) models.MenuGroup {
	t.Helper()
	group := models.MenuGroup{Name: name, Order: order, IsActive: active}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group %s: %v", name, err)
	}
	return group
}

func createItem(t *testing.T, db *gorm.DB, title string, groupID, parentID *uint, order int, active bool) models.MenuItem {
	t.Helper()
	item := models.MenuItem{
		Title:       title,
		MenuGroupID: groupID,
		ParentID:    parentID,
		Order:       order,
		IsActive:    active,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("Failed to create item %s: %v", title, err)
	}
	return item
}

func TestCreateGroup(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	key := "sidebar"
	resp := doJSON(t, router, "POST", "/api/menu-management/groups", GroupRequest{
		Name: "Main",
		Key:  &key,
	}, getAuthHeader(admin))

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var group models.MenuGroup
	json.Unmarshal(resp.Body.Bytes(), &group)
	if group.Name != "Main" || group.Key == nil || *group.Key != "sidebar" {
		t.Errorf("Unexpected group in response: %+v", group)
	}
	if !group.IsActive {
		t.Error("Expected new group to default to active")
	}
}

func TestCreateGroupDuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	key := "sidebar"
	doJSON(t, router, "POST", "/api/menu-management/groups", GroupRequest{Name: "Main", Key: &key}, getAuthHeader(admin))
	resp := doJSON(t, router, "POST", "/api/menu-management/groups", GroupRequest{Name: "Other", Key: &key}, getAuthHeader(admin))

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateItemInvalidGroup(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	missing := uint(999)
	resp := doJSON(t, router, "POST", "/api/menu-management/items", ItemRequest{
		Title:       "Dashboard",
		MenuGroupID: &missing,
	}, getAuthHeader(admin))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["field"] != "menu_group_id" {
		t.Errorf("Expected offending field menu_group_id, got %q", body["field"])
	}
}

func TestUpdateItemSelfParent(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	item := createItem(t, db, "Dashboard", &group.ID, nil, 0, true)

	resp := doJSON(t, router, "PUT", "/api/menu-management/items/1", ItemRequest{
		Title:       "Dashboard",
		MenuGroupID: &group.ID,
		ParentID:    &item.ID,
	}, getAuthHeader(admin))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["field"] != "parent_id" {
		t.Errorf("Expected offending field parent_id, got %q", body["field"])
	}

	// The stored parent must be unchanged
	var stored models.MenuItem
	db.First(&stored, item.ID)
	if stored.ParentID != nil {
		t.Errorf("Expected stored parent_id to remain null, got %v", *stored.ParentID)
	}
}

func TestUpdateItemDescendantCycle(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	parent := createItem(t, db, "Parent", &group.ID, nil, 0, true)
	child := createItem(t, db, "Child", nil, &parent.ID, 0, true)
	grandchild := createItem(t, db, "Grandchild", nil, &child.ID, 0, true)

	// Reparenting Parent under its own grandchild must be rejected
	resp := doJSON(t, router, "PUT", "/api/menu-management/items/1", ItemRequest{
		Title:       "Parent",
		MenuGroupID: &group.ID,
		ParentID:    &grandchild.ID,
	}, getAuthHeader(admin))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}

	var stored models.MenuItem
	db.First(&stored, parent.ID)
	if stored.ParentID != nil {
		t.Errorf("Expected stored parent_id to remain null, got %v", *stored.ParentID)
	}
}

func TestUpdateItemDetachesSubtree(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	parent := createItem(t, db, "Parent", &group.ID, nil, 0, true)
	child := createItem(t, db, "Child", nil, &parent.ID, 0, true)

	// Omitting parent_id sets it to null: this is a replace, not a patch
	resp := doJSON(t, router, "PUT", "/api/menu-management/items/2", ItemRequest{
		Title:       "Child",
		MenuGroupID: &group.ID,
	}, getAuthHeader(admin))

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var stored models.MenuItem
	db.First(&stored, child.ID)
	if stored.ParentID != nil {
		t.Errorf("Expected parent_id cleared, got %v", *stored.ParentID)
	}
	if stored.MenuGroupID == nil || *stored.MenuGroupID != group.ID {
		t.Errorf("Expected item promoted to root under group %d, got %v", group.ID, stored.MenuGroupID)
	}
}

func TestDeleteGroupWithItems(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	item := createItem(t, db, "Dashboard", &group.ID, nil, 0, true)

	resp := doJSON(t, router, "DELETE", "/api/menu-management/groups/1", nil, getAuthHeader(admin))
	if resp.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}

	// Both the group and its item must survive
	if err := db.First(&models.MenuGroup{}, group.ID).Error; err != nil {
		t.Errorf("Expected group to survive rejected delete: %v", err)
	}
	if err := db.First(&models.MenuItem{}, item.ID).Error; err != nil {
		t.Errorf("Expected item to survive rejected delete: %v", err)
	}
}

func TestDeleteEmptyGroup(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)

	resp := doJSON(t, router, "DELETE", "/api/menu-management/groups/1", nil, getAuthHeader(admin))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if err := db.First(&models.MenuGroup{}, group.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Expected group to be deleted, got %v", err)
	}
}

func TestDeleteItemCascades(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	parent := createItem(t, db, "Parent", &group.ID, nil, 0, true)
	child := createItem(t, db, "Child", nil, &parent.ID, 0, true)
	grandchild := createItem(t, db, "Grandchild", nil, &child.ID, 0, true)
	sibling := createItem(t, db, "Sibling", &group.ID, nil, 1, true)

	resp := doJSON(t, router, "DELETE", "/api/menu-management/items/1", nil, getAuthHeader(admin))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	for _, id := range []uint{parent.ID, child.ID, grandchild.ID} {
		if err := db.First(&models.MenuItem{}, id).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
			t.Errorf("Expected item %d to be deleted with the subtree, got %v", id, err)
		}
	}
	if err := db.First(&models.MenuItem{}, sibling.ID).Error; err != nil {
		t.Errorf("Expected sibling to survive: %v", err)
	}
}

func TestUpdateOrderPromotesChild(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	main := createGroup(t, db, "Main", 0, true)
	dashboard := createItem(t, db, "Dashboard", &main.ID, nil, 0, true)
	reports := createItem(t, db, "Reports", nil, &dashboard.ID, 0, true)

	// Promote Reports to root level at position 0, Dashboard to position 1
	resp := doJSON(t, router, "POST", "/api/menu-management/update-order", OrderUpdateRequest{
		Items: []ItemOrderTuple{
			{ID: dashboard.ID, Order: 1, MenuGroupID: &main.ID},
			{ID: reports.ID, Order: 0, MenuGroupID: &main.ID},
		},
	}, getAuthHeader(admin))

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Applied int          `json:"applied"`
		Errors  []TupleError `json:"errors"`
	}
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Applied != 2 || len(result.Errors) != 0 {
		t.Fatalf("Expected 2 applied tuples, got %+v", result)
	}

	menuResp := doJSON(t, router, "GET", "/api/menu", nil, getAuthHeader(admin))
	var groups []tree.GroupView
	json.Unmarshal(menuResp.Body.Bytes(), &groups)

	if len(groups) != 1 || len(groups[0].Items) != 2 {
		t.Fatalf("Expected 2 root items under Main, got %+v", groups)
	}
	if groups[0].Items[0].Title != "Reports" || groups[0].Items[1].Title != "Dashboard" {
		t.Errorf("Expected Reports ahead of Dashboard, got %s, %s",
			groups[0].Items[0].Title, groups[0].Items[1].Title)
	}
	if len(groups[0].Items[1].Items) != 0 {
		t.Errorf("Expected Dashboard to have no children after the promotion, got %+v", groups[0].Items[1].Items)
	}
}

func TestUpdateOrderPartialApplication(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Main", 0, true)
	item := createItem(t, db, "Dashboard", &group.ID, nil, 0, true)

	resp := doJSON(t, router, "POST", "/api/menu-management/update-order", OrderUpdateRequest{
		Items: []ItemOrderTuple{
			{ID: item.ID, Order: 5, MenuGroupID: &group.ID},
			{ID: item.ID, Order: 0, ParentID: &item.ID, MenuGroupID: &group.ID}, // self-parent, must be skipped
			{ID: 999, Order: 1},                                                // unknown id, must be skipped
		},
	}, getAuthHeader(admin))

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Applied int          `json:"applied"`
		Errors  []TupleError `json:"errors"`
	}
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Applied != 1 {
		t.Errorf("Expected 1 applied tuple, got %d", result.Applied)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Expected 2 tuple errors, got %+v", result.Errors)
	}

	var stored models.MenuItem
	db.First(&stored, item.ID)
	if stored.Order != 5 {
		t.Errorf("Expected the valid tuple to apply, order is %d", stored.Order)
	}
	if stored.ParentID != nil {
		t.Errorf("Expected the self-parent tuple to be skipped, parent_id is %v", *stored.ParentID)
	}
}

func TestMenuEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)
	header := getAuthHeader(admin)

	// create Group -> root Item -> nested Item through the API
	resp := doJSON(t, router, "POST", "/api/menu-management/groups", GroupRequest{Name: "Main"}, header)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create group: %s", resp.Body.String())
	}
	var group models.MenuGroup
	json.Unmarshal(resp.Body.Bytes(), &group)

	resp = doJSON(t, router, "POST", "/api/menu-management/items", ItemRequest{
		Title:       "Dashboard",
		MenuGroupID: &group.ID,
	}, header)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create root item: %s", resp.Body.String())
	}
	var dashboard models.MenuItem
	json.Unmarshal(resp.Body.Bytes(), &dashboard)

	resp = doJSON(t, router, "POST", "/api/menu-management/items", ItemRequest{
		Title:    "Reports",
		ParentID: &dashboard.ID,
	}, header)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create nested item: %s", resp.Body.String())
	}

	menuResp := doJSON(t, router, "GET", "/api/menu", nil, header)
	var groups []tree.GroupView
	json.Unmarshal(menuResp.Body.Bytes(), &groups)

	if len(groups) != 1 || groups[0].Name != "Main" {
		t.Fatalf("Expected [Main], got %+v", groups)
	}
	if len(groups[0].Items) != 1 || groups[0].Items[0].Title != "Dashboard" {
		t.Fatalf("Expected Dashboard under Main, got %+v", groups[0].Items)
	}
	nested := groups[0].Items[0].Items
	if len(nested) != 1 || nested[0].Title != "Reports" {
		t.Fatalf("Expected Reports under Dashboard, got %+v", nested)
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)
	header := getAuthHeader(admin)

	group := createGroup(t, db, "Main", 0, true)
	createItem(t, db, "Dashboard", &group.ID, nil, 0, true)

	// Warm the cache
	menuResp := doJSON(t, router, "GET", "/api/menu", nil, header)
	var before []tree.GroupView
	json.Unmarshal(menuResp.Body.Bytes(), &before)
	if len(before[0].Items) != 1 {
		t.Fatalf("Expected 1 item before mutation, got %+v", before)
	}

	// Mutate through the API
	resp := doJSON(t, router, "POST", "/api/menu-management/items", ItemRequest{
		Title:       "Settings",
		MenuGroupID: &group.ID,
		Order:       1,
	}, header)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create item: %s", resp.Body.String())
	}

	// The very next read must reflect the mutation
	menuResp = doJSON(t, router, "GET", "/api/menu", nil, header)
	var after []tree.GroupView
	json.Unmarshal(menuResp.Body.Bytes(), &after)
	if len(after[0].Items) != 2 {
		t.Errorf("Expected the cache to be invalidated by the mutation, got %+v", after[0].Items)
	}
	if after[0].Items[1].Title != "Settings" {
		t.Errorf("Expected Settings in position 1, got %+v", after[0].Items)
	}
}

func TestIndexIncludesInactive(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	admin := createTestAdmin(t, db)

	group := createGroup(t, db, "Hidden", 0, false)
	createItem(t, db, "Dashboard", &group.ID, nil, 0, false)

	resp := doJSON(t, router, "GET", "/api/menu-management", nil, getAuthHeader(admin))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		MenuGroups []tree.AdminGroupView `json:"menu_groups"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if len(body.MenuGroups) != 1 || body.MenuGroups[0].Name != "Hidden" {
		t.Fatalf("Expected inactive group in the management tree, got %+v", body.MenuGroups)
	}
	if len(body.MenuGroups[0].Items) != 1 {
		t.Errorf("Expected inactive item in the management tree, got %+v", body.MenuGroups[0].Items)
	}
}

func TestMenuManagementRequiresAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)

	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        "user@example.com",
		PasswordHash: hash,
		Name:         "User",
		SystemRole:   models.SystemRoleUser,
	}
	db.Create(&user)

	resp := doJSON(t, router, "GET", "/api/menu-management", nil, getAuthHeader(user))
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}

	resp = doJSON(t, router, "GET", "/api/menu-management", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", resp.Code)
	}
}
