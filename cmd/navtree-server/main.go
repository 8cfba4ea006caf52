package main

import (
	"log"

	"github.com/arifmahmud/navtree/pkg/navtree/auth"
	"github.com/arifmahmud/navtree/pkg/navtree/cache"
	"github.com/arifmahmud/navtree/pkg/navtree/config"
	"github.com/arifmahmud/navtree/pkg/navtree/database"
	"github.com/arifmahmud/navtree/pkg/navtree/menus"
	"github.com/arifmahmud/navtree/pkg/navtree/models"
	"github.com/arifmahmud/navtree/pkg/navtree/tree"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/arifmahmud/navtree/api/swagger"
)

// @title navtree API
// @version 1.0
// @description Hierarchical navigation menu service with cached tree snapshots.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	cfg := config.Load()

	if err := database.Connect(cfg.DBPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	backend, err := selectCacheBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache backend: %v", err)
	}

	builder := tree.NewBuilder(database.GetDB(), 0)
	coordinator := cache.NewCoordinator(backend, cache.Config{
		Enabled: cfg.Cache.Enabled,
		Key:     cfg.Cache.Key,
		TTL:     cfg.Cache.TTL,
	}, builder.BuildTree)

	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "navtree",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		menusHandler := menus.NewHandler(database.GetDB(), coordinator, builder, cfg)

		// Public menu route (viewer auth is optional; the access gate decides)
		menusHandler.RegisterMenuRoutes(api)

		// Menu management routes (JWT, admin role required)
		mgmt := api.Group("/menu-management")
		mgmt.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		menusHandler.RegisterRoutes(mgmt)
	}

	log.Printf("Starting navtree server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// selectCacheBackend picks Redis when configured, otherwise the
// in-process cache.
func selectCacheBackend(cfg config.Config) (cache.Backend, error) {
	if cfg.RedisURL != "" {
		backend, err := cache.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Println("Using Redis cache backend")
		return backend, nil
	}
	log.Println("Using in-process cache backend")
	return cache.NewMemoryBackend(), nil
}

// ensureAdminExists creates a default admin user if no admin exists in the database.
func ensureAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@navtree.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin@navtree.local (password: changeme)")
	return nil
}
