package app

import (
	"UserService/internal/auth"
	"UserService/internal/cache"
	"UserService/internal/config"
	"UserService/internal/events"
	"UserService/internal/handlers"
	"UserService/internal/repo"
	"UserService/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client, pub *events.RabbitPublisher) error {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		return err
	}

	userRepo := repo.NewPGUserRepo(db)
	userCache := cache.NewUserCache(rdb, cfg.Redis.DefaultTTL.Duration())
	userSvc := service.NewUserService(userRepo, pub, userCache)
	userHandler := handlers.NewUserHandler(tokens, userSvc)

	api := r.Group("/api")
	registerUserRoutes(api, userHandler, tokens)
	return nil
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "User API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/users",
		})
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerUserRoutes(api *gin.RouterGroup, h *handlers.UserHandler, tokens *auth.TokenService) {
	api.POST("/users", h.Register)
	api.POST("/users/login", h.Login)
	api.GET("/users", h.List)

	protected := api.Group("", auth.RequireAuth(tokens))
	protected.POST("/users/logout", h.Logout)
	protected.POST("/users/validate-token", h.ValidateToken)
	protected.GET("/users/:id", h.GetByID)
	protected.PUT("/users/:id", h.Update)
	protected.PUT("/users/:id/password", h.ChangePassword)
	protected.DELETE("/users/:id", h.Delete)
}
