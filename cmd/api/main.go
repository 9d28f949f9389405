package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/account"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/roster"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	policy := roster.ResolveAutoRegister
	if cfg.RequireRegistered {
		policy = roster.ResolveRequireRegistered
	}
	rosterSvc := roster.NewService(roster.NewRepository(db.Client), policy)
	accounts := account.NewService(account.NewRepository(db.Client))

	h := handler.New(rosterSvc, accounts, handler.Config{
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: gin.Mode() == gin.ReleaseMode,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	if cfg.RateLimitBackend == "memory" {
		r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())
	} else {
		r.Use(httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin).GinMiddleware())
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	api := r.Group("/api")

	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	// Public check-in endpoints.
	api.POST("/attendance", h.CheckInGlobal)
	api.GET("/attendance/:projectId", h.ProjectInfo)
	api.POST("/attendance/:projectId", h.CheckInProject)

	admin := api.Group("/admin", auth.AdminAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	admin.POST("/change-password", h.ChangePassword)

	admin.GET("/attendance", h.DailySheet)
	admin.GET("/attendance/stats", h.Stats)
	admin.GET("/attendance/export-all", h.ExportAll)
	admin.POST("/attendance/toggle", h.Toggle)

	admin.GET("/students", h.Students)
	admin.POST("/students/add", h.AddStudent)
	admin.POST("/students/merge", h.MergeStudents)
	admin.PATCH("/students/:id", h.EditStudent)
	admin.DELETE("/students/:id", h.RemoveStudent)

	admin.GET("/projects", h.ListProjects)
	admin.POST("/projects", h.CreateProject)
	admin.PATCH("/projects/:id", h.RenameProject)

	scoped := admin.Group("/:projectId")
	scoped.GET("/attendance", h.ProjectDailySheet)
	scoped.POST("/attendance/toggle", h.ProjectToggle)
	scoped.GET("/attendance/export-all", h.ProjectExportAll)
	scoped.GET("/students", h.ProjectStudents)
	scoped.POST("/students/merge", h.ProjectMergeStudents)
	scoped.PATCH("/students/:id", h.ProjectEditStudent)
	scoped.DELETE("/students/:id", h.ProjectRemoveStudent)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
