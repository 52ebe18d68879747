// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/capstack-hq/capstack-backend/internal/api/handlers"
	"github.com/capstack-hq/capstack-backend/internal/api/middleware"
	"github.com/capstack-hq/capstack-backend/internal/config"
	"github.com/capstack-hq/capstack-backend/internal/cron"
	"github.com/capstack-hq/capstack-backend/internal/db"
	"github.com/capstack-hq/capstack-backend/internal/email"
	"github.com/capstack-hq/capstack-backend/internal/jobs"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/seed"
	"github.com/capstack-hq/capstack-backend/internal/service"
	"github.com/capstack-hq/capstack-backend/internal/socket"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("🔄 Running database migrations...")
	migrationsPath := "./internal/db/migrations"
	if err := db.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// ============================================
	// Initialize PostgreSQL (pgxpool + sqlx)
	// ============================================
	ctx := context.Background()

	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to create pgx pool: %v", err)
	}
	defer pg.Close()

	dbx, err := db.NewSQLxDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open sqlx DB: %v", err)
	}
	defer dbx.Close()

	log.Println("✅ Connected to PostgreSQL")

	// ============================================
	// Initialize Repositories
	// ============================================
	repos := repository.NewRepositories(pg.Pool, dbx)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (invitation queue)
	// ============================================
	var redisDB *db.RedisDB
	var queue *jobs.RedisQueue
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (invitation queue disabled)", err)
		} else {
			defer redisDB.Close()
			queue = jobs.NewRedisQueue(redisDB)
			log.Println("⚡ Redis invitation queue enabled")
		}
	}

	// ============================================
	// Initialize Email Service (optional)
	// ============================================
	var emailSvc *email.Service
	if cfg.SMTPHost != "" {
		emailSvc = email.NewService(&email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		log.Println("📧 Email service initialized")
	} else {
		log.Println("⚠️  Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)

	// WebSocket handler with JWT secret for self-authentication
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret)
	log.Println("🔌 WebSocket hub initialized")

	// ============================================
	// Seed Data (for development)
	// ============================================
	if cfg.Environment != "production" {
		log.Println("🌱 Seeding development data...")
		seed.SeedData(repos, pg.Pool)
	}

	// ============================================
	// Start Invitation Worker
	// ============================================
	var worker *jobs.Worker
	if queue != nil {
		worker = jobs.NewWorker(queue, repos, emailSvc, cfg.FrontendURL, cfg.InvitationTTLDays)
		worker.Start(ctx)
	} else {
		log.Println("⚠️  Invitation worker not started (no Redis)")
	}

	// ============================================
	// Initialize All Services
	// ============================================
	var queueDep jobs.Queue
	if queue != nil {
		queueDep = queue
	}
	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		EmailSvc:    emailSvc,
		Queue:       queueDep,
		Broadcaster: broadcaster,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Handlers
	// ============================================
	h := handlers.NewHandlers(services)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(repos)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"queue":      getQueueStatus(queue),
			"websocket":  "active",
			"ws_clients": hub.GetConnectedClientsCount(),
			"email":      getEmailStatus(emailSvc),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// ============================================
		// Public routes (no auth required)
		// ============================================
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/accept-invitation", h.Auth.AcceptInvitation)
			auth.GET("/invitations/:token", h.Auth.GetInvitation)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// WebSocket route
		api.GET("/ws", wsHandler.HandleWebSocket)

		// Payment processor callbacks (shared-secret auth, not user JWT)
		webhooks := api.Group("/webhooks")
		webhooks.Use(middleware.WebhookAuthMiddleware(cfg.WebhookSecret))
		{
			webhooks.POST("/dividend-transfers", h.Dividend.TransferWebhook)
		}

		// ============================================
		// Protected routes (require auth middleware)
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(services.Auth))
		{
			protected.GET("/users/me", h.Auth.Me)
			protected.PUT("/users/me", h.Auth.UpdateMe)
			protected.GET("/presence", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"online": hub.GetOnlineUsers()})
			})

			companies := protected.Group("/companies")
			{
				companies.GET("", h.Company.ListCompanies)
				companies.POST("", h.Company.CreateCompany)
				companies.GET("/:id", h.Company.GetCompany)

				// Membership
				companies.GET("/:id/members", h.Member.ListMembers)
				companies.GET("/:id/invitations", h.Member.ListInvitations)
				companies.POST("/:id/members/bulk", h.Member.BulkManageMembers)
				companies.DELETE("/:id/members/:userId", h.Member.RemoveMember)
				companies.POST("/:id/leave", h.Member.LeaveCompany)

				// Equity
				companies.POST("/:id/equity/calculate", h.Equity.CalculateInvoiceEquity)
				companies.PUT("/:id/invoices/:invoiceId/equity", h.Equity.ApplyInvoiceEquity)
				companies.POST("/:id/grants/:grantId/cancel", h.Equity.CancelGrant)
			}
		}
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getQueueStatus(queue *jobs.RedisQueue) string {
	if queue != nil {
		return "connected"
	}
	return "disabled"
}

func getEmailStatus(emailSvc *email.Service) string {
	if emailSvc != nil {
		return "configured"
	}
	return "disabled"
}
