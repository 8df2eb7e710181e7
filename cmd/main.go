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

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/blockchain"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/database"
	"airdrop-backend/internal/handlers"
	"airdrop-backend/internal/jobs"
	"airdrop-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Build the plan catalog. A broken catalog (duplicate tiers,
	// non-monotonic rewards) either aborts startup or logs loudly,
	// depending on STRICT_PLAN_CONFIG.
	catalog, err := config.DefaultPlanCatalog()
	if err != nil {
		if cfg.Payments.StrictPlanConfig {
			log.Fatalf("Invalid plan configuration: %v", err)
		}
		log.Printf("WARNING: invalid plan configuration: %v", err)
	}
	if catalog == nil {
		log.Fatal("No usable plan catalog")
	}

	// Initialize Solana client
	solanaClient, err := blockchain.NewSolanaClient(cfg.Solana.Network, cfg.Solana.MerchantWallet)
	if err != nil {
		log.Fatalf("Failed to initialize Solana client: %v", err)
	}

	// Initialize services
	db := database.GetDB()
	userService := services.NewUserService(db, catalog)
	claimService := services.NewClaimService(db, catalog, cfg.Claims.DayKeyUTCOffset)
	referralService := services.NewReferralService(db, catalog, cfg.Referral)
	authService := services.NewAuthService(db, catalog, referralService)
	paymentService := services.NewPaymentService(
		db,
		catalog,
		solanaClient,
		cfg.Solana.MerchantWallet,
		cfg.Payments.RequireManualApproval,
		time.Duration(cfg.Solana.VerifyTimeoutSeconds)*time.Second,
	)
	adminService := services.NewAdminService(db, catalog, cfg.Admin.Wallets)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, claimService, catalog)
	claimHandler := handlers.NewClaimHandler(claimService)
	referralHandler := handlers.NewReferralHandler(referralService, userService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(adminService)
	planHandler := handlers.NewPlanHandler(catalog)

	// Start payment reconciler job
	reconcilerJob := jobs.NewPaymentReconcilerJob(paymentService)
	reconcilerJob.Start(time.Duration(cfg.Payments.ReconcileMinutes) * time.Minute)
	log.Println("Payment reconciler job started")

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000", // Local development
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	// Add additional frontend URL from environment if provided
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public plan catalog
	router.GET("/api/plans", planHandler.ListPlans)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		api.GET("/user/profile", userHandler.GetProfile)

		// Claim endpoints
		api.POST("/claims", claimHandler.Claim)
		api.GET("/claims/status", claimHandler.GetStatus)

		// Referral endpoints
		api.GET("/referral/code", referralHandler.GetReferralCode)
		api.POST("/referral/validate", referralHandler.ValidateCode)
		api.POST("/referral/redeem", referralHandler.RedeemCode)
		api.GET("/referral/stats", referralHandler.GetStats)

		// Payment endpoints
		api.POST("/payments/intent", paymentHandler.CreateIntent)
		api.POST("/payments/confirm", paymentHandler.ConfirmPayment)
		api.GET("/payments/history", paymentHandler.GetHistory)
		api.GET("/payments/:txn_id", paymentHandler.GetTransaction)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.RequireAdmin())
	{
		admin.GET("/approvals", adminHandler.ListPendingApprovals)
		admin.POST("/approvals/:txn_id/approve", adminHandler.ApprovePayment)
		admin.POST("/approvals/:txn_id/refund", adminHandler.RefundPayment)
		admin.GET("/logs", adminHandler.GetAdminLogs)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Wallet auth: POST http://localhost:%s/auth/wallet", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
