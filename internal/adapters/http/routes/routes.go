package routes

import (
	"time"

	"fuelink/internal/adapters/http/handlers"
	"fuelink/internal/adapters/http/middleware"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/config"
	"fuelink/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and returns the cron
// service so the caller owns its lifecycle.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.CronService {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	partyRepo := repositories.NewPartyRepository(db)
	creditLineRepo := repositories.NewCreditLineRepository(db)
	voucherRepo := repositories.NewVoucherRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	idempotencyRepo := repositories.NewIdempotencyRepository(db)
	loanRepo := repositories.NewLoanRepository(db)

	// Initialize services
	notifyService := services.NewNotificationService()
	scoringService := services.NewScoringService()
	authService := services.NewAuthService(userRepo, refreshTokenRepo, partyRepo, cfg)
	userService := services.NewUserService(userRepo)
	partyService := services.NewPartyService(partyRepo, scoringService)
	creditService := services.NewCreditService(creditLineRepo, partyRepo, scoringService, cfg.Credit.ReserveMaxRetries)

	retention := time.Duration(cfg.Credit.VoucherTTLMinutes*cfg.Credit.IdempotencyFactor) * time.Minute
	guardService := services.NewIdempotencyService(idempotencyRepo, retention)

	voucherService := services.NewVoucherService(
		voucherRepo, partyRepo, creditService, guardService, notifyService,
		cfg.Credit.VoucherTTLMinutes,
	)
	loanService := services.NewLoanService(loanRepo, creditService, notifyService, cfg.Loan.TermDays, cfg.Loan.GraceDays)
	transactionService := services.NewTransactionService(
		transactionRepo, voucherRepo, partyRepo, creditService, loanService,
		guardService, notifyService,
	)

	cronService := services.NewCronService(
		voucherService, transactionService, loanService, guardService, refreshTokenRepo,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	partyHandler := handlers.NewPartyHandler(partyService)
	creditHandler := handlers.NewCreditHandler(creditService)
	voucherHandler := handlers.NewVoucherHandler(voucherService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	loanHandler := handlers.NewLoanHandler(loanService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := apiV1.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	// Account routes (authenticated; listing and activation are admin only)
	userRoutes := apiV1.Group("/users")
	userRoutes.Use(middleware.AuthMiddleware(cfg))
	setupUserRoutes(userRoutes, userHandler)

	// Party onboarding and directory routes
	setupPartyRoutes(apiV1, partyHandler, cfg)

	// Credit line routes (bank/admin manage, any authenticated party reads)
	creditRoutes := apiV1.Group("/credit-lines")
	creditRoutes.Use(middleware.AuthMiddleware(cfg))
	setupCreditRoutes(creditRoutes, creditHandler)

	// Voucher routes (drivers issue, stations look up)
	voucherRoutes := apiV1.Group("/vouchers")
	voucherRoutes.Use(middleware.AuthMiddleware(cfg))
	setupVoucherRoutes(voucherRoutes, voucherHandler)

	// Transaction routes (stations drive the hold/capture cycle)
	transactionRoutes := apiV1.Group("/transactions")
	transactionRoutes.Use(middleware.AuthMiddleware(cfg))
	setupTransactionRoutes(transactionRoutes, transactionHandler)

	// Loan routes
	loanRoutes := apiV1.Group("/loans")
	loanRoutes.Use(middleware.AuthMiddleware(cfg))
	setupLoanRoutes(loanRoutes, loanHandler)

	return cronService
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes (rate limited against brute force)
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

// setupUserRoutes configures account management routes
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/me", handler.GetProfile)
	router.Patch("/me", handler.UpdateProfile)
	router.Post("/me/password", handler.ChangePassword)

	router.Get("/", middleware.AdminOnly(), handler.ListUsers)
	router.Patch("/:id/active", middleware.AdminOnly(), handler.SetActive)
}

// setupPartyRoutes configures onboarding and directory routes
func setupPartyRoutes(router fiber.Router, handler *handlers.PartyHandler, cfg *config.Config) {
	// Station directory is public so driver apps can browse before login
	router.Get("/stations", middleware.StationListCache(), handler.ListStations)

	auth := middleware.AuthMiddleware(cfg)

	router.Post("/banks", auth, middleware.AdminOnly(), handler.CreateBank)
	router.Post("/agencies", auth, middleware.BankOrAdmin(), handler.CreateAgency)
	router.Post("/agencies/:id/rescore", auth, middleware.BankOrAdmin(), handler.RescoreAgency)
	router.Get("/agencies/:id/drivers", auth, middleware.AgencyOrAdmin(), handler.ListAgencyDrivers)
	router.Post("/drivers", auth, middleware.AgencyOrAdmin(), handler.CreateDriver)
	router.Get("/drivers/:id/score", auth, middleware.BankOrAdmin(), handler.ScoreDriver)
	router.Post("/stations", auth, middleware.AdminOnly(), handler.CreateStation)
}

// setupCreditRoutes configures credit line routes
func setupCreditRoutes(router fiber.Router, handler *handlers.CreditHandler) {
	router.Post("/", middleware.BankOrAdmin(), handler.CreateLine)
	router.Get("/:id", handler.GetLine)
	router.Get("/:id/available", handler.GetAvailable)
	router.Patch("/:id/limit", middleware.BankOrAdmin(), handler.ResizeLine)
	router.Post("/:id/deactivate", middleware.BankOrAdmin(), handler.DeactivateLine)
}

// setupVoucherRoutes configures voucher routes
func setupVoucherRoutes(router fiber.Router, handler *handlers.VoucherHandler) {
	router.Post("/", middleware.DriverOnly(), handler.Issue)
	router.Get("/", middleware.DriverOnly(), handler.ListMine)
	router.Get("/:code", handler.GetByCode)
}

// setupTransactionRoutes configures the hold/capture routes
func setupTransactionRoutes(router fiber.Router, handler *handlers.TransactionHandler) {
	router.Post("/authorize", middleware.StationOnly(), middleware.RedeemRateLimiter(), handler.Authorize)
	router.Post("/:id/settle", middleware.StationOnly(), handler.Settle)
	router.Post("/:id/cancel", middleware.StationOnly(), handler.Cancel)
	router.Get("/:id/settlement-intent", middleware.BankOrAdmin(), handler.GetSettlementIntent)
	router.Get("/:id", handler.Get)
	router.Get("/", handler.ListMine)
}

// setupLoanRoutes configures loan routes
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	router.Get("/", handler.ListMine)
	router.Get("/:id", handler.Get)
	router.Get("/:id/statement", handler.Statement)
	router.Post("/:id/repayments", middleware.BankOrAdmin(), handler.PostRepayment)
	router.Post("/:id/default", middleware.BankOrAdmin(), handler.MarkDefaulted)
}
