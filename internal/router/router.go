// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/handlers"
	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/middleware"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

// Dependencies are the backends the API is served from. DB may be nil when
// the registry is in memory; audit logging is then skipped.
type Dependencies struct {
	DB       *gorm.DB
	Config   *config.Config
	Ledger   ledger.Client
	Registry registry.Registry
	Archive  *services.ArchiveService
}

func Initialize(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	// Initialize services
	sessions := services.NewSessionService()
	sessions.StartCleanup(time.Duration(cfg.JWT.SessionTokenTTL) * time.Hour)
	resolver := services.NewCapabilityResolver(deps.Ledger, cfg.Blockchain.CallTimeout)
	challenges := services.NewChallengeService(cfg.Frontend.BaseURL, cfg.JWT.ChallengeTTL)
	challenges.StartCleanup()
	authService := services.NewAuthService(resolver, sessions, challenges, cfg)
	certificateService := services.NewCertificateService(services.NewCertificateIssuer(), deps.Registry, deps.Ledger, deps.Archive, cfg)
	verificationService := services.NewVerificationService(deps.Registry, cfg.Blockchain.CallTimeout, cfg.Blockchain.CrossValidateHash)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	certificateHandler := handlers.NewCertificateHandler(certificateService, authService)
	verificationHandler := handlers.NewVerificationHandler(verificationService, certificateService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.AuditLogMiddleware(deps.DB))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"version":  "1.0.0",
			"network":  cfg.Blockchain.Network,
			"registry": cfg.RegistryBackend,
			"locales":  i18n.GetSupportedLanguages(),
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		{
			auth.POST("/challenge", middleware.AuthRateLimit(), authHandler.Challenge)
			auth.POST("/resolve", middleware.AuthRateLimit(), authHandler.Resolve)
			auth.POST("/logout", middleware.AuthRequired(sessions), authHandler.Logout)
			auth.GET("/me", middleware.AuthRequired(sessions), authHandler.Me)
		}

		// Certificate routes
		certificates := v1.Group("/certificates")
		{
			certificates.GET("/product/:productId/history", certificateHandler.History)

			protected := certificates.Group("")
			protected.Use(middleware.AuthRequired(sessions))
			protected.Use(middleware.RoleRequired(models.RolePrecedence...))
			{
				protected.POST("", certificateHandler.Issue)
			}
		}

		// Verification routes (public)
		verify := v1.Group("/verify")
		verify.Use(middleware.VerifyRateLimit(cfg.RateLimit.VerifyPerSecond, cfg.RateLimit.VerifyBurst))
		verify.Use(middleware.OptionalAuth(sessions))
		{
			verify.GET("", verificationHandler.Verify)
			verify.GET("/:id", verificationHandler.VerifyByID)
		}
	}

	return r
}
