package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "convertflow/docs"
	"convertflow/internal/handler"
	"convertflow/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Conversion *handler.ConversionHandler
	Credit     *handler.CreditHandler
	Admin      *handler.AdminHandler
	Health     *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(logger *zap.Logger, allowedOrigins []string, verifier *middleware.TokenVerifier, h Handlers) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	// Documents are open to anonymous users, who get the free tier.
	documents := v1.Group("/documents")
	documents.Use(middleware.OptionalAuth(verifier))
	documents.POST("/analyze", h.Conversion.Analyze)
	documents.POST("/convert", h.Conversion.Convert)

	credits := v1.Group("/credits")
	credits.Use(middleware.RequireAuth(verifier))
	credits.GET("", h.Credit.Balance)
	credits.GET("/history", h.Credit.History)
	credits.GET("/history/export", h.Credit.ExportHistory)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAuth(verifier))
	admin.Use(middleware.RequireAdmin())
	admin.GET("/flags", h.Admin.Flags)
	admin.POST("/flags/emergency-disable", h.Admin.EmergencyDisable)
	admin.PUT("/flags/adobe", h.Admin.SetAdobe)
	admin.POST("/credits/:user_id", h.Admin.GrantCredits)
	admin.GET("/qa/history", h.Admin.QAHistory)

	return r
}
