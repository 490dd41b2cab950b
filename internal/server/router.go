package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/stem-dashboard-api/api/swagger"
	"github.com/noah-isme/stem-dashboard-api/internal/handler"
	"github.com/noah-isme/stem-dashboard-api/internal/middleware"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/stem-dashboard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/stem-dashboard-api/pkg/middleware/requestid"
)

// Deps are the collaborators the HTTP layer is assembled from.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Tokens  middleware.TokenValidator
	Uploads *handler.UploadHandler
	Summary *handler.SummaryHandler
	Health  *handler.MetricsHandler
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	logr := deps.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	r.GET("/metrics", deps.Health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.Tokens), middleware.WithResponseMeta())

	api.POST("/uploads",
		middleware.RequireRoles(models.RoleAdmin, models.RoleDataAdmin),
		middleware.Audit(logr, "upload"),
		deps.Uploads.Upload,
	)
	if cfg.Summary.Enabled {
		api.GET("/summary",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDataAdmin, models.RoleViewer),
			deps.Summary.Summary,
		)
	}

	return r
}
