package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/stem-dashboard-api/internal/repository"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
)

// NewIngestionService wires the orchestrator onto PostgreSQL. Both the API
// server and stemctl ingest through it.
func NewIngestionService(db *sqlx.DB, cache *service.CacheService, metrics *service.MetricsService, cfg config.IngestionConfig, logger *zap.Logger) *service.IngestionService {
	store := repository.NewIngestStore(db,
		repository.NewStudentRepository(db),
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
	)
	return service.NewIngestionService(store, cache, metrics, validator.New(), cfg, logger)
}
