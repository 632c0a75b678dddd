package service

import (
	"context"
	"time"

	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthReport is the aggregate health of the service and its dependencies.
type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Healthy reports whether every check passed.
func (r *HealthReport) Healthy() bool {
	return r.Status == StatusHealthy
}

type HealthService struct {
	name    string
	db      database.Database
	store   storage.ObjectStore
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewHealthService(name string, db database.Database, store storage.ObjectStore, logger *zap.Logger) *HealthService {
	return &HealthService{
		name:    name,
		db:      db,
		store:   store,
		timeout: 3 * time.Second,
		logger:  logger,
		now:     time.Now,
	}
}

// Check runs the database and storage checks concurrently.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var dbErr, storeErr error
	var g errgroup.Group
	g.Go(func() error {
		dbErr = s.db.HealthCheck(ctx)
		return nil
	})
	g.Go(func() error {
		storeErr = s.store.HealthCheck(ctx)
		return nil
	})
	_ = g.Wait()

	report := &HealthReport{
		Status:    StatusHealthy,
		Timestamp: s.now().UTC(),
		Service:   s.name,
		Checks: map[string]string{
			"service":  StatusHealthy,
			"database": StatusHealthy,
			"storage":  StatusHealthy,
		},
	}
	if dbErr != nil {
		s.logger.Warn("database health check failed", zap.Error(dbErr))
		report.Checks["database"] = StatusUnhealthy
		report.Status = StatusUnhealthy
	}
	if storeErr != nil {
		s.logger.Warn("storage health check failed", zap.Error(storeErr))
		report.Checks["storage"] = StatusUnhealthy
		report.Status = StatusUnhealthy
	}
	return report
}
