package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/agridesk/agridesk/internal/catalog"
)

// CatalogIntegrityJob re-runs the orphan-grant check the server performs at
// boot, catching drift caused by out-of-band schema surgery.
type CatalogIntegrityJob struct {
	service *catalog.Service
	logger  *slog.Logger
}

// NewCatalogIntegrityJob constructs the job.
func NewCatalogIntegrityJob(service *catalog.Service, logger *slog.Logger) *CatalogIntegrityJob {
	return &CatalogIntegrityJob{service: service, logger: logger}
}

// Handle processes TaskCatalogIntegrity tasks.
func (j *CatalogIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.service.VerifyIntegrity(ctx); err != nil {
		if j.logger != nil {
			j.logger.Error("catalog integrity check failed", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("catalog integrity check passed", slog.String("job", "catalog_integrity"))
	}
	return nil
}
