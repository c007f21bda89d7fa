package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

// Repository persists runs and prompts.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRun(ctx context.Context, run entities.PipelineRun) error {
	row := runModelFromEntity(run)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: run %s already exists", domainerrors.ErrRepositoryInvariantBroke, run.RunID)
		}
		return err
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, runID string) (entities.PipelineRun, error) {
	var row runModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PipelineRun{}, domainerrors.ErrRunNotFound
		}
		return entities.PipelineRun{}, err
	}
	return row.toEntity(), nil
}

// UpdateRun locks the row for the duration of mutate so concurrent stage
// writes serialize.
func (r *Repository) UpdateRun(
	ctx context.Context,
	runID string,
	mutate func(*entities.PipelineRun) error,
) (entities.PipelineRun, error) {
	var updated entities.PipelineRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row runModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("run_id = ?", runID).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRunNotFound
			}
			return err
		}

		run := row.toEntity()
		if err := mutate(&run); err != nil {
			updated = row.toEntity()
			return err
		}
		next := runModelFromEntity(run)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		updated = run
		return nil
	})
	if err != nil {
		return updated, err
	}
	r.logger.Debug("pipeline run updated",
		"event", "pipeline_run_row_updated",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"run_id", runID,
		"status", updated.Status,
	)
	return updated, nil
}

func (r *Repository) FindCanonical(ctx context.Context, title string) (entities.PromptRecord, bool, error) {
	var row promptModel
	err := r.db.WithContext(ctx).
		Where("LOWER(title) = ?", entities.NormalizeTitle(title)).
		Where("approved = ?", true).
		Order("created_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PromptRecord{}, false, nil
		}
		return entities.PromptRecord{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CreatePrompt(ctx context.Context, record entities.PromptRecord) error {
	row := promptModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: prompt %s already exists", domainerrors.ErrRepositoryInvariantBroke, record.PromptID)
		}
		return err
	}
	return nil
}

func (r *Repository) ListPromptsByEmail(ctx context.Context, email string, limit int) ([]entities.PromptRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []promptModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		Order("prompt_id DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.PromptRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
