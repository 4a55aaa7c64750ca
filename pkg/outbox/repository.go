package outbox

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an outbox row on the caller's transaction. Refusing a nil tx
// keeps the row from ever committing separately from its business mutation.
func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(event).Error
}

// FetchUnpublished returns up to limit unprocessed rows, oldest first.
// Ordering is best-effort: concurrent producers do not get a global order.
func (r *Repository) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("processed = ?", false).
		Order("occurred_on ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPublished flips the processed flag after a confirmed publish. This runs
// in its own transaction; a crash between publish-ack and this update yields a
// duplicate publish on the next poll, which consumers dedup.
func (r *Repository) MarkPublished(id uuid.UUID) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed": true,
		}).Error
}

// MarkFailed records a failed publish attempt. Purely observability: the row
// stays unprocessed and is retried on every poll indefinitely.
func (r *Repository) MarkFailed(id uuid.UUID, pubErr error) error {
	msg := pubErr.Error()
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    msg,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// CountUnpublished reports the current backlog, used by readiness logging.
func (r *Repository) CountUnpublished() (int64, error) {
	var count int64
	err := r.db.Model(&models.OutboxEvent{}).
		Where("processed = ?", false).
		Count(&count).Error
	return count, err
}
