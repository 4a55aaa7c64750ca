package inbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
)

// ErrDuplicateMessage reports that the message id already has an inbox row,
// meaning its effect was applied by an earlier delivery.
var ErrDuplicateMessage = errors.New("inbox: duplicate message")

type Repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Record inserts the inbox row on the caller's transaction. The unique index
// on message_id is the durable dedup guard: a second delivery of the same
// message collides here and the whole transaction, effect included, rolls
// back. Callers translate ErrDuplicateMessage into an ack without reapplying.
func (r *Repository) Record(tx *gorm.DB, row *models.InboxMessage) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	row.Processed = true
	if err := tx.Create(row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrDuplicateMessage
		}
		return err
	}
	return nil
}

// Seen reports whether a message id already has an inbox row. Read-only
// pre-check; the unique index stays the authority under races.
func (r *Repository) Seen(messageID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.InboxMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
