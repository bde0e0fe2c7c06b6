package outbox

import (
	"context"

	"github.com/grimsurvivors/potdhub/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the durable command queue for the game process. Commands are
// delivered oldest-first and stay pending until the bridge acknowledges
// them, giving at-least-once delivery.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates an outbox Service.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Enqueue appends a command to the queue.
func (s *Service) Enqueue(ctx context.Context, cmdType, payload string) error {
	return s.EnqueueTx(s.db.WithContext(ctx), cmdType, payload)
}

// EnqueueTx appends a command inside an existing transaction, so the command
// commits or rolls back together with the caller's other writes.
func (s *Service) EnqueueTx(tx *gorm.DB, cmdType, payload string) error {
	return tx.Create(&model.PendingCommand{
		Type:    cmdType,
		Payload: payload,
	}).Error
}

// FetchPending returns all unprocessed commands, oldest first.
func (s *Service) FetchPending(ctx context.Context) ([]model.PendingCommand, error) {
	var commands []model.PendingCommand
	err := s.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC, id ASC").
		Find(&commands).Error
	return commands, err
}

// Acknowledge marks the given command ids processed. Unknown and already
// processed ids are ignored, so re-acknowledging is harmless.
func (s *Service) Acknowledge(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&model.PendingCommand{}).
		Where("id IN ?", ids).
		Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	s.logger.Debug("commands acknowledged",
		zap.Int("requested", len(ids)),
		zap.Int64("updated", res.RowsAffected))
	return nil
}
