package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
)

type callbackEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCallbackEventRepository creates a new callback journal repository
func NewCallbackEventRepository(db *gorm.DB, logger *zap.Logger) repository.CallbackEventRepository {
	return &callbackEventRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a callback delivery, assigning an id when missing
func (r *callbackEventRepository) Save(ctx context.Context, event *model.PaymentCallbackEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.Error("Failed to save callback event",
			zap.String("checkout_request_id", event.CheckoutRequestID),
			zap.String("outcome", string(event.Outcome)),
			zap.Error(err))
		return fmt.Errorf("failed to save callback event: %w", err)
	}

	return nil
}

func (r *callbackEventRepository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) ([]model.PaymentCallbackEvent, error) {
	var events []model.PaymentCallbackEvent

	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		Order("received_at").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get callback events: %w", err)
	}

	return events, nil
}

func (r *callbackEventRepository) ListNeedingAttention(ctx context.Context, limit int) ([]model.PaymentCallbackEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []model.PaymentCallbackEvent
	err := r.db.WithContext(ctx).
		Where("outcome IN ?", []string{
			string(model.CallbackOutcomeUnmatched),
			string(model.CallbackOutcomeMalformed),
			string(model.CallbackOutcomeError),
		}).
		Order("received_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list callback events: %w", err)
	}

	return events, nil
}
