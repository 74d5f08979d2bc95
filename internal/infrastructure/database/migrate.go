package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
)

// Migrate creates the tables this service owns. appointments, users and
// doctors belong to the hospital core schema and are only read here.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&model.Payment{},
		&model.PaymentCallbackEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}
	logger.Info("GORM auto-migrations completed successfully")

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// One pending payment per checkout request id.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_pending_payment_transaction ON payments (transaction_id) WHERE payment_status = 'pending'`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payment_callback_events_attention ON payment_callback_events (received_at DESC) WHERE outcome IN ('unmatched', 'malformed', 'error')`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments (payment_status)`).Error; err != nil {
		return err
	}

	return nil
}
