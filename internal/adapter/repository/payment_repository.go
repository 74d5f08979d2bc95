package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payment and fills in its generated id
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = model.PaymentStatusPending
	}

	if err := r.db.WithContext(ctx).Omit("Appointment").Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.Int64("appointment_id", payment.AppointmentID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// FindAll returns every payment with its appointment
func (r *paymentRepository) FindAll(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment

	err := r.db.WithContext(ctx).
		Preload("Appointment").
		Order("payment_id").
		Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.first(ctx, r.db.WithContext(ctx).Preload("Appointment").Where("payment_id = ?", id))
}

func (r *paymentRepository) FindFullByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.first(ctx, r.db.WithContext(ctx).
		Preload("Appointment.User").
		Preload("Appointment.Doctor").
		Where("payment_id = ?", id))
}

// FindByAppointmentID returns the payments of one appointment, oldest first
func (r *paymentRepository) FindByAppointmentID(ctx context.Context, appointmentID int64) ([]model.Payment, error) {
	var payments []model.Payment

	err := r.db.WithContext(ctx).
		Preload("Appointment").
		Where("appointment_id = ?", appointmentID).
		Order("payment_id").
		Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to list payments by appointment",
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID))
}

func (r *paymentRepository) first(ctx context.Context, query *gorm.DB) (*model.Payment, error) {
	var payment model.Payment

	if err := query.First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment", zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// Update applies an administrative partial update
func (r *paymentRepository) Update(ctx context.Context, id int64, update model.PaymentUpdate) error {
	if update.IsEmpty() {
		_, err := r.FindByID(ctx, id)
		return err
	}

	updates := map[string]interface{}{}
	if update.UserID != nil {
		updates["user_id"] = *update.UserID
	}
	if update.Amount != nil {
		updates["amount"] = update.Amount.Round(2)
	}
	if update.PaymentStatus != nil {
		updates["payment_status"] = string(*update.PaymentStatus)
	}
	if update.TransactionID != nil {
		updates["transaction_id"] = *update.TransactionID
	}
	if update.PaymentDate != nil {
		updates["payment_date"] = *update.PaymentDate
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		r.logger.Error("Failed to update payment",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrPaymentNotFound
	}

	return nil
}

func (r *paymentRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("payment_id = ?", id).Delete(&model.Payment{})
	if result.Error != nil {
		r.logger.Error("Failed to delete payment",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to delete payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrPaymentNotFound
	}

	return nil
}

// MarkPaid only touches a row that is still pending, so a duplicate or late
// callback changes nothing.
func (r *paymentRepository) MarkPaid(ctx context.Context, checkoutRequestID string, paid model.PaidTransition) (int64, error) {
	updates := map[string]interface{}{
		"payment_status":      string(model.PaymentStatusPaid),
		"transaction_id":      paid.ReceiptNumber,
		"payment_date":        paid.PaymentDate,
		"result_code":         paid.ResultCode,
		"result_desc":         paid.ResultDesc,
		"updated_at":          paid.UpdatedAt,
		"checkout_request_id": gorm.Expr("COALESCE(checkout_request_id, ?)", checkoutRequestID),
	}
	if paid.Amount != nil {
		updates["amount"] = paid.Amount.Round(2)
	}

	return r.transitionPending(ctx, checkoutRequestID, updates)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, checkoutRequestID string, failed model.FailedTransition) (int64, error) {
	updates := map[string]interface{}{
		"payment_status":      string(model.PaymentStatusFailed),
		"result_code":         failed.ResultCode,
		"result_desc":         failed.ResultDesc,
		"updated_at":          failed.UpdatedAt,
		"checkout_request_id": gorm.Expr("COALESCE(checkout_request_id, ?)", checkoutRequestID),
	}

	return r.transitionPending(ctx, checkoutRequestID, updates)
}

func (r *paymentRepository) transitionPending(ctx context.Context, checkoutRequestID string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("transaction_id = ? AND payment_status = ?", checkoutRequestID, string(model.PaymentStatusPending)).
		Updates(updates)
	if result.Error != nil {
		r.logger.Error("Failed to transition pending payment",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Any("status", updates["payment_status"]),
			zap.Error(result.Error))
		return 0, fmt.Errorf("failed to update payment status: %w", result.Error)
	}

	return result.RowsAffected, nil
}
