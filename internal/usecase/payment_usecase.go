package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
)

// PaymentUsecase serves administrative payment CRUD.
type PaymentUsecase struct {
	paymentRepo repository.PaymentRepository
	logger      *zap.Logger
}

func NewPaymentUsecase(paymentRepo repository.PaymentRepository, logger *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

// CreatePayment records a payment directly. Status defaults to pending.
func (u *PaymentUsecase) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*model.Payment, error) {
	if req == nil {
		return nil, domainErrors.NewValidationError("", "request body is required")
	}
	if req.AppointmentID <= 0 {
		return nil, domainErrors.NewValidationError("appointment_id", "is required")
	}
	if err := validateAmount(req.Amount, true); err != nil {
		return nil, err
	}

	status := model.PaymentStatusPending
	if req.PaymentStatus != "" {
		status = model.PaymentStatus(req.PaymentStatus)
		if !status.Valid() {
			return nil, domainErrors.NewValidationError("payment_status", "must be pending, paid or failed")
		}
	}

	payment := &model.Payment{
		AppointmentID: req.AppointmentID,
		UserID:        req.UserID,
		Amount:        req.Amount.Round(2),
		PaymentStatus: status,
		TransactionID: req.TransactionID,
		PaymentDate:   req.PaymentDate.Ptr(),
	}
	if err := u.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	u.logger.Info("Payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("appointment_id", payment.AppointmentID),
		zap.String("status", string(payment.PaymentStatus)))
	return payment, nil
}

func (u *PaymentUsecase) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return u.paymentRepo.FindAll(ctx)
}

func (u *PaymentUsecase) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return u.paymentRepo.FindByID(ctx, id)
}

// GetFullPayment includes the appointment's user and doctor.
func (u *PaymentUsecase) GetFullPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return u.paymentRepo.FindFullByID(ctx, id)
}

func (u *PaymentUsecase) GetPaymentsByAppointment(ctx context.Context, appointmentID int64) ([]model.Payment, error) {
	return u.paymentRepo.FindByAppointmentID(ctx, appointmentID)
}

// UpdatePayment applies an administrative change. Unlike reconciliation it
// may move a payment between any statuses.
func (u *PaymentUsecase) UpdatePayment(ctx context.Context, id int64, req *dto.UpdatePaymentRequest) error {
	if req == nil {
		return domainErrors.NewValidationError("", "request body is required")
	}

	update := model.PaymentUpdate{
		UserID:        req.UserID,
		TransactionID: req.TransactionID,
		PaymentDate:   req.PaymentDate.Ptr(),
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount, true); err != nil {
			return err
		}
		update.Amount = req.Amount
	}
	if req.PaymentStatus != nil {
		status := model.PaymentStatus(*req.PaymentStatus)
		if !status.Valid() {
			return domainErrors.NewValidationError("payment_status", "must be pending, paid or failed")
		}
		update.PaymentStatus = &status
	}

	if err := u.paymentRepo.Update(ctx, id, update); err != nil {
		return err
	}

	u.logger.Info("Payment updated", zap.Int64("payment_id", id))
	return nil
}

func (u *PaymentUsecase) DeletePayment(ctx context.Context, id int64) error {
	if err := u.paymentRepo.Delete(ctx, id); err != nil {
		return err
	}

	u.logger.Info("Payment deleted", zap.Int64("payment_id", id))
	return nil
}
