package repository

import (
	"context"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
)

// PaymentRepository persists payments. Lookups by id return
// errors.ErrPaymentNotFound when no row matches.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindAll(ctx context.Context) ([]model.Payment, error)
	FindByID(ctx context.Context, id int64) (*model.Payment, error)
	// FindFullByID preloads the appointment with its user and doctor.
	FindFullByID(ctx context.Context, id int64) (*model.Payment, error)
	FindByAppointmentID(ctx context.Context, appointmentID int64) ([]model.Payment, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error)
	Update(ctx context.Context, id int64, update model.PaymentUpdate) error
	Delete(ctx context.Context, id int64) error

	// MarkPaid applies a confirmed result to the pending payment whose
	// transaction id is checkoutRequestID. It returns the number of rows
	// changed, which is zero when no such pending payment exists.
	MarkPaid(ctx context.Context, checkoutRequestID string, paid model.PaidTransition) (int64, error)
	// MarkFailed is MarkPaid for failed or cancelled results.
	MarkFailed(ctx context.Context, checkoutRequestID string, failed model.FailedTransition) (int64, error)
}

// AppointmentRepository answers questions about appointments owned elsewhere.
type AppointmentRepository interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
