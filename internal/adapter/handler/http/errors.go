package http

import (
	"errors"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	apperrors "github.com/wekeepgrowing/hospital-payment/pkg/errors"
)

// toAppError maps domain errors onto the codes the HTTP error handler renders.
func toAppError(err error) error {
	var validationErr *domainErrors.ValidationError
	var initiationErr *domainErrors.PaymentInitiationError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &validationErr):
		return apperrors.NewAppError(apperrors.ErrInvalidArgument, validationErr.Error(), err)
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		return apperrors.NewAppError(apperrors.ErrNotFound, "Payment not found", err)
	case errors.Is(err, domainErrors.ErrAppointmentNotFound):
		return apperrors.NewAppError(apperrors.ErrNotFound, "Appointment not found", err)
	case errors.As(err, &initiationErr):
		return apperrors.NewAppError(apperrors.ErrBadGateway, "Failed to initiate payment", err)
	default:
		return apperrors.NewAppError(apperrors.ErrInternal, "Internal server error", err)
	}
}
