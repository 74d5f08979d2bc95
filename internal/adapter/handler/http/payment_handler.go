package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
)

// PaymentService is the administrative payment API.
type PaymentService interface {
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	GetPayment(ctx context.Context, id int64) (*model.Payment, error)
	GetFullPayment(ctx context.Context, id int64) (*model.Payment, error)
	GetPaymentsByAppointment(ctx context.Context, appointmentID int64) ([]model.Payment, error)
	UpdatePayment(ctx context.Context, id int64, req *dto.UpdatePaymentRequest) error
	DeletePayment(ctx context.Context, id int64) error
}

type PaymentHandler struct {
	usecase PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(usecase PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		usecase: usecase,
		logger:  logger,
	}
}

func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req dto.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return toAppError(domainErrors.NewValidationError("", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return toAppError(err)
	}

	payment, err := h.usecase.CreatePayment(c.Request().Context(), &req)
	if err != nil {
		return toAppError(err)
	}

	h.logger.Debug("Payment created via API", zap.Int64("payment_id", payment.ID))
	return c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Payment recorded successfully"})
}

func (h *PaymentHandler) ListPayments(c echo.Context) error {
	payments, err := h.usecase.ListPayments(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.usecase.GetPayment(c.Request().Context(), id)
	if err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) GetFullPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.usecase.GetFullPayment(c.Request().Context(), id)
	if err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) GetPaymentsByAppointment(c echo.Context) error {
	appointmentID, err := parseID(c, "appointmentID")
	if err != nil {
		return err
	}

	payments, err := h.usecase.GetPaymentsByAppointment(c.Request().Context(), appointmentID)
	if err != nil {
		h.logger.Error("Failed to get appointment payments",
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err))
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) UpdatePayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return toAppError(domainErrors.NewValidationError("", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return toAppError(err)
	}

	if err := h.usecase.UpdatePayment(c.Request().Context(), id, &req); err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Payment updated successfully"})
}

func (h *PaymentHandler) DeletePayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.usecase.DeletePayment(c.Request().Context(), id); err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Payment deleted successfully"})
}

func parseID(c echo.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, toAppError(domainErrors.NewValidationError(param, "must be a positive integer"))
	}
	return id, nil
}
