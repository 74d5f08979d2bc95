package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	apperrors "github.com/wekeepgrowing/hospital-payment/pkg/errors"
)

const (
	maxCallbackBody        = 1 << 20
	defaultUnresolvedLimit = 50
	maxUnresolvedLimit     = 500
)

// Initiator starts push payments.
type Initiator interface {
	Initiate(ctx context.Context, req *dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error)
}

// Reconciler applies gateway callbacks.
type Reconciler interface {
	Reconcile(ctx context.Context, appointmentRef string, raw []byte) (*dto.ReconcileResult, error)
	ListUnresolvedCallbacks(ctx context.Context, limit int) ([]model.PaymentCallbackEvent, error)
	CallbackHistory(ctx context.Context, checkoutRequestID string) ([]model.PaymentCallbackEvent, error)
}

// PushPaymentHandler serves the push payment flow: initiation and the
// gateway's result callback.
type PushPaymentHandler struct {
	initiator  Initiator
	reconciler Reconciler
	logger     *zap.Logger
}

func NewPushPaymentHandler(initiator Initiator, reconciler Reconciler, logger *zap.Logger) *PushPaymentHandler {
	return &PushPaymentHandler{
		initiator:  initiator,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Initiate handles POST /payments/initiate.
func (h *PushPaymentHandler) Initiate(c echo.Context) error {
	var req dto.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Debug("Invalid initiate request body", zap.Error(err))
		return toAppError(domainErrors.NewValidationError("", "invalid request body"))
	}

	resp, err := h.initiator.Initiate(c.Request().Context(), &req)
	if err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

// Callback handles POST /payments/payment-callback/:appointmentId. The
// gateway always gets a 200 so it stops redelivering; failures are kept in
// the callback journal.
func (h *PushPaymentHandler) Callback(c echo.Context) error {
	appointmentRef := c.Param("appointmentId")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("Error reading callback body",
			zap.String("appointment_ref", appointmentRef),
			zap.Error(err))
		return c.JSON(http.StatusOK, dto.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
	}

	result, err := h.reconciler.Reconcile(c.Request().Context(), appointmentRef, body)
	if err != nil {
		var malformed *domainErrors.MalformedCallbackError
		if errors.As(err, &malformed) {
			return c.JSON(http.StatusOK, dto.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
		}
		// Store failures are journaled by the reconciler; the delivery is still acknowledged.
		apperrors.LogError(h.logger, err, "Callback processing failed",
			zap.String("appointment_ref", appointmentRef))
	} else {
		h.logger.Debug("Callback processed",
			zap.String("appointment_ref", appointmentRef),
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.String("outcome", string(result.Outcome)))
	}

	return c.JSON(http.StatusOK, dto.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

// ListUnresolvedCallbacks handles GET /payments/callbacks/unresolved.
func (h *PushPaymentHandler) ListUnresolvedCallbacks(c echo.Context) error {
	limit := defaultUnresolvedLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return toAppError(domainErrors.NewValidationError("limit", "must be a positive integer"))
		}
		limit = parsed
	}
	if limit > maxUnresolvedLimit {
		limit = maxUnresolvedLimit
	}

	events, err := h.reconciler.ListUnresolvedCallbacks(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list unresolved callbacks", zap.Error(err))
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, events)
}

// CallbackHistory handles GET /payments/callbacks/checkout/:checkoutRequestID.
func (h *PushPaymentHandler) CallbackHistory(c echo.Context) error {
	events, err := h.reconciler.CallbackHistory(c.Request().Context(), c.Param("checkoutRequestID"))
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, events)
}
