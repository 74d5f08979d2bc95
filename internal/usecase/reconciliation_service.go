package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/event"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/metrics"
)

// ReconciliationService applies gateway callbacks to pending payments.
type ReconciliationService struct {
	gateway     provider.PushGateway
	paymentRepo repository.PaymentRepository
	eventRepo   repository.CallbackEventRepository
	publisher   event.Publisher
	metrics     *metrics.PaymentMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	gateway provider.PushGateway,
	paymentRepo repository.PaymentRepository,
	eventRepo repository.CallbackEventRepository,
	publisher event.Publisher,
	paymentMetrics *metrics.PaymentMetrics,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		gateway:     gateway,
		paymentRepo: paymentRepo,
		eventRepo:   eventRepo,
		publisher:   publisher,
		metrics:     paymentMetrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the time source.
func (s *ReconciliationService) WithClock(now func() time.Time) *ReconciliationService {
	s.now = now
	return s
}

// Reconcile applies one callback delivery. Every delivery is journaled.
//
// A payment only moves out of pending once: repeated or unknown callbacks
// report the duplicate or unmatched outcome with a nil error. A
// MalformedCallbackError or a store error is returned together with the
// result; callers still acknowledge the gateway.
func (s *ReconciliationService) Reconcile(ctx context.Context, appointmentRef string, raw []byte) (*dto.ReconcileResult, error) {
	received := s.now()
	journal := &model.PaymentCallbackEvent{
		ID:         uuid.New(),
		Payload:    payloadJSON(raw),
		ReceivedAt: received,
	}
	if id, err := strconv.ParseInt(appointmentRef, 10, 64); err == nil {
		journal.AppointmentID = &id
	}

	callback, err := s.gateway.ParseCallback(raw)
	if err != nil {
		s.logger.Error("Malformed gateway callback",
			zap.String("appointment_ref", appointmentRef),
			zap.ByteString("payload", raw),
			zap.Error(err))
		return s.finish(ctx, journal, model.CallbackOutcomeMalformed, err)
	}

	resultCode := callback.ResultCode
	journal.CheckoutRequestID = callback.CheckoutRequestID
	journal.MerchantRequestID = callback.MerchantRequestID
	journal.ResultCode = &resultCode
	journal.ResultDesc = callback.ResultDesc

	var rows int64
	if callback.Succeeded() {
		rows, err = s.paymentRepo.MarkPaid(ctx, callback.CheckoutRequestID, model.PaidTransition{
			ReceiptNumber: callback.ReceiptNumber,
			Amount:        callback.Amount,
			PaymentDate:   dateOf(received),
			ResultCode:    callback.ResultCode,
			ResultDesc:    callback.ResultDesc,
			UpdatedAt:     received,
		})
	} else {
		rows, err = s.paymentRepo.MarkFailed(ctx, callback.CheckoutRequestID, model.FailedTransition{
			ResultCode: callback.ResultCode,
			ResultDesc: callback.ResultDesc,
			UpdatedAt:  received,
		})
	}
	if err != nil {
		s.logger.Error("Failed to apply gateway callback",
			zap.String("checkout_request_id", callback.CheckoutRequestID),
			zap.Int("result_code", callback.ResultCode),
			zap.ByteString("payload", raw),
			zap.Error(err))
		return s.finish(ctx, journal, model.CallbackOutcomeError, err)
	}

	if rows == 0 {
		return s.finish(ctx, journal, s.classifyNoMatch(ctx, journal, callback), nil)
	}

	outcome := model.CallbackOutcomeFailed
	if callback.Succeeded() {
		outcome = model.CallbackOutcomePaid
	}

	payment, err := s.paymentRepo.FindByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err != nil {
		s.logger.Warn("Payment reconciled but could not be reloaded",
			zap.String("checkout_request_id", callback.CheckoutRequestID),
			zap.Error(err))
	} else {
		journal.PaymentID = &payment.ID
		if journal.AppointmentID != nil && *journal.AppointmentID != payment.AppointmentID {
			s.logger.Warn("Callback appointment does not match payment",
				zap.Int64("callback_appointment_id", *journal.AppointmentID),
				zap.Int64("payment_appointment_id", payment.AppointmentID),
				zap.Int64("payment_id", payment.ID))
		}
		s.publish(ctx, payment, callback, received)
	}

	s.logger.Info("Payment reconciled",
		zap.String("checkout_request_id", callback.CheckoutRequestID),
		zap.String("outcome", string(outcome)),
		zap.Int("result_code", callback.ResultCode),
		zap.String("receipt", callback.ReceiptNumber))

	return s.finish(ctx, journal, outcome, nil)
}

// classifyNoMatch tells a repeated delivery apart from a callback for a
// payment this service never recorded.
func (s *ReconciliationService) classifyNoMatch(ctx context.Context, journal *model.PaymentCallbackEvent, callback *provider.CallbackResult) model.CallbackOutcome {
	existing, err := s.paymentRepo.FindByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err == nil && existing.PaymentStatus.IsTerminal() {
		journal.PaymentID = &existing.ID
		s.logger.Info("Duplicate gateway callback ignored",
			zap.String("checkout_request_id", callback.CheckoutRequestID),
			zap.Int64("payment_id", existing.ID),
			zap.String("payment_status", string(existing.PaymentStatus)))
		return model.CallbackOutcomeDuplicate
	}
	if err != nil && !errors.Is(err, domainErrors.ErrPaymentNotFound) {
		s.logger.Warn("Failed to look up unmatched callback", zap.Error(err))
	}

	s.logger.Warn("Gateway callback matched no pending payment",
		zap.String("checkout_request_id", callback.CheckoutRequestID),
		zap.Int("result_code", callback.ResultCode),
		zap.ByteString("payload", journal.Payload))
	return model.CallbackOutcomeUnmatched
}

func (s *ReconciliationService) finish(ctx context.Context, journal *model.PaymentCallbackEvent, outcome model.CallbackOutcome, cause error) (*dto.ReconcileResult, error) {
	journal.Outcome = outcome
	if cause != nil {
		msg := cause.Error()
		journal.Error = &msg
	}

	if s.eventRepo != nil {
		if err := s.eventRepo.Save(ctx, journal); err != nil {
			s.logger.Error("Failed to journal gateway callback",
				zap.String("checkout_request_id", journal.CheckoutRequestID),
				zap.String("outcome", string(outcome)),
				zap.ByteString("payload", journal.Payload),
				zap.Error(err))
		}
	}
	s.metrics.Callback(string(outcome))

	return &dto.ReconcileResult{
		Outcome:           outcome,
		CheckoutRequestID: journal.CheckoutRequestID,
		PaymentID:         journal.PaymentID,
	}, cause
}

func (s *ReconciliationService) publish(ctx context.Context, payment *model.Payment, callback *provider.CallbackResult, at time.Time) {
	if s.publisher == nil {
		return
	}

	evt := &event.PaymentStatusChanged{
		ID:                uuid.NewString(),
		Type:              event.TypePaymentStatusChanged,
		PaymentID:         payment.ID,
		AppointmentID:     payment.AppointmentID,
		UserID:            payment.UserID,
		Status:            string(payment.PaymentStatus),
		Amount:            payment.Amount,
		CheckoutRequestID: callback.CheckoutRequestID,
		ResultCode:        callback.ResultCode,
		ResultDesc:        callback.ResultDesc,
		OccurredAt:        at,
	}
	if payment.TransactionID != nil {
		evt.TransactionID = *payment.TransactionID
	}

	if err := s.publisher.PublishPaymentStatusChanged(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish payment event",
			zap.Int64("payment_id", payment.ID),
			zap.String("event_id", evt.ID),
			zap.Error(err))
		s.metrics.PublishFailed(evt.Type)
	}
}

// ListUnresolvedCallbacks returns journaled callbacks an operator should review.
func (s *ReconciliationService) ListUnresolvedCallbacks(ctx context.Context, limit int) ([]model.PaymentCallbackEvent, error) {
	events, err := s.eventRepo.ListNeedingAttention(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list callbacks: %w", err)
	}
	return events, nil
}

// CallbackHistory returns every journaled delivery for one checkout request,
// including duplicates.
func (s *ReconciliationService) CallbackHistory(ctx context.Context, checkoutRequestID string) ([]model.PaymentCallbackEvent, error) {
	if checkoutRequestID == "" {
		return nil, domainErrors.NewValidationError("checkout_request_id", "is required")
	}
	events, err := s.eventRepo.FindByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load callback history: %w", err)
	}
	return events, nil
}

// payloadJSON keeps a body that is not JSON as a JSON string.
func payloadJSON(raw []byte) datatypes.JSON {
	if len(raw) > 0 && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return datatypes.JSON(quoted)
}

// paymentDateZone is the timezone payment dates are recorded in (EAT).
var paymentDateZone = time.FixedZone("EAT", 3*60*60)

func dateOf(t time.Time) time.Time {
	y, m, d := t.In(paymentDateZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, paymentDateZone)
}
