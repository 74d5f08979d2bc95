package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/metrics"
)

const initiatedMessage = "Payment request sent. Complete the prompt on your phone."

// recordTimeout bounds the pending insert once the payer has been prompted.
// It is detached from the request so a disconnecting caller cannot drop the row.
const recordTimeout = 10 * time.Second

// InitiationConfig controls how push requests are built.
type InitiationConfig struct {
	// CallbackBaseURL is the public base URL the gateway calls back.
	CallbackBaseURL string
	// VerifyAppointments rejects unknown appointments before contacting the gateway.
	VerifyAppointments bool
}

// InitiationService starts push payments and records them as pending.
type InitiationService struct {
	gateway         provider.PushGateway
	paymentRepo     repository.PaymentRepository
	appointmentRepo repository.AppointmentRepository
	config          InitiationConfig
	metrics         *metrics.PaymentMetrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewInitiationService creates a new initiation service. appointmentRepo may
// be nil when VerifyAppointments is off.
func NewInitiationService(
	gateway provider.PushGateway,
	paymentRepo repository.PaymentRepository,
	appointmentRepo repository.AppointmentRepository,
	config InitiationConfig,
	paymentMetrics *metrics.PaymentMetrics,
	logger *zap.Logger,
) *InitiationService {
	return &InitiationService{
		gateway:         gateway,
		paymentRepo:     paymentRepo,
		appointmentRepo: appointmentRepo,
		config:          config,
		metrics:         paymentMetrics,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock replaces the time source.
func (s *InitiationService) WithClock(now func() time.Time) *InitiationService {
	s.now = now
	return s
}

// Initiate validates the request, sends the push prompt and stores one pending
// payment keyed by the gateway's checkout request id. Nothing is stored when
// validation or the gateway call fails.
func (s *InitiationService) Initiate(ctx context.Context, req *dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error) {
	appointmentID, phone, err := s.validate(req)
	if err != nil {
		s.metrics.Initiation("invalid")
		return nil, err
	}

	if s.config.VerifyAppointments && s.appointmentRepo != nil {
		exists, err := s.appointmentRepo.Exists(ctx, appointmentID)
		if err != nil {
			s.metrics.Initiation("store_error")
			return nil, fmt.Errorf("failed to verify appointment: %w", err)
		}
		if !exists {
			s.metrics.Initiation("invalid")
			return nil, domainErrors.ErrAppointmentNotFound
		}
	}

	amount := req.Amount.Round(2)
	password, timestamp := s.gateway.BuildPassword(s.now())

	start := time.Now()
	token, err := s.gateway.AccessToken(ctx)
	s.metrics.ObserveGateway("token", start, err)
	if err != nil {
		s.logger.Error("Failed to obtain gateway access token",
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err))
		s.metrics.Initiation("gateway_error")
		return nil, domainErrors.NewPaymentInitiationError(err)
	}

	push := &provider.PushRequest{
		Password:         password,
		Timestamp:        timestamp,
		Amount:           amount,
		PhoneNumber:      phone,
		CallbackURL:      s.callbackURL(appointmentID),
		AccountReference: fmt.Sprintf("Appointment %d", appointmentID),
		TransactionDesc:  fmt.Sprintf("Payment for appointment %d", appointmentID),
	}

	start = time.Now()
	resp, err := s.gateway.SubmitPush(ctx, token, push)
	s.metrics.ObserveGateway("stk_push", start, err)
	if err != nil {
		s.logger.Error("Push request failed",
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err))
		s.metrics.Initiation("gateway_error")
		return nil, domainErrors.NewPaymentInitiationError(err)
	}

	checkoutID := resp.CheckoutRequestID
	merchantID := resp.MerchantRequestID
	payment := &model.Payment{
		AppointmentID:     appointmentID,
		UserID:            req.UserID,
		Amount:            amount,
		PaymentStatus:     model.PaymentStatusPending,
		TransactionID:     &checkoutID,
		CheckoutRequestID: &checkoutID,
		MerchantRequestID: &merchantID,
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.paymentRepo.Create(recordCtx, payment); err != nil {
		// The payer already has a prompt; the callback will find no row.
		s.logger.Error("Push request accepted but pending payment was not recorded",
			zap.Int64("appointment_id", appointmentID),
			zap.String("checkout_request_id", checkoutID),
			zap.String("merchant_request_id", merchantID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		s.metrics.Initiation("store_error")
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	s.logger.Info("Payment initiated",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("appointment_id", appointmentID),
		zap.String("checkout_request_id", checkoutID))
	s.metrics.Initiation("accepted")

	return &dto.InitiatePaymentResponse{
		Message:           initiatedMessage,
		PaymentID:         payment.ID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

func (s *InitiationService) validate(req *dto.InitiatePaymentRequest) (int64, string, error) {
	if req == nil {
		return 0, "", domainErrors.NewValidationError("", "request body is required")
	}
	if req.AppointmentID == nil {
		return 0, "", domainErrors.NewValidationError("appointment_id", "is required")
	}
	if *req.AppointmentID <= 0 {
		return 0, "", domainErrors.NewValidationError("appointment_id", "must be positive")
	}
	if req.UserID != nil && *req.UserID <= 0 {
		return 0, "", domainErrors.NewValidationError("user_id", "must be positive")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return 0, "", domainErrors.NewValidationError("phoneNumber", "is required")
	}
	if req.Amount == nil {
		return 0, "", domainErrors.NewValidationError("amount", "is required")
	}
	if err := validateAmount(*req.Amount, false); err != nil {
		return 0, "", err
	}
	if !req.Amount.IsInteger() {
		return 0, "", domainErrors.NewValidationError("amount", "must be a whole number")
	}

	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		return 0, "", err
	}

	return *req.AppointmentID, phone, nil
}

func (s *InitiationService) callbackURL(appointmentID int64) string {
	return strings.TrimRight(s.config.CallbackBaseURL, "/") + "/payments/payment-callback/" + strconv.FormatInt(appointmentID, 10)
}
