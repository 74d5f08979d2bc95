package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/hospital-payment/internal/usecase"
)

const callbackBase = "https://hospital.example.com/"

func int64Ptr(v int64) *int64 { return &v }

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func acceptedPush(checkoutID string) *provider.PushResponse {
	return &provider.PushResponse{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutID,
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}
}

func newInitiationService(gateway *MockPushGateway, repo *fakePaymentRepository) *usecase.InitiationService {
	return usecase.NewInitiationService(gateway, repo, nil, usecase.InitiationConfig{
		CallbackBaseURL: callbackBase,
	}, nil, zap.NewNop())
}

func TestInitiationService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("records one pending payment keyed by checkout id", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		reg := prometheus.NewRegistry()
		paymentMetrics := metrics.NewPaymentMetrics(reg)
		service := usecase.NewInitiationService(gateway, repo, nil, usecase.InitiationConfig{
			CallbackBaseURL: callbackBase,
		}, paymentMetrics, zap.NewNop()).
			WithClock(func() time.Time { return time.Date(2025, 7, 11, 9, 30, 0, 0, time.UTC) })

		gateway.On("AccessToken", ctx).Return("tok", nil).Once()
		gateway.On("SubmitPush", ctx, "tok", mock.MatchedBy(func(req *provider.PushRequest) bool {
			return req.PhoneNumber == "254712345678" &&
				req.Amount.Equal(decimal.NewFromInt(500)) &&
				req.CallbackURL == "https://hospital.example.com/payments/payment-callback/7" &&
				req.Timestamp == "20250711123000" &&
				req.Password == "password"
		})).Return(acceptedPush("ws_001"), nil).Once()

		resp, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(7),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		require.NoError(t, err)
		assert.Equal(t, "ws_001", resp.CheckoutRequestID)
		assert.Equal(t, "29115-34620561-1", resp.MerchantRequestID)
		assert.Equal(t, "Success. Request accepted for processing", resp.CustomerMessage)
		assert.NotEmpty(t, resp.Message)

		payments := repo.all()
		require.Len(t, payments, 1)
		p := payments[0]
		assert.Equal(t, resp.PaymentID, p.ID)
		assert.Equal(t, int64(7), p.AppointmentID)
		assert.Nil(t, p.UserID)
		assert.Equal(t, "500.00", p.Amount.StringFixed(2))
		assert.Equal(t, model.PaymentStatusPending, p.PaymentStatus)
		require.NotNil(t, p.TransactionID)
		assert.Equal(t, "ws_001", *p.TransactionID)
		assert.Equal(t, "ws_001", *p.CheckoutRequestID)
		assert.Equal(t, "29115-34620561-1", *p.MerchantRequestID)
		assert.Nil(t, p.PaymentDate)

		assert.Equal(t, 1.0, testutil.ToFloat64(paymentMetrics.InitiationsTotal.WithLabelValues("accepted")))
		gateway.AssertExpectations(t)
	})

	t.Run("keeps the paying user", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		service := newInitiationService(gateway, repo)

		gateway.On("AccessToken", ctx).Return("tok", nil)
		gateway.On("SubmitPush", ctx, "tok", mock.Anything).Return(acceptedPush("ws_010"), nil)

		_, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(3),
			UserID:        int64Ptr(12),
			PhoneNumber:   "+254 712 345 678",
			Amount:        decimalPtr("1500.00"),
		})
		require.NoError(t, err)

		payments := repo.all()
		require.Len(t, payments, 1)
		assert.Equal(t, int64(12), *payments[0].UserID)
		assert.Equal(t, "1500.00", payments[0].Amount.StringFixed(2))
	})

	invalid := []struct {
		name  string
		req   *dto.InitiatePaymentRequest
		field string
	}{
		{"nil request", nil, ""},
		{"missing appointment_id", &dto.InitiatePaymentRequest{PhoneNumber: "0712345678", Amount: decimalPtr("500")}, "appointment_id"},
		{"missing phoneNumber", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), Amount: decimalPtr("500")}, "phoneNumber"},
		{"missing amount", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), PhoneNumber: "0712345678"}, "amount"},
		{"zero amount", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), PhoneNumber: "0712345678", Amount: decimalPtr("0")}, "amount"},
		{"negative amount", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), PhoneNumber: "0712345678", Amount: decimalPtr("-5")}, "amount"},
		{"fractional amount", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), PhoneNumber: "0712345678", Amount: decimalPtr("10.50")}, "amount"},
		{"invalid phone", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), PhoneNumber: "12345", Amount: decimalPtr("500")}, "phoneNumber"},
		{"non-positive user", &dto.InitiatePaymentRequest{AppointmentID: int64Ptr(7), UserID: int64Ptr(0), PhoneNumber: "0712345678", Amount: decimalPtr("500")}, "user_id"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			gateway := new(MockPushGateway)
			repo := newFakePaymentRepository()
			service := newInitiationService(gateway, repo)

			_, err := service.Initiate(ctx, tt.req)

			var validationErr *domainErrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Empty(t, repo.all())
			gateway.AssertNotCalled(t, "AccessToken", mock.Anything)
			gateway.AssertNotCalled(t, "SubmitPush", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("auth failure stores nothing", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		service := newInitiationService(gateway, repo)

		authErr := &domainErrors.GatewayAuthError{StatusCode: 400, Body: "Invalid Authentication passed"}
		gateway.On("AccessToken", ctx).Return("", authErr)

		_, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(7),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		var initErr *domainErrors.PaymentInitiationError
		require.ErrorAs(t, err, &initErr)
		assert.ErrorIs(t, err, authErr)
		assert.Empty(t, repo.all())
		gateway.AssertNotCalled(t, "SubmitPush", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("submission failure stores nothing", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		service := newInitiationService(gateway, repo)

		subErr := &domainErrors.GatewaySubmissionError{StatusCode: 500, Body: "Internal Server Error"}
		gateway.On("AccessToken", ctx).Return("tok", nil)
		gateway.On("SubmitPush", ctx, "tok", mock.Anything).Return(nil, subErr).Once()

		_, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(7),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		var submission *domainErrors.GatewaySubmissionError
		require.ErrorAs(t, err, &submission)
		var initErr *domainErrors.PaymentInitiationError
		assert.ErrorAs(t, err, &initErr)
		assert.Empty(t, repo.all())
		// no retry
		gateway.AssertNumberOfCalls(t, "SubmitPush", 1)
	})

	t.Run("store failure after accepted push", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		repo.createErr = errors.New("connection reset")
		service := newInitiationService(gateway, repo)

		gateway.On("AccessToken", ctx).Return("tok", nil)
		gateway.On("SubmitPush", ctx, "tok", mock.Anything).Return(acceptedPush("ws_020"), nil)

		_, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(7),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		require.Error(t, err)
		var initErr *domainErrors.PaymentInitiationError
		assert.False(t, errors.As(err, &initErr))
		assert.False(t, domainErrors.IsValidation(err))
	})

	t.Run("caller gone after accepted push still records pending payment", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		service := newInitiationService(gateway, repo)

		reqCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		gateway.On("AccessToken", mock.Anything).Return("tok", nil)
		gateway.On("SubmitPush", mock.Anything, "tok", mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(acceptedPush("ws_030"), nil)

		resp, err := service.Initiate(reqCtx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(7),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		require.NoError(t, err)
		assert.Equal(t, "ws_030", resp.CheckoutRequestID)
		require.Error(t, reqCtx.Err())

		payments := repo.all()
		require.Len(t, payments, 1)
		assert.Equal(t, model.PaymentStatusPending, payments[0].PaymentStatus)
		assert.Equal(t, "ws_030", *payments[0].TransactionID)
	})

	t.Run("unknown appointment when verification is on", func(t *testing.T) {
		gateway := new(MockPushGateway)
		repo := newFakePaymentRepository()
		service := usecase.NewInitiationService(gateway, repo, stubAppointmentRepository{exists: false}, usecase.InitiationConfig{
			CallbackBaseURL:    callbackBase,
			VerifyAppointments: true,
		}, nil, zap.NewNop())

		_, err := service.Initiate(ctx, &dto.InitiatePaymentRequest{
			AppointmentID: int64Ptr(99),
			PhoneNumber:   "0712345678",
			Amount:        decimalPtr("500"),
		})

		assert.ErrorIs(t, err, domainErrors.ErrAppointmentNotFound)
		assert.Empty(t, repo.all())
		gateway.AssertNotCalled(t, "AccessToken", mock.Anything)
	})
}

func TestNormalizePhoneNumber(t *testing.T) {
	valid := map[string]string{
		"0712345678":       "254712345678",
		"0112345678":       "254112345678",
		"712345678":        "254712345678",
		"+254712345678":    "254712345678",
		"254712345678":     "254712345678",
		"0712 345 678":     "254712345678",
		"+254-712-345-678": "254712345678",
	}
	for in, want := range valid {
		got, err := usecase.NormalizePhoneNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "12345", "0812345678", "25471234567", "07123abc78", "+1 415 555 0100"} {
		_, err := usecase.NormalizePhoneNumber(in)
		assert.True(t, domainErrors.IsValidation(err), in)
	}
}
