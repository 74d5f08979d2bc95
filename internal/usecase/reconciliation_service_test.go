package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/event"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/hospital-payment/internal/usecase"
)

var callbackTime = time.Date(2025, 7, 11, 12, 30, 5, 0, time.FixedZone("EAT", 3*60*60))

func successCallback(checkoutID, receipt string, amount int) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-1",
		"CheckoutRequestID":%q,
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":%d},
			{"Name":"MpesaReceiptNumber","Value":%q},
			{"Name":"TransactionDate","Value":20250711123005},
			{"Name":"PhoneNumber","Value":254712345678}
		]}
	}}}`, checkoutID, amount, receipt))
}

func failureCallback(checkoutID string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-1",
		"CheckoutRequestID":%q,
		"ResultCode":%d,
		"ResultDesc":%q
	}}}`, checkoutID, code, desc))
}

type reconcileFixture struct {
	service   *usecase.ReconciliationService
	payments  *fakePaymentRepository
	events    *fakeCallbackEventRepository
	publisher *recordingPublisher
	metrics   *metrics.PaymentMetrics
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		payments:  newFakePaymentRepository(),
		events:    &fakeCallbackEventRepository{},
		publisher: &recordingPublisher{},
		metrics:   metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	}
	f.service = usecase.NewReconciliationService(new(MockPushGateway), f.payments, f.events, f.publisher, f.metrics, zap.NewNop()).
		WithClock(func() time.Time { return callbackTime })
	return f
}

// seedPending stores a payment the way initiation does.
func (f *reconcileFixture) seedPending(t *testing.T, appointmentID int64, checkoutID, amount string) *model.Payment {
	t.Helper()

	tx := checkoutID
	checkout := checkoutID
	payment := &model.Payment{
		AppointmentID:     appointmentID,
		Amount:            decimal.RequireFromString(amount),
		PaymentStatus:     model.PaymentStatusPending,
		TransactionID:     &tx,
		CheckoutRequestID: &checkout,
	}
	require.NoError(t, f.payments.Create(context.Background(), payment))
	return payment
}

func TestReconciliationService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("success marks the payment paid", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_001", "500")

		result, err := f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))

		require.NoError(t, err)
		assert.Equal(t, model.CallbackOutcomePaid, result.Outcome)
		assert.Equal(t, "ws_001", result.CheckoutRequestID)
		require.NotNil(t, result.PaymentID)
		assert.Equal(t, seeded.ID, *result.PaymentID)

		stored, err := f.payments.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, "RCPT1", *stored.TransactionID)
		assert.Equal(t, "ws_001", *stored.CheckoutRequestID)
		assert.Equal(t, "500", stored.Amount.String())
		require.NotNil(t, stored.PaymentDate)
		assert.Equal(t, "2025-07-11", stored.PaymentDate.Format("2006-01-02"))
		assert.Equal(t, 0, *stored.ResultCode)

		published := f.publisher.published()
		require.Len(t, published, 1)
		assert.Equal(t, event.TypePaymentStatusChanged, published[0].Type)
		assert.Equal(t, seeded.ID, published[0].PaymentID)
		assert.Equal(t, int64(7), published[0].AppointmentID)
		assert.Equal(t, "paid", published[0].Status)
		assert.Equal(t, "RCPT1", published[0].TransactionID)
		assert.NotEmpty(t, published[0].ID)

		assert.Equal(t, []model.CallbackOutcome{model.CallbackOutcomePaid}, f.events.outcomes())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CallbacksTotal.WithLabelValues("paid")))
	})

	t.Run("confirmed amount replaces the stored amount", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_002", "500.00")

		_, err := f.service.Reconcile(ctx, "7", successCallback("ws_002", "RCPT2", 499))
		require.NoError(t, err)

		stored, err := f.payments.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "499.00", stored.Amount.StringFixed(2))
	})

	t.Run("failure keeps the checkout id as transaction id", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_001", "500")

		result, err := f.service.Reconcile(ctx, "7", failureCallback("ws_001", 1032, "Request cancelled by user"))

		require.NoError(t, err)
		assert.Equal(t, model.CallbackOutcomeFailed, result.Outcome)

		stored, err := f.payments.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, stored.PaymentStatus)
		assert.Equal(t, "ws_001", *stored.TransactionID)
		assert.Equal(t, 1032, *stored.ResultCode)
		assert.Equal(t, "Request cancelled by user", *stored.ResultDesc)
		assert.Nil(t, stored.PaymentDate)
		assert.Equal(t, "500", stored.Amount.String())

		published := f.publisher.published()
		require.Len(t, published, 1)
		assert.Equal(t, "failed", published[0].Status)
		assert.Equal(t, 1032, published[0].ResultCode)
	})

	t.Run("repeated callback is a duplicate", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_001", "500")
		body := successCallback("ws_001", "RCPT1", 500)

		_, err := f.service.Reconcile(ctx, "7", body)
		require.NoError(t, err)
		result, err := f.service.Reconcile(ctx, "7", body)
		require.NoError(t, err)

		assert.Equal(t, model.CallbackOutcomeDuplicate, result.Outcome)
		require.NotNil(t, result.PaymentID)
		assert.Equal(t, seeded.ID, *result.PaymentID)
		assert.Len(t, f.publisher.published(), 1)
		assert.Equal(t, []model.CallbackOutcome{model.CallbackOutcomePaid, model.CallbackOutcomeDuplicate}, f.events.outcomes())

		history, err := f.service.CallbackHistory(ctx, "ws_001")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("failure after paid does not regress", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_001", "500")

		_, err := f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))
		require.NoError(t, err)
		result, err := f.service.Reconcile(ctx, "7", failureCallback("ws_001", 1, "The balance is insufficient"))
		require.NoError(t, err)

		assert.Equal(t, model.CallbackOutcomeDuplicate, result.Outcome)
		stored, err := f.payments.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, "RCPT1", *stored.TransactionID)
	})

	t.Run("unknown checkout id is unmatched", func(t *testing.T) {
		f := newReconcileFixture()
		f.seedPending(t, 7, "ws_001", "500")

		result, err := f.service.Reconcile(ctx, "7", successCallback("ws_unknown", "RCPT9", 500))

		require.NoError(t, err)
		assert.Equal(t, model.CallbackOutcomeUnmatched, result.Outcome)
		assert.Nil(t, result.PaymentID)
		assert.Empty(t, f.publisher.published())
		assert.Equal(t, model.PaymentStatusPending, f.payments.all()[0].PaymentStatus)

		unresolved, err := f.service.ListUnresolvedCallbacks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, "ws_unknown", unresolved[0].CheckoutRequestID)
		require.NotNil(t, unresolved[0].AppointmentID)
		assert.Equal(t, int64(7), *unresolved[0].AppointmentID)
	})

	t.Run("malformed body is journaled", func(t *testing.T) {
		f := newReconcileFixture()
		f.seedPending(t, 7, "ws_001", "500")

		result, err := f.service.Reconcile(ctx, "7", []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`))

		var malformed *domainErrors.MalformedCallbackError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, model.CallbackOutcomeMalformed, result.Outcome)
		assert.Equal(t, model.PaymentStatusPending, f.payments.all()[0].PaymentStatus)
		assert.Empty(t, f.publisher.published())

		require.Len(t, f.events.events, 1)
		assert.NotNil(t, f.events.events[0].Error)
		assert.JSONEq(t, `{"Body":{"stkCallback":{"ResultCode":0}}}`, string(f.events.events[0].Payload))
	})

	t.Run("non-json body is stored as a string", func(t *testing.T) {
		f := newReconcileFixture()

		result, err := f.service.Reconcile(ctx, "not-a-number", []byte("<html>oops</html>"))

		require.Error(t, err)
		assert.Equal(t, model.CallbackOutcomeMalformed, result.Outcome)
		require.Len(t, f.events.events, 1)
		journal := f.events.events[0]
		assert.Nil(t, journal.AppointmentID)

		var stored string
		require.NoError(t, json.Unmarshal(journal.Payload, &stored))
		assert.Equal(t, "<html>oops</html>", stored)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		f := newReconcileFixture()
		f.seedPending(t, 7, "ws_001", "500")
		f.payments.markErr = errors.New("connection refused")

		result, err := f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))

		require.Error(t, err)
		assert.Equal(t, model.CallbackOutcomeError, result.Outcome)
		assert.Equal(t, model.PaymentStatusPending, f.payments.all()[0].PaymentStatus)
		assert.Equal(t, []model.CallbackOutcome{model.CallbackOutcomeError}, f.events.outcomes())
	})

	t.Run("publish failure does not undo reconciliation", func(t *testing.T) {
		f := newReconcileFixture()
		seeded := f.seedPending(t, 7, "ws_001", "500")
		f.publisher.err = errors.New("broker down")

		result, err := f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))

		require.NoError(t, err)
		assert.Equal(t, model.CallbackOutcomePaid, result.Outcome)
		stored, err := f.payments.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventPublishFailures.WithLabelValues(event.TypePaymentStatusChanged)))
	})

	t.Run("concurrent deliveries apply once", func(t *testing.T) {
		f := newReconcileFixture()
		f.seedPending(t, 7, "ws_001", "500")
		body := successCallback("ws_001", "RCPT1", 500)

		const deliveries = 8
		var wg sync.WaitGroup
		outcomes := make(chan model.CallbackOutcome, deliveries)
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := f.service.Reconcile(ctx, "7", body)
				if err == nil {
					outcomes <- result.Outcome
				}
			}()
		}
		wg.Wait()
		close(outcomes)

		counts := map[model.CallbackOutcome]int{}
		for o := range outcomes {
			counts[o]++
		}
		assert.Equal(t, 1, counts[model.CallbackOutcomePaid])
		assert.Equal(t, deliveries-1, counts[model.CallbackOutcomeDuplicate])
		assert.Len(t, f.publisher.published(), 1)
		assert.Equal(t, "RCPT1", *f.payments.all()[0].TransactionID)
	})
}

func TestReconciliationService_ListUnresolvedCallbacks(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture()
	f.seedPending(t, 7, "ws_001", "500")

	_, _ = f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))
	_, _ = f.service.Reconcile(ctx, "7", successCallback("ws_001", "RCPT1", 500))
	_, _ = f.service.Reconcile(ctx, "8", []byte(`garbage`))
	_, _ = f.service.Reconcile(ctx, "9", failureCallback("ws_404", 1037, "DS timeout user cannot be reached"))

	unresolved, err := f.service.ListUnresolvedCallbacks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, model.CallbackOutcomeUnmatched, unresolved[0].Outcome)
	assert.Equal(t, model.CallbackOutcomeMalformed, unresolved[1].Outcome)

	limited, err := f.service.ListUnresolvedCallbacks(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
