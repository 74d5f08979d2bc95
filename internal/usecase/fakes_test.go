package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/event"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/provider/mpesa"
)

// MockPushGateway mocks the network calls; password building and callback
// parsing use the real Daraja rules.
type MockPushGateway struct {
	mock.Mock
}

func (m *MockPushGateway) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPushGateway) BuildPassword(ts time.Time) (string, string) {
	return "password", mpesa.FormatTimestamp(ts)
}

func (m *MockPushGateway) SubmitPush(ctx context.Context, accessToken string, req *provider.PushRequest) (*provider.PushResponse, error) {
	args := m.Called(ctx, accessToken, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PushResponse), args.Error(1)
}

func (m *MockPushGateway) ParseCallback(raw []byte) (*provider.CallbackResult, error) {
	return mpesa.ParseCallback(raw)
}

// fakePaymentRepository keeps payments in memory and applies transitions
// with the same pending-only predicate as the SQL implementation.
type fakePaymentRepository struct {
	mu        sync.Mutex
	payments  map[int64]*model.Payment
	nextID    int64
	createErr error
	markErr   error
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{payments: map[int64]*model.Payment{}}
}

func (r *fakePaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	payment.ID = r.nextID
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = model.PaymentStatusPending
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	stored := *payment
	r.payments[payment.ID] = &stored
	return nil
}

func (r *fakePaymentRepository) all() []model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakePaymentRepository) FindAll(_ context.Context) ([]model.Payment, error) {
	return r.all(), nil
}

func (r *fakePaymentRepository) FindByID(_ context.Context, id int64) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepository) FindFullByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r *fakePaymentRepository) FindByAppointmentID(_ context.Context, appointmentID int64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range r.all() {
		if p.AppointmentID == appointmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepository) findBy(match func(*model.Payment) bool) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (r *fakePaymentRepository) FindByCheckoutRequestID(_ context.Context, checkoutRequestID string) (*model.Payment, error) {
	return r.findBy(func(p *model.Payment) bool {
		return p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutRequestID
	})
}

func (r *fakePaymentRepository) Update(_ context.Context, id int64, update model.PaymentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return domainErrors.ErrPaymentNotFound
	}
	if update.UserID != nil {
		p.UserID = update.UserID
	}
	if update.Amount != nil {
		p.Amount = update.Amount.Round(2)
	}
	if update.PaymentStatus != nil {
		p.PaymentStatus = *update.PaymentStatus
	}
	if update.TransactionID != nil {
		p.TransactionID = update.TransactionID
	}
	if update.PaymentDate != nil {
		p.PaymentDate = update.PaymentDate
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePaymentRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[id]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	delete(r.payments, id)
	return nil
}

func (r *fakePaymentRepository) transition(checkoutRequestID string, apply func(*model.Payment)) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.markErr != nil {
		return 0, r.markErr
	}
	var rows int64
	for _, p := range r.payments {
		if p.TransactionID != nil && *p.TransactionID == checkoutRequestID && p.PaymentStatus == model.PaymentStatusPending {
			if p.CheckoutRequestID == nil {
				id := checkoutRequestID
				p.CheckoutRequestID = &id
			}
			apply(p)
			rows++
		}
	}
	return rows, nil
}

func (r *fakePaymentRepository) MarkPaid(_ context.Context, checkoutRequestID string, paid model.PaidTransition) (int64, error) {
	return r.transition(checkoutRequestID, func(p *model.Payment) {
		receipt := paid.ReceiptNumber
		date := paid.PaymentDate
		code := paid.ResultCode
		desc := paid.ResultDesc
		p.PaymentStatus = model.PaymentStatusPaid
		p.TransactionID = &receipt
		if paid.Amount != nil {
			p.Amount = paid.Amount.Round(2)
		}
		p.PaymentDate = &date
		p.ResultCode = &code
		p.ResultDesc = &desc
		p.UpdatedAt = paid.UpdatedAt
	})
}

func (r *fakePaymentRepository) MarkFailed(_ context.Context, checkoutRequestID string, failed model.FailedTransition) (int64, error) {
	return r.transition(checkoutRequestID, func(p *model.Payment) {
		code := failed.ResultCode
		desc := failed.ResultDesc
		p.PaymentStatus = model.PaymentStatusFailed
		p.ResultCode = &code
		p.ResultDesc = &desc
		p.UpdatedAt = failed.UpdatedAt
	})
}

type fakeCallbackEventRepository struct {
	mu     sync.Mutex
	events []model.PaymentCallbackEvent
}

func (r *fakeCallbackEventRepository) Save(_ context.Context, evt *model.PaymentCallbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *evt)
	return nil
}

func (r *fakeCallbackEventRepository) FindByCheckoutRequestID(_ context.Context, checkoutRequestID string) ([]model.PaymentCallbackEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.PaymentCallbackEvent
	for _, e := range r.events {
		if e.CheckoutRequestID == checkoutRequestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeCallbackEventRepository) ListNeedingAttention(_ context.Context, limit int) ([]model.PaymentCallbackEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.PaymentCallbackEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].Outcome.NeedsAttention() {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

func (r *fakeCallbackEventRepository) outcomes() []model.CallbackOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.CallbackOutcome, len(r.events))
	for i, e := range r.events {
		out[i] = e.Outcome
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.PaymentStatusChanged
	err    error
}

func (p *recordingPublisher) PublishPaymentStatusChanged(_ context.Context, evt *event.PaymentStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*event.PaymentStatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*event.PaymentStatusChanged(nil), p.events...)
}

type stubAppointmentRepository struct {
	exists bool
	err    error
}

func (r stubAppointmentRepository) Exists(context.Context, int64) (bool, error) {
	return r.exists, r.err
}
