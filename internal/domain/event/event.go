package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TypePaymentStatusChanged is published after every terminal transition.
const TypePaymentStatusChanged = "payment.status_changed"

// PaymentStatusChanged describes a reconciled payment.
type PaymentStatusChanged struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	PaymentID         int64           `json:"payment_id"`
	AppointmentID     int64           `json:"appointment_id"`
	UserID            *int64          `json:"user_id,omitempty"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	ResultCode        int             `json:"result_code"`
	ResultDesc        string          `json:"result_desc,omitempty"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

// Publisher delivers payment events to other services.
type Publisher interface {
	PublishPaymentStatusChanged(ctx context.Context, evt *PaymentStatusChanged) error
	Close() error
}
