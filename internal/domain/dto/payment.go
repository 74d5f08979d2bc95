package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
)

// InitiatePaymentRequest is the body of POST /payments/initiate.
// Pointer fields distinguish missing values from zero values.
type InitiatePaymentRequest struct {
	AppointmentID *int64           `json:"appointment_id"`
	UserID        *int64           `json:"user_id,omitempty"`
	PhoneNumber   string           `json:"phoneNumber"`
	Amount        *decimal.Decimal `json:"amount"`
}

// InitiatePaymentResponse relays the gateway acknowledgement. It means the
// prompt was sent, not that the payment succeeded.
type InitiatePaymentResponse struct {
	Message           string `json:"message"`
	PaymentID         int64  `json:"payment_id"`
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	CustomerMessage   string `json:"CustomerMessage"`
}

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	AppointmentID int64           `json:"appointment_id" validate:"required,gt=0"`
	UserID        *int64          `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus string          `json:"payment_status,omitempty" validate:"omitempty,oneof=pending paid failed"`
	TransactionID *string         `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	PaymentDate   *Date           `json:"payment_date,omitempty"`
}

// UpdatePaymentRequest is the body of PUT /payments/:id. Absent fields are kept.
type UpdatePaymentRequest struct {
	UserID        *int64           `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PaymentStatus *string          `json:"payment_status,omitempty" validate:"omitempty,oneof=pending paid failed"`
	TransactionID *string          `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	PaymentDate   *Date            `json:"payment_date,omitempty"`
}

// MessageResponse is the generic {"message": "..."} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// CallbackAck is returned to the gateway for every callback delivery.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// ReconcileResult reports what a callback did.
type ReconcileResult struct {
	Outcome           model.CallbackOutcome
	CheckoutRequestID string
	PaymentID         *int64
}

// Date is a calendar date accepted as "2006-01-02" or RFC 3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// Ptr returns the date as a *time.Time, or nil for a nil receiver.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
