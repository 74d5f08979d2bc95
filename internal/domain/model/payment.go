package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether reconciliation may no longer change s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Payment represents a payment record for an appointment.
//
// While pending, TransactionID holds the gateway checkout request id; once paid
// it holds the gateway receipt. CheckoutRequestID and MerchantRequestID keep the
// original request identifiers and are never overwritten.
type Payment struct {
	ID                int64           `gorm:"column:payment_id;primaryKey;autoIncrement" json:"payment_id"`
	AppointmentID     int64           `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	UserID            *int64          `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	PaymentStatus     PaymentStatus   `gorm:"column:payment_status;size:20;not null;default:pending" json:"payment_status"`
	TransactionID     *string         `gorm:"column:transaction_id;size:100" json:"transaction_id,omitempty"`
	CheckoutRequestID *string         `gorm:"column:checkout_request_id;size:100;index" json:"checkout_request_id,omitempty"`
	MerchantRequestID *string         `gorm:"column:merchant_request_id;size:100" json:"merchant_request_id,omitempty"`
	ResultCode        *int            `gorm:"column:result_code" json:"result_code,omitempty"`
	ResultDesc        *string         `gorm:"column:result_desc" json:"result_desc,omitempty"`
	PaymentDate       *time.Time      `gorm:"column:payment_date;type:date" json:"payment_date,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Appointment *Appointment `gorm:"foreignKey:AppointmentID;references:ID" json:"appointment,omitempty"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// PaidTransition carries the values written when a pending payment is confirmed.
type PaidTransition struct {
	ReceiptNumber string
	// Amount is the confirmed amount. Nil keeps the stored amount.
	Amount      *decimal.Decimal
	PaymentDate time.Time
	ResultCode  int
	ResultDesc  string
	UpdatedAt   time.Time
}

// FailedTransition carries the values written when a pending payment fails.
type FailedTransition struct {
	ResultCode int
	ResultDesc string
	UpdatedAt  time.Time
}

// PaymentUpdate is a partial administrative update. Nil fields are left unchanged.
type PaymentUpdate struct {
	UserID        *int64
	Amount        *decimal.Decimal
	PaymentStatus *PaymentStatus
	TransactionID *string
	PaymentDate   *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u PaymentUpdate) IsEmpty() bool {
	return u.UserID == nil && u.Amount == nil && u.PaymentStatus == nil &&
		u.TransactionID == nil && u.PaymentDate == nil
}
