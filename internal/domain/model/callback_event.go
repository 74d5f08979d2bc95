package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CallbackOutcome records what reconciliation did with a gateway callback.
type CallbackOutcome string

const (
	CallbackOutcomePaid      CallbackOutcome = "paid"
	CallbackOutcomeFailed    CallbackOutcome = "failed"
	CallbackOutcomeUnmatched CallbackOutcome = "unmatched"
	CallbackOutcomeDuplicate CallbackOutcome = "duplicate"
	CallbackOutcomeMalformed CallbackOutcome = "malformed"
	CallbackOutcomeError     CallbackOutcome = "error"
)

// Scan implements sql.Scanner interface
func (o *CallbackOutcome) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*o = CallbackOutcome(v)
	case []byte:
		*o = CallbackOutcome(v)
	default:
		*o = CallbackOutcomeError
	}
	return nil
}

// Value implements driver.Valuer interface
func (o CallbackOutcome) Value() (driver.Value, error) {
	return string(o), nil
}

// NeedsAttention reports whether an operator should look at the callback.
func (o CallbackOutcome) NeedsAttention() bool {
	return o == CallbackOutcomeUnmatched || o == CallbackOutcomeMalformed || o == CallbackOutcomeError
}

// PaymentCallbackEvent is the journal entry for one gateway callback delivery.
// The body is kept verbatim for manual recovery.
type PaymentCallbackEvent struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AppointmentID     *int64          `gorm:"column:appointment_id;index" json:"appointment_id,omitempty"`
	CheckoutRequestID string          `gorm:"column:checkout_request_id;size:100;index" json:"checkout_request_id,omitempty"`
	MerchantRequestID string          `gorm:"column:merchant_request_id;size:100" json:"merchant_request_id,omitempty"`
	ResultCode        *int            `gorm:"column:result_code" json:"result_code,omitempty"`
	ResultDesc        string          `gorm:"column:result_desc" json:"result_desc,omitempty"`
	Outcome           CallbackOutcome `gorm:"column:outcome;size:20;not null;index" json:"outcome"`
	PaymentID         *int64          `gorm:"column:payment_id" json:"payment_id,omitempty"`
	Error             *string         `gorm:"column:error" json:"error,omitempty"`
	Payload           datatypes.JSON  `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	ReceivedAt        time.Time       `gorm:"column:received_at;not null" json:"received_at"`
}

// TableName specifies the table name for GORM
func (PaymentCallbackEvent) TableName() string {
	return "payment_callback_events"
}
