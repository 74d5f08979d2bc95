package repository

import (
	"context"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
)

// CallbackEventRepository journals gateway callbacks.
type CallbackEventRepository interface {
	Save(ctx context.Context, event *model.PaymentCallbackEvent) error
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) ([]model.PaymentCallbackEvent, error)
	// ListNeedingAttention returns unmatched, malformed and errored callbacks, newest first.
	ListNeedingAttention(ctx context.Context, limit int) ([]model.PaymentCallbackEvent, error)
}
