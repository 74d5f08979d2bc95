package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PushGateway submits push payment prompts to the payer's phone and parses the
// asynchronous result notifications.
type PushGateway interface {
	// AccessToken returns a bearer token for the gateway API.
	AccessToken(ctx context.Context) (string, error)

	// BuildPassword derives the request password for timestamp and returns it
	// together with the timestamp in the gateway's format.
	BuildPassword(timestamp time.Time) (password string, formatted string)

	// SubmitPush sends a signed push request.
	SubmitPush(ctx context.Context, accessToken string, req *PushRequest) (*PushResponse, error)

	// ParseCallback extracts the result from a raw callback body.
	ParseCallback(raw []byte) (*CallbackResult, error)
}

// PushRequest is a single payment prompt.
type PushRequest struct {
	Password         string
	Timestamp        string
	Amount           decimal.Decimal
	PhoneNumber      string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

// PushResponse is the gateway's acknowledgement of an accepted push request.
type PushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// CallbackResult is the outcome reported by the gateway for one push request.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// Set only for successful results.
	ReceiptNumber   string
	Amount          *decimal.Decimal
	PhoneNumber     string
	TransactionDate string
}

// Succeeded reports whether the payer completed the payment.
func (r *CallbackResult) Succeeded() bool {
	return r.ResultCode == 0
}
