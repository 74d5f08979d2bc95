package mpesa

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
)

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        *flexString `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback extracts the result of an STK push from the raw callback body.
// Metadata is read only for successful results, which must carry a receipt.
func ParseCallback(raw []byte) (*provider.CallbackResult, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domainErrors.NewMalformedCallbackError("invalid JSON", err)
	}
	if envelope.Body == nil || envelope.Body.StkCallback == nil {
		return nil, domainErrors.NewMalformedCallbackError("missing Body.stkCallback", nil)
	}

	cb := envelope.Body.StkCallback
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, domainErrors.NewMalformedCallbackError("missing CheckoutRequestID", nil)
	}
	if cb.ResultCode == nil {
		return nil, domainErrors.NewMalformedCallbackError("missing ResultCode", nil)
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(*cb.ResultCode)))
	if err != nil {
		return nil, domainErrors.NewMalformedCallbackError("invalid ResultCode", err)
	}

	result := &provider.CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        code,
		ResultDesc:        cb.ResultDesc,
	}
	if !result.Succeeded() {
		return result, nil
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			value := metadataValue(item.Value)
			switch item.Name {
			case "MpesaReceiptNumber":
				result.ReceiptNumber = value
			case "Amount":
				amount, err := decimal.NewFromString(value)
				if err != nil {
					return nil, domainErrors.NewMalformedCallbackError("invalid Amount", err)
				}
				result.Amount = &amount
			case "PhoneNumber":
				result.PhoneNumber = value
			case "TransactionDate":
				result.TransactionDate = value
			}
		}
	}

	if result.ReceiptNumber == "" {
		return nil, domainErrors.NewMalformedCallbackError("successful result without MpesaReceiptNumber", nil)
	}
	if result.Amount != nil && result.Amount.IsNegative() {
		return nil, domainErrors.NewMalformedCallbackError("negative Amount", nil)
	}

	return result, nil
}

// metadataValue renders strings unquoted and numbers verbatim.
func metadataValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(raw)
}
