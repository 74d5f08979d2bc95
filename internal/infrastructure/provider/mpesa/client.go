// Package mpesa implements the Daraja STK push gateway.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/provider"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	timestampFmt = "20060102150405"

	// maxBodyLog bounds how much of an upstream body ends up in errors and logs.
	maxBodyLog = 2048
)

// EAT is the timezone the gateway expects request timestamps in.
var EAT = time.FixedZone("EAT", 3*60*60)

// Config holds the Daraja credentials and endpoints.
type Config struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	Shortcode          string
	Passkey            string
	TransactionType    string
	Timeout            time.Duration
	TokenRefreshMargin time.Duration
}

// Client talks to the Daraja API.
type Client struct {
	config     Config
	httpClient *http.Client
	tokens     TokenStore
	logger     *zap.Logger
	now        func() time.Time

	fetch singleflight.Group
}

var _ provider.PushGateway = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore shares access tokens between instances.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.tokens = store }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Daraja client.
func NewClient(config Config, logger *zap.Logger, opts ...Option) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.TransactionType == "" {
		config.TransactionType = "CustomerPayBillOnline"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		tokens:     NewMemoryTokenStore(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   flexString `json:"expires_in"`
}

// AccessToken returns a cached token or performs the client-credentials exchange.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok, err := c.tokens.Get(ctx); err != nil {
		c.logger.Warn("MpesaClient: Token cache read failed", zap.Error(err))
	} else if ok {
		return token, nil
	}

	// The exchange is shared by every waiting caller, so it must not inherit
	// the first caller's cancellation.
	ch := c.fetch.DoChan("token", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
		defer cancel()
		return c.requestToken(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &domainErrors.GatewayAuthError{Cause: ctx.Err()}
	}
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+tokenPath, nil)
	if err != nil {
		return "", &domainErrors.GatewayAuthError{Cause: fmt.Errorf("failed to create request: %w", err)}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	httpReq.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("MpesaClient: Token request failed", zap.Error(err))
		return "", &domainErrors.GatewayAuthError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domainErrors.GatewayAuthError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("MpesaClient: Token request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", truncate(respBody)))
		return "", &domainErrors.GatewayAuthError{StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	var result tokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &domainErrors.GatewayAuthError{StatusCode: resp.StatusCode, Body: truncate(respBody), Cause: fmt.Errorf("failed to parse response: %w", err)}
	}
	if result.AccessToken == "" {
		return "", &domainErrors.GatewayAuthError{StatusCode: resp.StatusCode, Body: truncate(respBody), Cause: fmt.Errorf("empty access token")}
	}

	if ttl := c.tokenTTL(string(result.ExpiresIn)); ttl > 0 {
		if err := c.tokens.Set(ctx, result.AccessToken, ttl); err != nil {
			c.logger.Warn("MpesaClient: Token cache write failed", zap.Error(err))
		}
	}

	return result.AccessToken, nil
}

func (c *Client) tokenTTL(expiresIn string) time.Duration {
	var seconds int64
	if _, err := fmt.Sscan(strings.TrimSpace(expiresIn), &seconds); err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds)*time.Second - c.config.TokenRefreshMargin
}

// BuildPassword returns base64(shortcode + passkey + timestamp) and the
// timestamp formatted as YYYYMMDDHHmmss in EAT.
func (c *Client) BuildPassword(timestamp time.Time) (string, string) {
	ts := FormatTimestamp(timestamp)
	password := base64.StdEncoding.EncodeToString([]byte(c.config.Shortcode + c.config.Passkey + ts))
	return password, ts
}

// FormatTimestamp renders t the way the gateway signs requests.
func FormatTimestamp(t time.Time) string {
	return t.In(EAT).Format(timestampFmt)
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// SubmitPush sends an STK push request. The gateway only accepts whole
// amounts; fractional amounts are rounded up.
func (c *Client) SubmitPush(ctx context.Context, accessToken string, req *provider.PushRequest) (*provider.PushResponse, error) {
	body := stkPushRequest{
		BusinessShortCode: c.config.Shortcode,
		Password:          req.Password,
		Timestamp:         req.Timestamp,
		TransactionType:   c.config.TransactionType,
		Amount:            req.Amount.Ceil().IntPart(),
		PartyA:            req.PhoneNumber,
		PartyB:            c.config.Shortcode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &domainErrors.GatewaySubmissionError{Cause: fmt.Errorf("failed to prepare request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+stkPushPath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &domainErrors.GatewaySubmissionError{Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("MpesaClient: Submitting STK push",
		zap.String("account_reference", req.AccountReference),
		zap.Int64("amount", body.Amount),
		zap.String("callback_url", req.CallbackURL))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("MpesaClient: STK push request failed", zap.Error(err))
		return nil, &domainErrors.GatewaySubmissionError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domainErrors.GatewaySubmissionError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate(ctx)
		}
		c.logger.Error("MpesaClient: STK push rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", truncate(respBody)))
		return nil, &domainErrors.GatewaySubmissionError{StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	var result stkPushResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &domainErrors.GatewaySubmissionError{
			StatusCode: resp.StatusCode,
			Body:       truncate(respBody),
			Cause:      fmt.Errorf("failed to parse response: %w", err),
		}
	}
	if result.ResponseCode != "0" || result.CheckoutRequestID == "" {
		c.logger.Error("MpesaClient: STK push not accepted",
			zap.String("response_code", result.ResponseCode),
			zap.String("response_description", result.ResponseDescription))
		return nil, &domainErrors.GatewaySubmissionError{StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	c.logger.Info("MpesaClient: STK push accepted",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("merchant_request_id", result.MerchantRequestID))

	return &provider.PushResponse{
		MerchantRequestID:   result.MerchantRequestID,
		CheckoutRequestID:   result.CheckoutRequestID,
		ResponseCode:        result.ResponseCode,
		ResponseDescription: result.ResponseDescription,
		CustomerMessage:     result.CustomerMessage,
	}, nil
}

// ParseCallback implements provider.PushGateway.
func (c *Client) ParseCallback(raw []byte) (*provider.CallbackResult, error) {
	return ParseCallback(raw)
}

func truncate(b []byte) string {
	if len(b) > maxBodyLog {
		return string(b[:maxBodyLog]) + "..."
	}
	return string(b)
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}
