package daraja

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"docpay/internal/config"
	"docpay/internal/provider"
	"docpay/internal/provider/base"
)

// Gateway implements provider.Gateway against the Safaricom Daraja API.
// It is a thin boundary: one HTTP call per operation, no retries.
type Gateway struct {
	cfg        config.Cfg
	httpClient *base.HTTPClient

	mu    sync.Mutex
	token *accessToken
}

// accessToken is the cached Daraja OAuth token.
type accessToken struct {
	Token     string
	ExpiresAt time.Time
}

// New creates a Daraja gateway for the configured shortcode.
func New(cfg config.Cfg) *Gateway {
	httpClient := base.NewHTTPClient("daraja", 30)
	httpClient.SetBaseURL(baseURL(cfg.Daraja.Environment))
	return &Gateway{cfg: cfg, httpClient: httpClient}
}

func baseURL(env string) string {
	if env == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// InitiatePush starts an STK push prompt on the customer's phone.
func (g *Gateway) InitiatePush(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResult, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("daraja auth: %w", err)
	}

	ts := timestamp()
	payload := map[string]any{
		"BusinessShortCode": g.cfg.Daraja.Shortcode,
		"Password":          g.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.Phone,
		"PartyB":            g.cfg.Daraja.Shortcode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       g.cfg.Daraja.CallbackBaseURL + "/hooks/daraja",
		"AccountReference":  req.AccountRef,
		"TransactionDesc":   req.Description,
	}

	resp, err := g.httpClient.PostJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, provider.ErrRateLimited
	}

	var out struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
		ErrorCode           string `json:"errorCode"`
		ErrorMessage        string `json:"errorMessage"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return nil, fmt.Errorf("daraja stk response: %w", err)
	}
	if out.ErrorCode != "" {
		return nil, &provider.Error{Code: out.ErrorCode, Message: out.ErrorMessage}
	}
	if !resp.IsSuccess() {
		return nil, &provider.Error{Code: strconv.Itoa(resp.StatusCode), Message: resp.String()}
	}
	if out.ResponseCode != "0" {
		return nil, &provider.Error{Code: out.ResponseCode, Message: out.ResponseDescription}
	}

	return &provider.InitiateResult{
		Reference:             out.MerchantRequestID,
		ProviderTransactionID: out.CheckoutRequestID,
		CustomerMessage:       out.CustomerMessage,
	}, nil
}

// QueryStatus asks Daraja for the outcome of a push. The endpoint is
// eventually consistent: while the prompt is open it answers with
// errorCode 500.001.1001 ("transaction is being processed").
func (g *Gateway) QueryStatus(ctx context.Context, providerTransactionID string) (*provider.StatusResult, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("daraja auth: %w", err)
	}

	ts := timestamp()
	payload := map[string]any{
		"BusinessShortCode": g.cfg.Daraja.Shortcode,
		"Password":          g.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": providerTransactionID,
	}

	resp, err := g.httpClient.PostJSON(ctx, "/mpesa/stkpushquery/v1/query", payload, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, provider.ErrRateLimited
	}

	var out struct {
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		ResultCode          string `json:"ResultCode"`
		ResultDesc          string `json:"ResultDesc"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ErrorCode           string `json:"errorCode"`
		ErrorMessage        string `json:"errorMessage"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return nil, fmt.Errorf("daraja query response: %w", err)
	}

	// Still processing: the prompt is open on the handset.
	if out.ErrorCode == "500.001.1001" {
		return &provider.StatusResult{Status: provider.StatusPending}, nil
	}
	if out.ErrorCode != "" {
		return nil, &provider.Error{Code: out.ErrorCode, Message: out.ErrorMessage}
	}
	if !resp.IsSuccess() {
		return nil, &provider.Error{Code: strconv.Itoa(resp.StatusCode), Message: resp.String()}
	}

	switch out.ResultCode {
	case "":
		return &provider.StatusResult{Status: provider.StatusPending}, nil
	case "0":
		return &provider.StatusResult{
			Status: provider.StatusCompleted,
			// The query layer has no receipt field; the callback carries
			// MpesaReceiptNumber when it races ahead of us.
			ConfirmationCode: out.CheckoutRequestID,
			ProviderDesc:     out.ResultDesc,
		}, nil
	default:
		return &provider.StatusResult{
			Status:       provider.StatusFailed,
			ProviderCode: out.ResultCode,
			ProviderDesc: out.ResultDesc,
		}, nil
	}
}

func (g *Gateway) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.cfg.Daraja.Shortcode + g.cfg.Daraja.Passkey + ts))
}

// timestamp in EAT, the format Daraja signs against.
func timestamp() string {
	return time.Now().In(time.FixedZone("EAT", 3*3600)).Format("20060102150405")
}

// getAccessToken returns a cached OAuth token, refreshing when within
// five minutes of expiry.
func (g *Gateway) getAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != nil && g.token.ExpiresAt.After(time.Now().Add(5*time.Minute)) {
		return g.token.Token, nil
	}

	auth := base64.StdEncoding.EncodeToString([]byte(g.cfg.Daraja.ConsumerKey + ":" + g.cfg.Daraja.ConsumerSecret))
	resp, err := g.httpClient.Get(ctx, "/oauth/v1/generate?grant_type=client_credentials", map[string]string{
		"Authorization": "Basic " + auth,
	})
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("auth failed: status %d; body=%s", resp.StatusCode, resp.String())
	}

	var t struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := resp.UnmarshalJSON(&t); err != nil {
		return "", err
	}
	expiresIn, err := strconv.Atoi(t.ExpiresIn)
	if err != nil {
		expiresIn = 3600
	}

	g.token = &accessToken{
		Token:     t.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	return t.AccessToken, nil
}
