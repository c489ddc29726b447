package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/payment"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid       = errors.New("paypal config invalid")
	ErrAuthFailed          = errors.New("paypal auth failed")
	ErrRequestFailed       = errors.New("paypal request failed")
	ErrResponseInvalid     = errors.New("paypal response invalid")
	ErrWebhookVerifyFailed = errors.New("paypal webhook verify failed")
)

const (
	defaultSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	defaultTimeout        = 12 * time.Second
)

// Config PayPal 网关配置
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
}

// FromAppConfig 从应用配置构建
func FromAppConfig(cfg config.PaypalGatewayConfig) *Config {
	c := &Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      cfg.BaseURL,
		WebhookID:    cfg.WebhookID,
	}
	c.normalize()
	return c
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrConfigInvalid)
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("%w: client_secret is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// CaptureResult 捕获订单返回
type CaptureResult struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    string
	Currency  string
	InvoiceID string
	PaidAt    *time.Time
}

// Gateway PayPal 订单核验（信用卡通过 PayPal 托管收单，同走此网关）
type Gateway struct {
	cfg        *Config
	httpClient *http.Client
}

// NewGateway 创建 PayPal 网关
func NewGateway(cfg *Config, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Gateway{cfg: cfg, httpClient: httpClient}
}

// Verify 实现 payment.Gateway：对前端已批准的 PayPal 订单执行捕获；已捕获的订单返回当前状态
func (g *Gateway) Verify(ctx context.Context, input payment.VerifyInput) (*payment.VerifyResult, error) {
	if err := ValidateConfig(g.cfg); err != nil {
		return nil, err
	}
	capture, err := g.CaptureOrder(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	result := &payment.VerifyResult{
		TransactionID: input.TransactionID,
		Amount:        capture.Amount,
	}
	status, ok := ToPaymentStatus("", capture.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown capture status %s", ErrResponseInvalid, capture.Status)
	}
	switch status {
	case constants.CallbackStatusCompleted:
		result.Status = payment.StatusCompleted
		if capture.InvoiceID != "" && input.OrderNo != "" && capture.InvoiceID != input.OrderNo {
			result.Status = payment.StatusDeclined
			result.Reason = "invoice_mismatch"
			return result, nil
		}
		if capture.Amount != "" {
			paid, parseErr := decimal.NewFromString(capture.Amount)
			if parseErr != nil || !paid.Equal(input.Amount.Round(2)) {
				result.Status = payment.StatusDeclined
				result.Reason = "amount_mismatch"
			}
		}
	case constants.CallbackStatusFailed:
		result.Status = payment.StatusDeclined
		result.Reason = strings.ToLower(capture.Status)
	default:
		result.Status = payment.StatusPending
	}
	return result, nil
}

// CaptureOrder 捕获 PayPal 订单；订单已捕获时 PayPal 返回 422，此时改为查询订单
func (g *Gateway) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is empty", ErrConfigInvalid)
	}
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	respBody, statusCode, err := g.doJSONRequest(ctx, http.MethodPost, endpoint, token, []byte("{}"))
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusUnprocessableEntity {
		respBody, statusCode, err = g.doJSONRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), token, nil)
		if err != nil {
			return nil, err
		}
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: capture status %d", ErrResponseInvalid, statusCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}

	result := &CaptureResult{
		OrderID:   strings.TrimSpace(readString(raw, "id")),
		Status:    strings.TrimSpace(readString(raw, "status")),
		InvoiceID: strings.TrimSpace(readString(raw, "purchase_units", "0", "invoice_id")),
	}
	captures := readArray(raw, "purchase_units", "0", "payments", "captures")
	if len(captures) > 0 {
		if captureMap, ok := captures[0].(map[string]interface{}); ok {
			result.CaptureID = strings.TrimSpace(readString(captureMap, "id"))
			if status := strings.TrimSpace(readString(captureMap, "status")); status != "" {
				result.Status = status
			}
			result.Amount = strings.TrimSpace(readString(captureMap, "amount", "value"))
			result.Currency = strings.TrimSpace(readString(captureMap, "amount", "currency_code"))
			if invoice := strings.TrimSpace(readString(captureMap, "invoice_id")); invoice != "" {
				result.InvoiceID = invoice
			}
			if rawTime := strings.TrimSpace(readString(captureMap, "create_time")); rawTime != "" {
				if parsed, err := time.Parse(time.RFC3339, rawTime); err == nil {
					result.PaidAt = &parsed
				}
			}
		}
	}
	if result.OrderID == "" {
		result.OrderID = orderID
	}
	if result.Status == "" {
		return nil, fmt.Errorf("%w: missing capture status", ErrResponseInvalid)
	}
	return result, nil
}

// VerifyWebhookSignature 校验 PayPal Webhook 签名
func (g *Gateway) VerifyWebhookSignature(ctx context.Context, headers http.Header, event map[string]interface{}) error {
	if g.cfg == nil || g.cfg.WebhookID == "" {
		return fmt.Errorf("%w: webhook_id is required", ErrConfigInvalid)
	}
	payload := map[string]interface{}{
		"transmission_id":   strings.TrimSpace(headers.Get("Paypal-Transmission-Id")),
		"transmission_time": strings.TrimSpace(headers.Get("Paypal-Transmission-Time")),
		"cert_url":          strings.TrimSpace(headers.Get("Paypal-Cert-Url")),
		"auth_algo":         strings.TrimSpace(headers.Get("Paypal-Auth-Algo")),
		"transmission_sig":  strings.TrimSpace(headers.Get("Paypal-Transmission-Sig")),
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     event,
	}
	for _, key := range []string{"transmission_id", "transmission_time", "cert_url", "auth_algo", "transmission_sig"} {
		if readString(payload, key) == "" {
			return fmt.Errorf("%w: missing %s", ErrWebhookVerifyFailed, key)
		}
	}

	token, err := g.getAccessToken(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal verify payload failed", ErrWebhookVerifyFailed)
	}
	respBody, statusCode, err := g.doJSONRequest(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", token, body)
	if err != nil {
		return err
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: verify status %d", ErrWebhookVerifyFailed, statusCode)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: decode verify response failed", ErrWebhookVerifyFailed)
	}
	if strings.ToUpper(strings.TrimSpace(readString(resp, "verification_status"))) != "SUCCESS" {
		return fmt.Errorf("%w: verify result is not success", ErrWebhookVerifyFailed)
	}
	return nil
}

// WebhookEnabled 是否配置了 Webhook 校验
func (g *Gateway) WebhookEnabled() bool {
	return g != nil && g.cfg != nil && g.cfg.WebhookID != ""
}

// WebhookEvent PayPal Webhook 事件
type WebhookEvent struct {
	ID        string
	EventType string
	Resource  map[string]interface{}
	Raw       map[string]interface{}
}

// ParseWebhookEvent 解析 Webhook 事件
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: webhook body is empty", ErrResponseInvalid)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: webhook body invalid", ErrResponseInvalid)
	}
	event := &WebhookEvent{
		ID:        strings.TrimSpace(readString(raw, "id")),
		EventType: strings.TrimSpace(readString(raw, "event_type")),
		Raw:       raw,
	}
	if resource, ok := raw["resource"].(map[string]interface{}); ok {
		event.Resource = resource
	} else {
		event.Resource = map[string]interface{}{}
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("%w: event_type is missing", ErrResponseInvalid)
	}
	return event, nil
}

// RelatedOrderID 提取关联的 PayPal 订单号（即本系统的交易流水号）
func (e *WebhookEvent) RelatedOrderID() string {
	if e == nil {
		return ""
	}
	if val := strings.TrimSpace(readString(e.Resource, "supplementary_data", "related_ids", "order_id")); val != "" {
		return val
	}
	if strings.HasPrefix(strings.ToUpper(e.EventType), "CHECKOUT.ORDER") {
		return strings.TrimSpace(readString(e.Resource, "id"))
	}
	return ""
}

// InvoiceID 提取下单时写入的本系统订单号
func (e *WebhookEvent) InvoiceID() string {
	if e == nil {
		return ""
	}
	if val := strings.TrimSpace(readString(e.Resource, "invoice_id")); val != "" {
		return val
	}
	return strings.TrimSpace(readString(e.Resource, "purchase_units", "0", "invoice_id"))
}

// ResourceStatus 提取资源状态
func (e *WebhookEvent) ResourceStatus() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(readString(e.Resource, "status"))
}

// ToPaymentStatus 映射 PayPal 事件到回调状态
func ToPaymentStatus(eventType, resourceStatus string) (string, bool) {
	eventType = strings.ToUpper(strings.TrimSpace(eventType))
	resourceStatus = strings.ToUpper(strings.TrimSpace(resourceStatus))

	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		return constants.CallbackStatusCompleted, true
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED", "PAYMENT.CAPTURE.FAILED", "CHECKOUT.ORDER.DENIED":
		return constants.CallbackStatusFailed, true
	case "PAYMENT.CAPTURE.REFUNDED":
		return constants.CallbackStatusRefunded, true
	case "PAYMENT.CAPTURE.PENDING", "CHECKOUT.ORDER.APPROVED":
		return constants.CallbackStatusPending, true
	}

	switch resourceStatus {
	case "COMPLETED":
		return constants.CallbackStatusCompleted, true
	case "DENIED", "DECLINED", "FAILED", "VOIDED":
		return constants.CallbackStatusFailed, true
	case "REFUNDED":
		return constants.CallbackStatusRefunded, true
	case "PENDING", "APPROVED", "CREATED", "SAVED":
		return constants.CallbackStatusPending, true
	}
	return "", false
}

func (c *Config) normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultSandboxBaseURL
	}
	c.WebhookID = strings.TrimSpace(c.WebhookID)
}

func (g *Gateway) getAccessToken(ctx context.Context) (string, error) {
	values := url.Values{}
	values.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request failed", ErrAuthFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request token failed: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read token response failed", ErrAuthFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token status %d", ErrAuthFailed, resp.StatusCode)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode token response failed", ErrAuthFailed)
	}
	token := strings.TrimSpace(readString(parsed, "access_token"))
	if token == "" {
		return "", fmt.Errorf("%w: access_token is empty", ErrAuthFailed)
	}
	return token, nil
}

func (g *Gateway) doJSONRequest(ctx context.Context, method, endpoint, token string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: http request failed: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	return respBody, resp.StatusCode, nil
}

func readString(raw map[string]interface{}, path ...string) string {
	if raw == nil {
		return ""
	}
	var current interface{} = raw
	for _, seg := range path {
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return ""
			}
			current = arr[idx]
			continue
		}
		next, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next[seg]
	}
	if current == nil {
		return ""
	}
	if str, ok := current.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", current)
}

func readArray(raw map[string]interface{}, path ...string) []interface{} {
	if raw == nil {
		return nil
	}
	var current interface{} = raw
	for _, seg := range path {
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return nil
			}
			current = arr[idx]
			continue
		}
		next, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = next[seg]
	}
	arr, ok := current.([]interface{})
	if !ok {
		return nil
	}
	return arr
}
