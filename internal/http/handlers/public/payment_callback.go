package public

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/payment"
	"github.com/musictutor-next/internal/payment/paypal"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

const callbackLogValueLimit = 512

// PaymentCallbackRequest 通用签名回调报文
type PaymentCallbackRequest struct {
	OrderNo       string `json:"order_no"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaymentCallback 支付网关异步通知。
// 携带 PayPal 签名头且配置了 webhook_id 时按 PayPal Webhook 校验，否则校验共享密钥 HMAC 签名。
func (h *Handler) PaymentCallback(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("payment_callback_body_read_failed", "error", err)
		response.BadRequest(c, "invalid request body")
		return
	}
	log.Infow("payment_callback_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"raw_body", callbackRawBodyForLog(body),
	)

	var input service.PaymentCallbackInput
	if h.isPaypalWebhook(c) {
		parsed, ok := h.parsePaypalWebhook(c, body)
		if !ok {
			return
		}
		input = parsed
	} else {
		parsed, ok := h.parseSignedCallback(c, body)
		if !ok {
			return
		}
		input = parsed
	}

	order, err := h.SettlementService.HandlePaymentCallback(c.Request.Context(), input)
	if err != nil {
		log.Warnw("payment_callback_handle_failed",
			"order_no", input.OrderNo,
			"status", input.Status,
			"error", err,
		)
		respondError(c, err)
		return
	}
	log.Infow("payment_callback_processed",
		"order_no", order.OrderNo,
		"order_status", order.Status,
	)
	response.Success(c, gin.H{
		"accepted": true,
		"order_no": order.OrderNo,
		"status":   order.Status,
	})
}

func (h *Handler) isPaypalWebhook(c *gin.Context) bool {
	if h.PaypalGateway == nil || !h.PaypalGateway.WebhookEnabled() {
		return false
	}
	return strings.TrimSpace(c.GetHeader("Paypal-Transmission-Id")) != ""
}

func (h *Handler) parsePaypalWebhook(c *gin.Context, body []byte) (service.PaymentCallbackInput, bool) {
	log := requestLog(c)
	event, err := paypal.ParseWebhookEvent(body)
	if err != nil {
		log.Warnw("paypal_webhook_parse_failed", "error", err)
		response.BadRequest(c, "invalid webhook event")
		return service.PaymentCallbackInput{}, false
	}
	if err := h.PaypalGateway.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, event.Raw); err != nil {
		log.Warnw("paypal_webhook_signature_invalid",
			"event_id", event.ID,
			"event_type", event.EventType,
			"paypal_transmission_sig", truncateCallbackLogValue(c.GetHeader("Paypal-Transmission-Sig")),
			"error", err,
		)
		response.Unauthorized(c, "invalid callback signature")
		return service.PaymentCallbackInput{}, false
	}
	status, ok := paypal.ToPaymentStatus(event.EventType, event.ResourceStatus())
	if !ok {
		log.Infow("paypal_webhook_event_ignored", "event_id", event.ID, "event_type", event.EventType)
		response.Success(c, gin.H{"accepted": true, "updated": false, "event_type": event.EventType})
		return service.PaymentCallbackInput{}, false
	}
	return service.PaymentCallbackInput{
		OrderNo:       event.InvoiceID(),
		TransactionID: event.RelatedOrderID(),
		Status:        status,
	}, true
}

func (h *Handler) parseSignedCallback(c *gin.Context, body []byte) (service.PaymentCallbackInput, bool) {
	secret := strings.TrimSpace(h.Config.Payment.CallbackSecret)
	if secret == "" {
		requestLog(c).Errorw("payment_callback_secret_missing")
		response.Error(c, http.StatusServiceUnavailable, "payment callback is not configured")
		return service.PaymentCallbackInput{}, false
	}
	if !payment.VerifyCallbackSignature(secret, body, c.GetHeader(payment.CallbackSignatureHeader)) {
		requestLog(c).Warnw("payment_callback_signature_invalid",
			"client_ip", c.ClientIP(),
			"signature", truncateCallbackLogValue(c.GetHeader(payment.CallbackSignatureHeader)),
		)
		response.Unauthorized(c, "invalid callback signature")
		return service.PaymentCallbackInput{}, false
	}
	var req PaymentCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(c, "invalid request body")
		return service.PaymentCallbackInput{}, false
	}
	return service.PaymentCallbackInput{
		OrderNo:       req.OrderNo,
		TransactionID: req.TransactionID,
		Status:        req.Status,
	}, true
}

func truncateCallbackLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= callbackLogValueLimit {
		return raw
	}
	return raw[:callbackLogValueLimit] + "...(truncated)"
}

func callbackRawBodyForLog(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return truncateCallbackLogValue(string(body))
}
