package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CallbackSignatureHeader 回调签名请求头
const CallbackSignatureHeader = "X-Payment-Signature"

// SignCallback 计算回调报文签名（HMAC-SHA256，十六进制）
func SignCallback(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature 校验回调报文签名
func VerifyCallbackSignature(secret string, body []byte, signature string) bool {
	secret = strings.TrimSpace(secret)
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || signature == "" {
		return false
	}
	expected := SignCallback(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
