package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Enabled 是否已启用邮件发送
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled
}

// OrderStatusEmailInput 订单状态邮件输入
type OrderStatusEmailInput struct {
	OrderNo string
	Status  string
	Amount  models.Money
	Courses string
}

// SendOrderStatusEmail 发送订单状态通知
func (s *EmailService) SendOrderStatusEmail(toEmail string, input OrderStatusEmailInput, locale string) error {
	subject, body := buildOrderStatusContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	timeout := s.dialTimeout()
	if s.cfg.UseSSL {
		return normalizeEmailSendError(sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg), timeout))
	}
	if s.cfg.UseTLS {
		return normalizeEmailSendError(sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg), timeout))
	}
	return normalizeEmailSendError(sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg), timeout))
}

func (s *EmailService) dialTimeout() time.Duration {
	if s.cfg == nil || s.cfg.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.cfg.TimeoutMS) * time.Millisecond
}

type orderStatusTemplate struct {
	subject string
	labels  map[string]string
	bodies  map[string]string
	body    string
}

var orderStatusTemplates = map[string]orderStatusTemplate{
	localeZH: {
		subject: "订单状态更新：%s",
		labels: map[string]string{
			constants.OrderStatusPaid:      "已支付",
			constants.OrderStatusCancelled: "已取消",
			constants.OrderStatusRefunded:  "已退款",
		},
		bodies: map[string]string{
			constants.OrderStatusPaid:      "已收到您的付款，课时已开通，可以开始预约上课。\n\n订单号：%s\n状态：%s\n金额：%s",
			constants.OrderStatusCancelled: "订单已取消，如使用了优惠券，名额已退回。\n\n订单号：%s\n状态：%s\n金额：%s",
			constants.OrderStatusRefunded:  "订单已退款，未开始的预约已一并取消。\n\n订单号：%s\n状态：%s\n金额：%s",
		},
		body: "订单号：%s\n状态：%s\n金额：%s",
	},
	localeTW: {
		subject: "訂單狀態更新：%s",
		labels: map[string]string{
			constants.OrderStatusPaid:      "已付款",
			constants.OrderStatusCancelled: "已取消",
			constants.OrderStatusRefunded:  "已退款",
		},
		bodies: map[string]string{
			constants.OrderStatusPaid:      "已收到您的付款，課時已開通，可以開始預約上課。\n\n訂單編號：%s\n狀態：%s\n金額：%s",
			constants.OrderStatusCancelled: "訂單已取消，如使用了優惠券，名額已退回。\n\n訂單編號：%s\n狀態：%s\n金額：%s",
			constants.OrderStatusRefunded:  "訂單已退款，尚未開始的預約已一併取消。\n\n訂單編號：%s\n狀態：%s\n金額：%s",
		},
		body: "訂單編號：%s\n狀態：%s\n金額：%s",
	},
	localeEN: {
		subject: "Order status updated: %s",
		labels: map[string]string{
			constants.OrderStatusPaid:      "Paid",
			constants.OrderStatusCancelled: "Cancelled",
			constants.OrderStatusRefunded:  "Refunded",
		},
		bodies: map[string]string{
			constants.OrderStatusPaid:      "We have received your payment. Your lessons are active and ready to book.\n\nOrder No: %s\nStatus: %s\nAmount: %s",
			constants.OrderStatusCancelled: "The order has been cancelled. Any coupon used on it is available again.\n\nOrder No: %s\nStatus: %s\nAmount: %s",
			constants.OrderStatusRefunded:  "The order has been refunded and upcoming lessons were cancelled.\n\nOrder No: %s\nStatus: %s\nAmount: %s",
		},
		body: "Order No: %s\nStatus: %s\nAmount: %s",
	},
}

func buildOrderStatusContent(input OrderStatusEmailInput, locale string) (string, string) {
	tpl := orderStatusTemplates[normalizeLocale(locale)]
	status := strings.ToLower(strings.TrimSpace(input.Status))
	label, ok := tpl.labels[status]
	if !ok {
		label = input.Status
	}
	subject := fmt.Sprintf(tpl.subject, label)
	format, ok := tpl.bodies[status]
	if !ok {
		format = tpl.body
	}
	body := fmt.Sprintf(format, input.OrderNo, label, input.Amount.String())
	if courses := strings.TrimSpace(input.Courses); courses != "" {
		body += "\n\n" + courses
	}
	return subject, body
}

const (
	localeZH = "zh-CN"
	localeTW = "zh-TW"
	localeEN = "en"
)

func normalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	switch {
	case strings.HasPrefix(l, "zh-tw"), strings.HasPrefix(l, "zh-hk"), strings.HasPrefix(l, "zh-mo"):
		return localeTW
	case strings.HasPrefix(l, "en"):
		return localeEN
	default:
		return localeZH
	}
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte, timeout time.Duration) error {
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: timeout}, "tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte, timeout time.Duration) error {
	client, err := dialSMTP(addr, host, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte, timeout time.Duration) error {
	client, err := dialSMTP(addr, host, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

// dialSMTP 带超时建立 SMTP 连接
func dialSMTP(addr, host string, timeout time.Duration) (*smtp.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	directKeywords := []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	}
	for _, keyword := range directKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		hints := []string{"recipient", "user", "mailbox", "address", "rcpt"}
		for _, hint := range hints {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
