// Package notify 通过外部 SMTP 服务向用户发送业务通知邮件。
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailsight/backend/internal/config"
	"mailsight/backend/internal/domain"
)

// Mailer 首次打开通知的 SMTP 客户端
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewMailer 创建通知邮件客户端
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
	}
}

// SendFirstOpenNotification 发送首次打开通知邮件
func (m *Mailer) SendFirstOpenNotification(user *domain.User, mail *domain.MailItem, log *domain.ReadLog) error {
	subject := fmt.Sprintf("您追踪的邮件「%s」已被打开", mail.Title)

	var body strings.Builder
	fmt.Fprintf(&body, "您好 %s，\r\n\r\n", displayName(user))
	fmt.Fprintf(&body, "您追踪的邮件「%s」在 %s 首次被打开。\r\n\r\n",
		mail.Title, log.ReadAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&body, "设备类型：%s\r\n", log.DeviceType)
	fmt.Fprintf(&body, "浏览器：%s\r\n", log.Browser)
	fmt.Fprintf(&body, "操作系统：%s\r\n", log.OS)
	fmt.Fprintf(&body, "IP 地址：%s\r\n", log.IPAddress)
	body.WriteString("\r\n-- MailSight\r\n")

	return m.send(user.Email, subject, body.String())
}

// send 通过配置的 SMTP 服务投递一封纯文本邮件
func (m *Mailer) send(to, subject, body string) error {
	msg := buildMessage(m.cfg.From, to, subject, body)

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	err := smtp.SendMail(m.cfg.Address, auth, m.cfg.From, []string{to}, strings.NewReader(msg))
	if err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", to, err)
	}

	m.logger.Info("通知邮件已发送",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// buildMessage 组装 RFC 5322 格式的邮件原文
func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// displayName 通知抬头使用的称呼
func displayName(user *domain.User) string {
	if user.Username != "" {
		return user.Username
	}
	return user.Email
}
