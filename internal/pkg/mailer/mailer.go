// Package mailer 发送系统邮件（找回密码等）
package mailer

import (
	"context"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/go-mail/mail"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer 通过 SMTP 发送纯文本邮件
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

// NewMailer 未配置 SMTP 时退化为只写日志
func NewMailer(cfg *config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		logger.Warn("SMTP 未配置，邮件将只写入日志")
		return LogMailer{}
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPMailer{dialer: d, from: cfg.From}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}

// LogMailer 开发环境使用
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger.Info("mail (not sent)", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
