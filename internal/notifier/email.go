package notifier

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"go.uber.org/zap"
)

// 发送渠道。
const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
	ProviderLog    = "log"
)

// EmailConfig 邮件配置。
type EmailConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	From     string `yaml:"from" json:"from"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	APIKey   string `yaml:"api_key" json:"api_key" env:"EMAIL_API_KEY"`
	APIBase  string `yaml:"api_base" json:"api_base"`
}

// EmailMessage 表示一封邮件，HTML 与 Text 至少提供一个。
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// EmailSender 抽象发送接口，便于测试替换。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NewSender 根据配置创建发送器。
func NewSender(cfg EmailConfig, logger *zap.Logger) (EmailSender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderResend, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("email provider resend: api key required")
		}
		client, err := NewResendClient(cfg, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderSMTP:
		if cfg.Host == "" || cfg.Port == 0 {
			return nil, fmt.Errorf("email provider smtp: host and port required")
		}
		return NewSMTPClient(cfg), nil
	case ProviderLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth, sendMail: smtp.SendMail}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := buildEmailData(msg)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}
	if err := c.sendMail(c.addr, c.auth, msg.From, msg.To, data); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildEmailData 生成 multipart/alternative 邮件正文。
func buildEmailData(msg EmailMessage) ([]byte, error) {
	text := msg.Text
	if text == "" && msg.HTML != "" {
		text = PlainText(msg.HTML)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("MIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary()))
	b.Write(body.Bytes())
	return []byte(b.String()), nil
}
