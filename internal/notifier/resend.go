package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendClient 通过 Resend API 发送邮件。
type ResendClient struct {
	client *resend.Client
}

// NewResendClient 创建客户端，未提供 httpClient 时使用 15 秒超时；APIBase 用于替换默认地址。
func NewResendClient(cfg EmailConfig, httpClient *http.Client) (*ResendClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	client := resend.NewCustomClient(httpClient, cfg.APIKey)
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse api base %q: %w", cfg.APIBase, err)
		}
		client.BaseURL = u
	}
	return &ResendClient{client: client}, nil
}

func (c *ResendClient) Send(ctx context.Context, msg EmailMessage) error {
	_, err := c.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
