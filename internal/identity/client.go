// Package identity 通过 GoTrue 客户端调用后端身份服务。
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// Config 后端项目地址与匿名 key。
type Config struct {
	URL     string `yaml:"url" json:"url" env:"BACKEND_URL"`
	AnonKey string `yaml:"anon_key" json:"anon_key" env:"BACKEND_ANON_KEY"`
}

// Client 身份服务客户端。
type Client struct {
	authURL string
	anonKey string
	client  http.Client
}

// NewClient 创建客户端，未提供 httpClient 时使用 10 秒超时。
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend url required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("backend anon key required")
	}
	hc := http.Client{Timeout: 10 * time.Second}
	if httpClient != nil {
		hc = *httpClient
	}
	return &Client{authURL: base + "/auth/v1", anonKey: cfg.AnonKey, client: hc}, nil
}

// RequestPasswordReset 请求身份服务向 email 发送重置邮件，redirectTo 为重置页面地址。
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	hc := c.client
	hc.Transport = &callTransport{ctx: ctx, redirectTo: redirectTo, next: c.client.Transport}

	auth := gotrue.New("", c.anonKey).
		WithCustomGoTrueURL(c.authURL).
		WithClient(hc)
	if err := auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	return nil
}

// callTransport 为单次调用附加 ctx 与 redirect_to 参数。
type callTransport struct {
	ctx        context.Context
	redirectTo string
	next       http.RoundTripper
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.redirectTo != "" {
		q := req.URL.Query()
		q.Set("redirect_to", t.redirectTo)
		req.URL.RawQuery = q.Encode()
	}
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}
