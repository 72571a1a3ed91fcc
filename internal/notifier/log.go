package notifier

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// LogSender 仅记录邮件内容，适合开发阶段使用。
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender 创建日志发送器，未提供 logger 时不输出。
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("email")}
}

// Send 打印收件人、主题与纯文本正文。
func (s *LogSender) Send(ctx context.Context, msg EmailMessage) error {
	text := msg.Text
	if text == "" {
		text = PlainText(msg.HTML)
	}
	s.logger.Info("email",
		zap.String("to", strings.Join(msg.To, ",")),
		zap.String("subject", msg.Subject),
		zap.String("body", text),
	)
	return ctx.Err()
}
