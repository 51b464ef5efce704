package notifier

import (
	"fmt"

	"github.com/LJTian/NoticeWatch/internal/config"
)

// Notifier 把消息正文发给固定的接收方，返回服务商分配的消息 ID
type Notifier interface {
	Name() string
	Send(body string) (string, error)
}

// NotifyError 发送失败（认证、接收方无效、服务商错误），不做内部重试
type NotifyError struct {
	Provider string
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify via %s: %v", e.Provider, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// New 按配置的渠道构造通知器
func New(cfg *config.Config) (Notifier, error) {
	switch cfg.NotifyChannel {
	case config.ChannelTelegram:
		return NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	case config.ChannelTwilio, "":
		return NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.FromAddress, cfg.ToAddress), nil
	default:
		return nil, &config.ConfigError{Key: "NOTIFY_CHANNEL", Reason: fmt.Sprintf("unsupported channel %q", cfg.NotifyChannel)}
	}
}
