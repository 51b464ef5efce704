package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ChannelTwilio   = "twilio"
	ChannelTelegram = "telegram"

	DefaultSourceURL = "https://www.cbse.gov.in/cbsenew/cbse.html"
)

type Config struct {
	SourceURL    string
	FetchTimeout time.Duration

	DatabaseURL string
	RedisAddr   string

	NotifyChannel    string
	TwilioAccountSID string
	TwilioAuthToken  string
	FromAddress      string
	ToAddress        string
	TelegramToken    string
	TelegramChatID   int64

	AppPort       string
	BasicAuthUser string
	BasicAuthPass string

	LogLevel string
}

// ConfigError 表示缺失或非法的配置项，在任何网络 / 数据库访问之前返回
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// 配置键 -> 环境变量名（多个时按顺序取第一个非空值，兼容旧的 WhatsApp 变量名）
var envBindings = map[string][]string{
	"source_url":         {"SOURCE_URL", "CBSE_URL"},
	"fetch_timeout":      {"FETCH_TIMEOUT"},
	"database_url":       {"DATABASE_URL"},
	"redis_addr":         {"REDIS_ADDR"},
	"notify_channel":     {"NOTIFY_CHANNEL"},
	"twilio_account_sid": {"TWILIO_ACCOUNT_SID"},
	"twilio_auth_token":  {"TWILIO_AUTH_TOKEN"},
	"from_address":       {"FROM_ADDRESS", "FROM_WHATSAPP"},
	"to_address":         {"TO_ADDRESS", "TO_WHATSAPP"},
	"telegram_token":     {"TELEGRAM_BOT_TOKEN"},
	"telegram_chat_id":   {"TELEGRAM_CHAT_ID"},
	"app_port":           {"APP_PORT"},
	"app_basic_user":     {"APP_BASIC_USER"},
	"app_basic_pass":     {"APP_BASIC_PASS"},
	"log_level":          {"LOG_LEVEL"},
}

// Load 从环境变量（以及可选的 NOTICEWATCH_CONFIG 指向的 YAML 文件）读取配置并校验
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("source_url", DefaultSourceURL)
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("notify_channel", ChannelTwilio)
	v.SetDefault("app_port", "9000")
	v.SetDefault("log_level", "info")

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, &ConfigError{Key: key, Reason: err.Error()}
		}
	}

	if path := getEnv("NOTICEWATCH_CONFIG", ""); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Key: "NOTICEWATCH_CONFIG", Reason: fmt.Sprintf("read %s: %v", path, err)}
		}
	}

	cfg := &Config{
		SourceURL:        strings.TrimSpace(v.GetString("source_url")),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		RedisAddr:        strings.TrimSpace(v.GetString("redis_addr")),
		NotifyChannel:    strings.ToLower(strings.TrimSpace(v.GetString("notify_channel"))),
		TwilioAccountSID: strings.TrimSpace(v.GetString("twilio_account_sid")),
		TwilioAuthToken:  strings.TrimSpace(v.GetString("twilio_auth_token")),
		FromAddress:      strings.TrimSpace(v.GetString("from_address")),
		ToAddress:        strings.TrimSpace(v.GetString("to_address")),
		TelegramToken:    strings.TrimSpace(v.GetString("telegram_token")),
		AppPort:          v.GetString("app_port"),
		BasicAuthUser:    v.GetString("app_basic_user"),
		BasicAuthPass:    v.GetString("app_basic_pass"),
		LogLevel:         v.GetString("log_level"),
	}

	timeout, err := time.ParseDuration(v.GetString("fetch_timeout"))
	if err != nil || timeout <= 0 {
		return nil, &ConfigError{Key: "FETCH_TIMEOUT", Reason: fmt.Sprintf("invalid duration %q", v.GetString("fetch_timeout"))}
	}
	cfg.FetchTimeout = timeout

	if raw := strings.TrimSpace(v.GetString("telegram_chat_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ConfigError{Key: "TELEGRAM_CHAT_ID", Reason: fmt.Sprintf("not an integer: %q", raw)}
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查必填项；按通知渠道决定需要哪些凭据
func (c *Config) Validate() error {
	u, err := url.Parse(c.SourceURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ConfigError{Key: "SOURCE_URL", Reason: fmt.Sprintf("not an absolute URL: %q", c.SourceURL)}
	}
	if c.DatabaseURL == "" {
		return &ConfigError{Key: "DATABASE_URL", Reason: "required"}
	}

	switch c.NotifyChannel {
	case ChannelTwilio:
		required := []struct{ key, val string }{
			{"TWILIO_ACCOUNT_SID", c.TwilioAccountSID},
			{"TWILIO_AUTH_TOKEN", c.TwilioAuthToken},
			{"FROM_ADDRESS", c.FromAddress},
			{"TO_ADDRESS", c.ToAddress},
		}
		for _, r := range required {
			if r.val == "" {
				return &ConfigError{Key: r.key, Reason: "required"}
			}
		}
	case ChannelTelegram:
		if c.TelegramToken == "" {
			return &ConfigError{Key: "TELEGRAM_BOT_TOKEN", Reason: "required"}
		}
		if c.TelegramChatID == 0 {
			return &ConfigError{Key: "TELEGRAM_CHAT_ID", Reason: "required"}
		}
	default:
		return &ConfigError{Key: "NOTIFY_CHANNEL", Reason: fmt.Sprintf("unsupported channel %q", c.NotifyChannel)}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
