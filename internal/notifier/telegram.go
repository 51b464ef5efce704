package notifier

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v4"
)

const (
	providerTelegram      = "telegram"
	telegramClientTimeout = 15 * time.Second
)

// TelegramNotifier 以 bot 身份向固定会话发送消息；Offline 模式下构造时不访问网络
type TelegramNotifier struct {
	ChatID int64

	bot *tele.Bot
}

func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	return newTelegramWithURL(token, chatID, "")
}

func newTelegramWithURL(token string, chatID int64, apiURL string) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &NotifyError{Provider: providerTelegram, Err: errors.New("telegram token is empty")}
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: telegramClientTimeout},
	})
	if err != nil {
		return nil, &NotifyError{Provider: providerTelegram, Err: err}
	}
	return &TelegramNotifier{ChatID: chatID, bot: b}, nil
}

func (n *TelegramNotifier) Name() string {
	return providerTelegram
}

func (n *TelegramNotifier) Send(body string) (string, error) {
	msg, err := n.bot.Send(tele.ChatID(n.ChatID), body)
	if err != nil {
		return "", &NotifyError{Provider: providerTelegram, Err: err}
	}
	if msg == nil || msg.ID == 0 {
		return "", &NotifyError{Provider: providerTelegram, Err: errors.New("response without message id")}
	}

	id := strconv.Itoa(msg.ID)
	log.Info().Str("message_id", id).Int64("chat_id", n.ChatID).Msg("telegram message sent")
	return id, nil
}
