package notifier

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const providerTwilio = "twilio"

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier 通过 Twilio Messages API 发送（WhatsApp 地址形如 whatsapp:+14155238886）
type TwilioNotifier struct {
	From string
	To   string

	api messageCreator
}

func NewTwilio(accountSID, authToken, from, to string) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{From: from, To: to, api: client.Api}
}

func (n *TwilioNotifier) Name() string {
	return providerTwilio
}

func (n *TwilioNotifier) Send(body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.From)
	params.SetTo(n.To)
	params.SetBody(body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return "", &NotifyError{Provider: providerTwilio, Err: err}
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return "", &NotifyError{Provider: providerTwilio, Err: errors.New("response without message sid")}
	}

	log.Info().Str("sid", *resp.Sid).Str("to", n.To).Msg("twilio message created")
	return *resp.Sid, nil
}
