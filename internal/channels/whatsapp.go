// Package channels implements the messaging clients behind services.Channel:
// WhatsApp through the Twilio REST API and Telegram through the Bot API.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/providers"
	"github.com/tbourn/go-voice-relay/internal/services"
)

const (
	serviceDelivery = "delivery"
	serviceDownload = "audio-download"

	whatsappPrefix = "whatsapp:"
)

// WhatsApp sends messages through Twilio and downloads Twilio-hosted media.
type WhatsApp struct {
	AccountSID string
	AuthToken  string
	From       string // sender number, with or without the whatsapp: prefix
	APIBase    string // https://api.twilio.com
	MaxBytes   int64
	HTTP       *http.Client
}

// Platform implements services.Channel.
func (w *WhatsApp) Platform() domain.Platform { return domain.PlatformWhatsApp }

// Profile implements services.Channel.
func (w *WhatsApp) Profile() services.ChannelProfile {
	return services.ChannelProfile{
		Name:          "WhatsApp",
		Footer:        services.FooterWhatsApp,
		MaxAudioBytes: w.MaxBytes,
	}
}

// WithPrefix returns n addressed for the WhatsApp channel.
func WithPrefix(n string) string {
	n = strings.TrimSpace(n)
	if strings.HasPrefix(n, whatsappPrefix) {
		return n
	}
	return whatsappPrefix + n
}

// StripPrefix removes the channel prefix from a Twilio address.
func StripPrefix(n string) string {
	return strings.TrimPrefix(strings.TrimSpace(n), whatsappPrefix)
}

type twilioMessage struct {
	SID string `json:"sid"`
}

// Send posts a message and returns the Twilio message SID.
func (w *WhatsApp) Send(ctx context.Context, chatID, text string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", w.APIBase, url.PathEscape(w.AccountSID))
	form := url.Values{}
	form.Set("From", WithPrefix(w.From))
	form.Set("To", WithPrefix(chatID))
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", providers.Wrap(serviceDelivery, err)
	}
	req.SetBasicAuth(w.AccountSID, w.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client().Do(req)
	if err != nil {
		return "", providers.Wrap(serviceDelivery, err)
	}
	defer resp.Body.Close()
	if err := providers.CheckResponse(serviceDelivery, resp); err != nil {
		return "", err
	}
	var m twilioMessage
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return "", providers.Wrap(serviceDelivery, err)
	}
	return m.SID, nil
}

// Download fetches media from a Twilio media URL using account credentials.
func (w *WhatsApp) Download(ctx context.Context, ref string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, providers.Wrap(serviceDownload, err)
	}
	req.SetBasicAuth(w.AccountSID, w.AuthToken)
	return fetchLimited(w.client(), req, maxBytes)
}

func (w *WhatsApp) client() *http.Client {
	if w.HTTP != nil {
		return w.HTTP
	}
	return http.DefaultClient
}

// fetchLimited reads at most maxBytes of the response body, returning
// ErrAudioTooLarge when the declared or actual size exceeds it.
func fetchLimited(c *http.Client, req *http.Request, maxBytes int64) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		// *url.Error embeds the request URL, which may carry credentials
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("%s: %w", ue.Op, ue.Err)
		}
		return nil, providers.Wrap(serviceDownload, err)
	}
	defer resp.Body.Close()
	if err := providers.CheckResponse(serviceDownload, resp); err != nil {
		return nil, err
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, services.ErrAudioTooLarge
	}
	r := io.Reader(resp.Body)
	if maxBytes > 0 {
		r = io.LimitReader(resp.Body, maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, providers.Wrap(serviceDownload, err)
	}
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return nil, services.ErrAudioTooLarge
	}
	return b, nil
}
