package telegram

import (
	"fmt"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/todobot/core/config"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultLongPollSeconds = 10
	// clientTimeoutMargin is added on top of the long-poll timeout so that an
	// idle getUpdates call is never cut by the HTTP client.
	clientTimeoutMargin = 20 * time.Second
)

// newPoller picks the update source configured by telegram.run_mode.
// The config is expected to be normalized.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg)}
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	sec := cfg.Telegram.LongPollTimeoutSeconds
	if sec <= 0 {
		sec = defaultLongPollSeconds
	}
	return time.Duration(sec) * time.Second
}

// newHTTPClient returns the client used for Bot API calls. Retries are left to
// the outbound sender, which knows whether a call is safe to repeat.
func newHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   pollTimeout + clientTimeoutMargin,
		Transport: transport,
	}
}
