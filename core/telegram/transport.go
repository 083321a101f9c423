package telegram

import (
	"net"
	"net/http"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
	"github.com/m3rciful/schoolbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// allowedUpdates are the only update kinds the bot routes; everything else is
// filtered out by Telegram before it reaches us.
var allowedUpdates = []string{"message", "callback_query"}

const (
	defaultLongPollTimeout = 10 * time.Second

	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	responseTimeout = 5 * time.Second
	clientTimeout   = 30 * time.Second
	transportTries  = 3
	transportPause  = 2 * time.Second
)

// BuildPoller returns the webhook or long poller selected by cfg.Telegram.RunMode.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			SecretToken:    cfg.Webhook.Secret,
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
}

// BuildHTTPClient returns the client used for Bot API calls. Transport-level
// failures (dial errors, timeouts) are retried; API errors are left to callers.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: base, tries: transportTries, pause: transportPause},
	}
}

type retryTransport struct {
	base  http.RoundTripper
	tries int
	pause time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var err error
	for try := 1; try <= t.tries; try++ {
		r := req
		if try > 1 {
			// A consumed body can only be replayed through GetBody.
			if req.Body != nil && req.GetBody == nil {
				return nil, err
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				if r.Body, err = req.GetBody(); err != nil {
					return nil, err
				}
			}
		}
		var resp *http.Response
		if resp, err = t.base.RoundTrip(r); err == nil {
			return resp, nil
		}
		if try == t.tries || !netutil.ShouldRetry(err) {
			break
		}
		timer := time.NewTimer(t.pause * time.Duration(try))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, err
}
