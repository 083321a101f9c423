// Package netutil classifies Telegram API failures for retry decisions.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Failure kinds reported by Classify.
const (
	KindTimeout  = "timeout"
	KindDial     = "dial"
	KindFlood    = "flood"
	KindServer   = "http_5xx"
	KindBlocked  = "blocked"
	KindMigrated = "migrated"
	KindRequest  = "http_4xx"
	KindUnknown  = "unknown"
)

// Failure says why a Telegram call failed and whether repeating it can help.
type Failure struct {
	Kind  string
	Retry bool
	// Wait is the delay Telegram asked for, zero when it named none.
	Wait time.Duration
}

// Classify inspects err from a Telegram call. Flood limits, server errors and
// transient network failures are retryable; a chat that blocked the bot or a
// rejected request is not.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Failure{Kind: KindTimeout}
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return Failure{Kind: KindFlood, Retry: true, Wait: time.Duration(flood.RetryAfter) * time.Second}
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return Failure{Kind: KindMigrated}
	}
	var api *tele.Error
	if errors.As(err, &api) {
		switch {
		case api.Code >= 500:
			return Failure{Kind: KindServer, Retry: true}
		case api.Code == 403:
			return Failure{Kind: KindBlocked}
		default:
			return Failure{Kind: KindRequest}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return Failure{Kind: KindTimeout, Retry: true}
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return Classify(urlErr.Err)
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return Failure{Kind: KindTimeout, Retry: true}
		}
		if opErr.Op == "dial" {
			return Failure{Kind: KindDial, Retry: true}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failure{Kind: KindTimeout, Retry: true}
	}
	return Failure{Kind: KindUnknown}
}

// ShouldRetry reports whether repeating the failed call can succeed.
func ShouldRetry(err error) bool {
	return Classify(err).Retry
}
