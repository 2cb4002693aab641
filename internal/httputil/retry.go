// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the bibliographic source
// clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryBaseDelay is the first backoff step for DoWithRetry. Tests lower it.
var RetryBaseDelay = 5 * time.Second

// RetryMaxDelay caps a single DoWithRetry wait, including one requested
// through Retry-After.
var RetryMaxDelay = 2 * time.Minute

const defaultMaxRetries = 5

// Policy describes how throttled requests are retried. Only 429 and 503
// responses are retried; every other status is returned to the caller.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt (default 5).
	MaxRetries int

	// BaseDelay doubles on each retry.
	BaseDelay time.Duration

	// MaxDelay caps each wait. Zero means no cap.
	MaxDelay time.Duration
}

// DoWithRetry sends req under a Policy built from maxRetries and the
// package delays.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	p := Policy{MaxRetries: maxRetries, BaseDelay: RetryBaseDelay, MaxDelay: RetryMaxDelay}
	return p.Do(ctx, client, req)
}

// Do sends req, retrying throttled responses with exponential backoff. A
// longer Retry-After wins over the computed backoff. Each discarded
// response is drained and closed; after the last retry the final response
// is returned as is. Request bodies are replayed through req.GetBody.
// Cancelling ctx during a wait returns ctx.Err().
func (p Policy) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := zerolog.Ctx(ctx)

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}
		if !Throttled(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := p.delay(attempt, resp.Header.Get("Retry-After"), time.Now())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Debug().
			Str("host", req.URL.Host).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("throttled, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// delay returns the wait before retry number attempt+1.
func (p Policy) delay(attempt int, retryAfterHeader string, now time.Time) time.Duration {
	d := p.BaseDelay << attempt
	if after := retryAfter(retryAfterHeader, now); after > d {
		d = after
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Throttled reports whether status asks the client to slow down.
func Throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// retryAfter parses a Retry-After header given either in seconds or as an
// HTTP date. Unparseable or past values give zero.
func retryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
