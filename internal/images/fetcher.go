// Package images downloads recipe main images.
package images

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"ketohub/internal/errors"
)

const jpegMediaType = "image/jpeg"

// Options controls image download behaviour.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RatePerSecond caps requests per host; zero disables limiting.
	RatePerSecond float64
	MaxBodyBytes  int64
}

// Fetcher downloads JPEG images over HTTP.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limits       *hostLimiter
}

// NewFetcher creates a Fetcher. A nil client gets a default one with opts.Timeout.
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 * 1024 * 1024
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		limits:       newHostLimiter(opts.RatePerSecond),
	}
}

// Fetch downloads imageURL and returns its bytes. Non-2xx responses yield an
// ImageDownloadError and any media type other than image/jpeg yields an
// UnexpectedImageTypeError, even when the body arrived.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, errors.Wrap(eris.Wrap(err, "invalid image url"), errors.ValidationError, "failed to parse image url").
			WithContext("url", imageURL)
	}

	if err := f.limits.wait(ctx, u.Hostname()); err != nil {
		return nil, errors.Wrap(err, errors.NetworkError, "rate limiter wait aborted").
			WithContext("url", imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.Wrap(eris.Wrap(err, "failed to create request"), errors.NetworkError, "failed to build image request").
			WithContext("url", imageURL)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/jpeg,image/*;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(eris.Wrap(err, "failed to download file"), errors.NetworkError, "image request failed").
			WithContext("url", imageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errors.ImageDownloadError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	declared := resp.Header.Get("Content-Type")
	if mediaType(declared) != jpegMediaType {
		return nil, &errors.UnexpectedImageTypeError{URL: imageURL, DeclaredType: declared}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(eris.Wrap(err, "failed to read body"), errors.NetworkError, "image body read failed").
			WithContext("url", imageURL)
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, errors.New(errors.NetworkError, "image body exceeds size limit").
			WithContext("url", imageURL).
			WithContext("limit", f.maxBodyBytes)
	}
	return data, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		mt = strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}

// hostLimiter hands out one token bucket per host.
type hostLimiter struct {
	limit rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostLimiter(perSecond float64) *hostLimiter {
	if perSecond <= 0 {
		return nil
	}
	return &hostLimiter{
		limit:    rate.Limit(perSecond),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	if h == nil || host == "" {
		return ctx.Err()
	}
	host = strings.ToLower(host)

	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(h.limit, 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
