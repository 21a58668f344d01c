package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
	"wbcatalog/config"
)

// Session держит заголовки "браузера" и общий транспорт между запросами.
// Бизнес-логики здесь нет, только идентичность клиента и темп запросов.
type Session struct {
	client  *http.Client
	headers http.Header
	limiter *rate.Limiter
}

func NewSession(cfg config.WildberriesConfig) *Session {
	headers := http.Header{}
	headers.Set("User-Agent", cfg.UserAgent)
	headers.Set("Accept", "application/json, text/plain, */*")
	headers.Set("Accept-Language", cfg.AcceptLanguage)
	headers.Set("Connection", "keep-alive")
	if cfg.Referer != "" {
		headers.Set("Referer", cfg.Referer)
	}
	headers.Set("Sec-Fetch-Dest", "empty")
	headers.Set("Sec-Fetch-Mode", "cors")
	headers.Set("Sec-Fetch-Site", "same-site")

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	return &Session{
		// таймаут на запрос задаётся контекстом в Fetcher
		client:  &http.Client{Transport: transport},
		headers: headers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SetHTTPClient подменяет клиент, используется в тестах с httptest.
func (s *Session) SetHTTPClient(c *http.Client) {
	s.client = c
}

func (s *Session) Get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	target := endpoint
	if len(params) > 0 {
		target = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return s.client.Do(req)
}
