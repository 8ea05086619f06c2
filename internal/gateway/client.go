// Package gateway реализует клиент REST API бэкенда мини-приложения.
// Все вызовы обмениваются JSON; неуспешные ответы возвращаются как *APIError
// с полем error ответа без изменений, сетевые сбои оборачивают ErrTransport.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/jwt"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
)

// Client клиент REST API бэкенда. Не хранит состояния между вызовами.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     jwt.Maker
	validate   *validator.Validate
	metrics    *Metrics
	log        *slog.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit ограничивает частоту исходящих запросов.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithTokenMaker включает сервисный токен в заголовке Authorization.
func WithTokenMaker(m jwt.Maker) Option {
	return func(c *Client) { c.tokens = m }
}

// WithMetrics включает prometheus-метрики запросов.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient создаёт клиент бэкенда с базовым адресом baseURL.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		token, err := c.tokens.GenerateToken("tarot-miniapp")
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do выполняет запрос и декодирует успешный ответ в out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	const op = "gateway.do"

	log := c.log.With(
		slog.String("op", op),
		slog.String("endpoint", endpoint),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
		}
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, 0, started)
		log.Debug("request failed", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	defer resp.Body.Close()
	c.metrics.observe(endpoint, resp.StatusCode, started)

	log.Debug("response received",
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", req.Header.Get("X-Request-ID")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &eb)
		return newAPIError(resp.StatusCode, resp.Status, eb)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: decode: %w", op, ErrTransport, err)
	}
	return nil
}

// list декодирует ответ списка: голый массив или страница {"results": [...]}.
func list[T any](ctx context.Context, c *Client, endpoint, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, endpoint, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	var items []T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("gateway.list: %w: %w", ErrTransport, err)
		}
		items = page.Results
	} else if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("gateway.list: %w: %w", ErrTransport, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// checkPayload проверяет ответ бэкенда по тегам validate.
func (c *Client) checkPayload(op string, v any) error {
	if err := c.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%s: %w: invalid payload: %s", op, ErrTransport, verrs.Error())
		}
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	return nil
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
