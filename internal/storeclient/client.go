// Package storeclient предоставляет клиент хранилища ресурсов: бронирования, номера, оплаты,
// бонусные счета, списания и пользователи.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/metrics"
	"github.com/mmeshcher/smarthotel/internal/model"
)

const maxErrorBody = 4 << 10

// Client инкапсулирует HTTP-взаимодействие с хранилищем ресурсов.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент хранилища по указанному адресу. Сетевые ошибки, 5xx и 429 повторяются с экспоненциальной задержкой.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 3
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{s: logger.Sugar()}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    base,
		httpClient: rc,
	}
}

// SetRetryPolicy меняет число повторов и границы задержки между ними.
func (c *Client) SetRetryPolicy(retryMax int, waitMin, waitMax time.Duration) {
	c.httpClient.RetryMax = retryMax
	c.httpClient.RetryWaitMin = waitMin
	c.httpClient.RetryWaitMax = waitMax
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

type request struct {
	operation string
	method    string
	path      string
	body      any
	ifMatch   int64
}

// do выполняет запрос и декодирует тело ответа в out. Возвращает версию документа из ETag, если она есть.
func (c *Client) do(ctx context.Context, r request, out any) (int64, error) {
	var body any
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("%s: encode body: %w", r.operation, err)
		}
		body = raw
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", r.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.ifMatch > 0 {
		req.Header.Set("If-Match", strconv.Quote(strconv.FormatInt(r.ifMatch, 10)))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveStoreRequest(r.operation, 0, time.Since(start))
		return 0, fmt.Errorf("%s: %w: %w", r.operation, model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.ObserveStoreRequest(r.operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, fmt.Errorf("%s: %w", r.operation, statusError(resp.StatusCode, msg))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("%s: decode response: %w", r.operation, err)
		}
	}

	return parseETag(resp.Header.Get("ETag")), nil
}

func statusError(status int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	var base error
	switch {
	case status == http.StatusNotFound:
		base = model.ErrNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		base = model.ErrConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		base = model.ErrValidation
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		base = model.ErrUpstreamUnavailable
	default:
		return fmt.Errorf("unexpected store status %d: %s", status, msg)
	}
	return fmt.Errorf("%w: store status %d: %s", base, status, msg)
}

func parseETag(v string) int64 {
	v = strings.Trim(strings.TrimPrefix(strings.TrimSpace(v), "W/"), `"`)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// first возвращает первый элемент выборки или ErrNotFound.
func first[T any](items []T, what string) (*T, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return &items[0], nil
}

