package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
)

// Client — REST-клиент биржи. Все приватные вызовы подписываются
// HMAC-SHA256(ts + METHOD + path + body) с base64, как того требует API.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	passph    string
	http      *http.Client

	mu   sync.RWMutex
	meta map[string]models.Instrument // кэш метаданных по инструменту
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.Broker.BaseURL, "/"),
		apiKey:    cfg.Broker.APIKey,
		apiSecret: cfg.Broker.APISecret,
		passph:    cfg.Broker.Passphrase,
		http:      &http.Client{Timeout: cfg.BrokerTimeout},
		meta:      make(map[string]models.Instrument),
	}
}

// APIError — ответ биржи с ошибкой: либо не-2xx, либо code != "0" в теле.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker http %d: code=%s msg=%s", e.Status, e.Code, e.Msg)
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) signedRequest(ctx context.Context, method, requestPath string, payload []byte) (*http.Request, error) {
	var rd io.Reader
	body := ""
	if len(payload) > 0 {
		rd = bytes.NewReader(payload)
		body = string(payload)
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do выполняет подписанный запрос и возвращает тело ответа.
// Не-2xx превращается в *APIError, чтобы выше можно было отличить 401/403.
func (c *Client) do(ctx context.Context, method, requestPath string, payload []byte) ([]byte, error) {
	req, err := c.signedRequest(ctx, method, requestPath, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, requestPath, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func (c *Client) cachedMeta(symbol string) (models.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.meta[symbol]
	return m, ok
}

func (c *Client) storeMeta(m models.Instrument) {
	c.mu.Lock()
	c.meta[m.Symbol] = m
	c.mu.Unlock()
}
