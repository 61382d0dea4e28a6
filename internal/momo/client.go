package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultTokenTTL = 50 * time.Minute
	maxBodyLog      = 2048
	tokenCacheKey   = "collection"
)

// Config - параметры коллекции MTN MoMo
type Config struct {
	BaseURL           string
	SubscriptionKey   string // Ocp-Apim-Subscription-Key
	APIUser           string
	APIKey            string
	TargetEnvironment string
	CallbackHost      string
	Timeout           time.Duration
}

// Credentials - API user и ключ коллекции
type Credentials struct {
	APIUser string
	APIKey  string
}

// TransferRequest - запрос на списание с кошелька плательщика
type TransferRequest struct {
	Amount       decimal.Decimal
	Currency     string
	PayerMSISDN  string
	PayerMessage string
	PayeeNote    string
	ExternalID   string
}

// TransferStatus - ответ на запрос статуса
type TransferStatus struct {
	Status                 string          `json:"status"`
	FinancialTransactionID string          `json:"financialTransactionId,omitempty"`
	ExternalID             string          `json:"externalId,omitempty"`
	Reason                 json.RawMessage `json:"reason,omitempty"`
	// Raw - тело ответа целиком, для снимка в provider_response
	Raw json.RawMessage `json:"-"`
}

// ReasonText - причина отказа в виде строки
func (s *TransferStatus) ReasonText() string {
	if len(s.Reason) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(s.Reason, &text); err == nil {
		return text
	}
	return string(s.Reason)
}

// Observer получает длительность и результат каждого вызова API
type Observer func(operation string, duration time.Duration, err error)

type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент (тесты, прокси)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackOff задаёт политику повторов для идемпотентных запросов
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// WithReferenceGenerator задаёт генератор X-Reference-Id
func WithReferenceGenerator(f func() string) Option {
	return func(c *Client) { c.newReference = f }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(c *Client) { c.tokenTTL = ttl }
}

// Client - клиент Collection API. Безопасен для конкурентного использования.
type Client struct {
	cfg          Config
	http         *http.Client
	newBackOff   func() backoff.BackOff
	observe      Observer
	newReference func() string
	tokenTTL     time.Duration

	mu     sync.RWMutex
	creds  Credentials
	tokens *lru.LRU[string, string]
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("momo: base url is required")
	}
	if cfg.SubscriptionKey == "" {
		return nil, errors.New("momo: collection subscription key is required")
	}
	if cfg.TargetEnvironment == "" {
		cfg.TargetEnvironment = "sandbox"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:          cfg,
		http:         &http.Client{Timeout: cfg.Timeout},
		newBackOff:   defaultBackOff,
		observe:      func(string, time.Duration, error) {},
		newReference: uuid.NewString,
		tokenTTL:     defaultTokenTTL,
		creds:        Credentials{APIUser: cfg.APIUser, APIKey: cfg.APIKey},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = lru.NewLRU[string, string](1, nil, c.tokenTTL)
	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// HasCredentials - заданы ли API user и ключ
func (c *Client) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.APIUser != "" && c.creds.APIKey != ""
}

func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
	c.tokens.Purge()
}

// Provision создаёт API user и ключ в песочнице и начинает их использовать
func (c *Client) Provision(ctx context.Context) (Credentials, error) {
	start := time.Now()
	creds, err := c.provision(ctx)
	c.observe("provision", time.Since(start), err)
	if err != nil {
		return Credentials{}, err
	}
	c.SetCredentials(creds)
	return creds, nil
}

func (c *Client) provision(ctx context.Context) (Credentials, error) {
	const op = "provision"
	apiUser := c.newReference()

	body, _ := json.Marshal(map[string]string{"providerCallbackHost": c.cfg.CallbackHost})
	req, err := c.newRequest(ctx, http.MethodPost, "/v1_0/apiuser", body)
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("X-Reference-Id", apiUser)
	if _, err := c.do(op, req); err != nil {
		return Credentials{}, err
	}

	req, err = c.newRequest(ctx, http.MethodPost, "/v1_0/apiuser/"+apiUser+"/apikey", nil)
	if err != nil {
		return Credentials{}, err
	}
	raw, err := c.do(op, req)
	if err != nil {
		return Credentials{}, err
	}

	var resp struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.APIKey == "" {
		return Credentials{}, &Error{Op: op, Kind: KindProtocol, Err: fmt.Errorf("missing apiKey in response")}
	}
	return Credentials{APIUser: apiUser, APIKey: resp.APIKey}, nil
}

// InitiateTransfer отправляет request-to-pay и возвращает X-Reference-Id,
// под которым шлюз хранит транзакцию. Запрос не повторяется.
func (c *Client) InitiateTransfer(ctx context.Context, tr TransferRequest) (string, error) {
	start := time.Now()
	ref, err := c.initiateTransfer(ctx, tr)
	c.observe("request_to_pay", time.Since(start), err)
	return ref, err
}

func (c *Client) initiateTransfer(ctx context.Context, tr TransferRequest) (string, error) {
	const op = "request_to_pay"

	var token string
	err := c.retry(ctx, func() error {
		var err error
		token, err = c.accessToken(ctx)
		return err
	})
	if err != nil {
		return "", err
	}

	providerRef := c.newReference()
	externalID := tr.ExternalID
	if externalID == "" {
		externalID = providerRef
	}

	payload := map[string]interface{}{
		"amount":     tr.Amount.String(),
		"currency":   tr.Currency,
		"externalId": externalID,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     tr.PayerMSISDN,
		},
		"payerMessage": tr.PayerMessage,
		"payeeNote":    tr.PayeeNote,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Op: op, Kind: KindProtocol, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/collection/v1_0/requesttopay", body)
	if err != nil {
		return "", err
	}
	c.authorize(req, token)
	req.Header.Set("X-Reference-Id", providerRef)

	if _, err := c.do(op, req); err != nil {
		c.dropTokenOnAuth(err)
		return "", err
	}
	return providerRef, nil
}

// TransferStatus запрашивает статус транзакции по ссылке шлюза.
// Временные сбои повторяются с экспоненциальной задержкой.
func (c *Client) TransferStatus(ctx context.Context, providerRef string) (*TransferStatus, error) {
	start := time.Now()
	st, err := c.transferStatus(ctx, providerRef)
	c.observe("request_to_pay_status", time.Since(start), err)
	return st, err
}

func (c *Client) transferStatus(ctx context.Context, providerRef string) (*TransferStatus, error) {
	const op = "request_to_pay_status"

	var raw []byte
	err := c.retry(ctx, func() error {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		req, err := c.newRequest(ctx, http.MethodGet, "/collection/v1_0/requesttopay/"+providerRef, nil)
		if err != nil {
			return err
		}
		c.authorize(req, token)
		raw, err = c.do(op, req)
		if err != nil {
			c.dropTokenOnAuth(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var st TransferStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, &Error{Op: op, Kind: KindProtocol, Err: err}
	}
	st.Raw = json.RawMessage(raw)
	return &st, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(tokenCacheKey); ok {
		return token, nil
	}

	const op = "token"
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds.APIUser == "" || creds.APIKey == "" {
		return "", &Error{Op: op, Kind: KindAuth, Err: errors.New("api user and key are not configured")}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/collection/token/", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(creds.APIUser, creds.APIKey)
	raw, err := c.do(op, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.AccessToken == "" {
		return "", &Error{Op: op, Kind: KindProtocol, Err: errors.New("missing access_token")}
	}

	c.tokens.Add(tokenCacheKey, resp.AccessToken)
	return resp.AccessToken, nil
}

// retry повторяет только KindUnavailable; остальное возвращается сразу
func (c *Client) retry(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || KindOf(err) != KindUnavailable {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(c.newBackOff(), ctx))
}

func (c *Client) dropTokenOnAuth(err error) {
	if KindOf(err) == KindAuth {
		c.tokens.Remove(tokenCacheKey)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: path, Kind: KindProtocol, Err: err}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
}

// do выполняет запрос; любой 2xx считается успехом
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: op, Kind: KindUnavailable, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := string(raw)
		if len(body) > maxBodyLog {
			body = body[:maxBodyLog]
		}
		return nil, &Error{Op: op, Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode, Body: body}
	}
	return raw, nil
}
