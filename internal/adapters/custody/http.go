package custody

// http.go: custody remota sobre HTTP.
//
// Cada transferencia es un POST JSON firmado con HMAC-SHA256
// (timestamp + método + path + body) y con una Idempotency-Key para que el
// servicio pueda deduplicar. La clave viene del ctx (ports.WithTransferKey); sin
// ella se usa un UUID nuevo. No hay retries: el engine deja esa política al
// caller, que ve un TransferError y decide.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polyamm/internal/ports"
)

const (
	debitPath  = "/v1/transfers/debit"
	creditPath = "/v1/transfers/credit"

	defaultRatePerSec = 50
	defaultBurst      = 10
	defaultTimeout    = 10 * time.Second
)

// HTTPConfig configura el cliente de custody remota.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Secret     string // base64 URL encoding
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// HTTPClient implementa ports.Custody contra un servicio HTTP.
type HTTPClient struct {
	http    *http.Client
	base    string
	apiKey  string
	secret  []byte
	limiter *rate.Limiter
	now     func() time.Time
}

type transferRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type transferResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewHTTPClient crea el cliente. Los valores a cero usan defaults.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("custody.NewHTTPClient: base url is required")
	}
	secret, err := base64.URLEncoding.DecodeString(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("custody.NewHTTPClient: decode secret: %w", err)
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		secret:  secret,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		now:     time.Now,
	}, nil
}

// Debit implementa ports.Custody.
func (c *HTTPClient) Debit(ctx context.Context, account string, amount uint64) error {
	return c.transfer(ctx, debitPath, account, amount)
}

// Credit implementa ports.Custody.
func (c *HTTPClient) Credit(ctx context.Context, account string, amount uint64) error {
	return c.transfer(ctx, creditPath, account, amount)
}

func (c *HTTPClient) transfer(ctx context.Context, path, account string, amount uint64) error {
	b, err := json.Marshal(transferRequest{Account: account, Amount: amount})
	if err != nil {
		return fmt.Errorf("custody.HTTPClient: marshal: %w", err)
	}
	body := string(b)

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("custody.HTTPClient: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("custody.HTTPClient: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey(ctx))
	for k, v := range c.signHeaders(http.MethodPost, path, body) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("custody.HTTPClient: %s: %w", path, err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("custody.HTTPClient: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out transferResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("custody.HTTPClient: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("custody.HTTPClient: %s rejected: %s", path, out.Error)
	}
	return nil
}

func idempotencyKey(ctx context.Context) string {
	if key := ports.TransferKey(ctx); key != "" {
		return key
	}
	return uuid.New().String()
}

// signHeaders devuelve las cabeceras de autenticación de un request.
func (c *HTTPClient) signHeaders(method, path, body string) map[string]string {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	return map[string]string{
		"X-Custody-Key":       c.apiKey,
		"X-Custody-Timestamp": ts,
		"X-Custody-Signature": Sign(c.secret, ts, method, path, body),
	}
}

// Sign calcula base64url(HMAC-SHA256(secret, ts + METHOD + path + body)).
func Sign(secret []byte, ts, method, path, body string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + strings.ToUpper(method) + path + body))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
