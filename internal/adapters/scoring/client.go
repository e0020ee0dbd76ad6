// Package scoring is the client of the remote scoring service that owns
// game records, score submissions and the leaderboard.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

// Endpoint labels used in logs and metrics.
const (
	EndpointAuth        = "auth"
	EndpointInitiated   = "initiated"
	EndpointStatus      = "status"
	EndpointSubmit      = "submit"
	EndpointLeaderboard = "leaderboard"
)

const (
	maxResponseBytes   = 1 << 20
	defaultLeaderboard = "Falcon's Grasp"
)

// Client talks to the scoring service. It is safe for concurrent use.
type Client struct {
	cfg  config.APIConfig
	base string
	http *http.Client
	log  logger.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for cfg. Per-call timeouts come from cfg; the HTTP
// client itself has none.
func New(cfg config.APIConfig, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{},
		log:  logger.Get().Named("scoring"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether a token is held.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Forget drops the token.
func (c *Client) Forget() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Token string          `json:"token"`
}

// Authenticate logs in and keeps the bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	body := map[string]string{"email": c.cfg.Email, "password": c.cfg.Password}
	var env envelope
	if err := c.do(ctx, EndpointAuth, http.MethodPost, "/login2", nil, body, &env, c.cfg.AuthTimeout); err != nil {
		return err
	}

	token := env.Token
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var data struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil && data.Token != "" {
			token = data.Token
		}
	}
	if token == "" {
		metrics.RecordAPIError(EndpointAuth, "no_token")
		return fmt.Errorf("%w: login response carries no token", ErrMalformed)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.log.Info(ctx, "authenticated", logger.Int("token_length", len(token)))
	return nil
}

// FindInitiated returns the most recent initiated game of the configured
// game id, or nil when there is none.
func (c *Client) FindInitiated(ctx context.Context) (*model.GameRecord, error) {
	q := url.Values{}
	q.Set("status", string(model.StatusInitiated))
	q.Set("load_participant", "true")
	q.Set("gameID", c.cfg.GameID)
	q.Set("limit", "1")

	var env envelope
	if err := c.do(ctx, EndpointInitiated, http.MethodGet, "/game-result", q, nil, &env, c.cfg.StatusTimeout); err != nil {
		return nil, err
	}
	var games []model.GameRecord
	if err := decodeData(env, &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	g := games[0]
	if g.ID == "" {
		return nil, fmt.Errorf("%w: initiated game without id", ErrMalformed)
	}
	return &g, nil
}

// Status returns the current status of game result id.
func (c *Client) Status(ctx context.Context, id string) (model.GameStatus, error) {
	var env envelope
	if err := c.do(ctx, EndpointStatus, http.MethodGet, "/game-result/"+url.PathEscape(id), nil, nil, &env, c.cfg.StatusTimeout); err != nil {
		return "", err
	}
	var rec model.GameRecord
	if err := decodeData(env, &rec); err != nil {
		return "", err
	}
	if rec.Status == "" {
		return "", fmt.Errorf("%w: game %s has no status", ErrMalformed, id)
	}
	return rec.Status, nil
}

// Submit posts the final individual scores of a game.
func (c *Client) Submit(ctx context.Context, sub model.ScoreSubmission) error {
	return c.do(ctx, EndpointSubmit, http.MethodPost, "/game-result/scoring", nil, sub, nil, c.cfg.SubmitTimeout)
}

type leaderboardGame struct {
	ID   string                   `json:"id"`
	Name string                   `json:"name"`
	List []model.LeaderboardEntry `json:"list"`
}

// Leaderboard returns at most limit teams of the configured game, best first
// as ranked by the service.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	name := c.cfg.GameName
	if name == "" {
		name = defaultLeaderboard
	}
	q := url.Values{}
	q.Set("source", "game")
	q.Set("nameGame", name)

	var env envelope
	if err := c.do(ctx, EndpointLeaderboard, http.MethodGet, "/leaderboard/dashboard/based", q, nil, &env, c.cfg.LeaderboardTimeout); err != nil {
		return nil, err
	}
	var games []leaderboardGame
	if err := decodeData(env, &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	list := games[0].List
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// do performs one logical call. Connection failures, timeouts and gateway
// errors are retried a bounded number of times; everything else is final.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, in, out any, timeout time.Duration) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	attempt := 0
	op := func() error {
		attempt++
		return c.once(ctx, endpoint, method, target, payload, out, timeout)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryInterval), uint64(max(c.cfg.Retries, 0))),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		c.log.Warn(ctx, "scoring call failed, retrying",
			logger.String("endpoint", endpoint),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", next),
			logger.Error(err),
		)
	})
	metrics.RecordAPILatency(endpoint, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAPIError(endpoint, errorKind(err))
	}
	return err
}

func (c *Client) once(ctx context.Context, endpoint, method, target string, payload []byte, out any, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build %s request: %w", endpoint, err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if endpoint != EndpointAuth {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == "" {
			return backoff.Permanent(ErrNotAuthenticated)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.Forget()
		return backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrUnauthorized, endpoint, resp.StatusCode))
	case resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s returned %d", ErrTransport, endpoint, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrStatus, endpoint, resp.StatusCode))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return backoff.Permanent(fmt.Errorf("%w: empty %s response", ErrMalformed, endpoint))
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrMalformed, endpoint, err))
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotAuthenticated):
		return "unauthorized"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport"
	}
}
