package httpsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/ledgersync/internal/crypto"
	"github.com/iudanet/ledgersync/internal/sync"
	"github.com/iudanet/ledgersync/pkg/api"
)

// ErrUnauthorized узел отклонил токен или node id
var ErrUnauthorized = errors.New("peer rejected credentials")

// ErrRateLimited indicates the peer throttled this node; the next
// anti-entropy round retries.
var ErrRateLimited = errors.New("peer rate limit exceeded")

var _ sync.Peer = (*Client)(nil)

// Client реализует sync.Peer поверх HTTP
type Client struct {
	httpClient *http.Client
	keys       *crypto.ClusterKeys
	sealer     *crypto.Sealer
	baseURL    string
	nodeID     string
	tokenTTL   time.Duration
}

// NewClient создает клиента узла по адресу addr ("host:port" или URL).
// nodeID подписывает запросы; keys может быть nil.
func NewClient(addr, nodeID string, keys *crypto.ClusterKeys, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		keys:       keys,
		baseURL:    baseURL(addr),
		nodeID:     nodeID,
		tokenTTL:   DefaultTokenTTL,
	}
	if keys != nil {
		sealer, err := crypto.NewSealer(keys.SealKey)
		if err != nil {
			return nil, err
		}
		c.sealer = sealer
	}
	return c, nil
}

// Dialer returns a sync.Dialer opening HTTP clients.
func Dialer(nodeID string, keys *crypto.ClusterKeys, timeout time.Duration) sync.Dialer {
	return func(addr string) (sync.Peer, error) {
		return NewClient(addr, nodeID, keys, timeout)
	}
}

func baseURL(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}

// Handshake отправляет Hello
func (c *Client) Handshake(ctx context.Context, hello api.Hello) (api.Hello, error) {
	var resp api.Hello
	if err := c.doRequest(ctx, sync.StateHandshake, PathHello, hello, &resp); err != nil {
		return api.Hello{}, fmt.Errorf("hello request failed: %w", err)
	}
	return resp, nil
}

// Push отправляет пачку изменений
func (c *Client) Push(ctx context.Context, req api.PushRequest) (api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.doRequest(ctx, sync.StateExchange, PathPush, req, &resp); err != nil {
		return api.PushResponse{}, fmt.Errorf("push request failed: %w", err)
	}
	return resp, nil
}

// Pull запрашивает страницу изменений
func (c *Client) Pull(ctx context.Context, req api.PullRequest) (api.PullResponse, error) {
	var resp api.PullResponse
	if err := c.doRequest(ctx, sync.StateExchange, PathPull, req, &resp); err != nil {
		return api.PullResponse{}, fmt.Errorf("pull request failed: %w", err)
	}
	return resp, nil
}

// Ack подтверждает принятые изменения
func (c *Client) Ack(ctx context.Context, req api.AckRequest) error {
	if err := c.doRequest(ctx, sync.StateAck, PathAck, req, nil); err != nil {
		return fmt.Errorf("ack request failed: %w", err)
	}
	return nil
}

// Health проверяет доступность узла
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// doRequest выполняет POST запрос шага протокола
func (c *Client) doRequest(ctx context.Context, stage sync.State, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	contentType := ContentTypeJSON
	if c.sealer != nil {
		payload, err = c.sealer.Seal(payload, []byte(path))
		if err != nil {
			return err
		}
		contentType = ContentTypeSealed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if c.keys != nil {
		token, err := IssueToken(c.keys.TokenKey, c.nodeID, c.tokenTTL)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(stage, resp.StatusCode, respBody)
	}

	if c.sealer != nil {
		if resp.Header.Get("Content-Type") != ContentTypeSealed {
			return &sync.ProtocolError{Stage: stage, Reason: "peer sent an unsealed response"}
		}
		respBody, err = c.sealer.Open(respBody, responseAAD(path))
		if err != nil {
			return &sync.ProtocolError{Stage: stage, Reason: "cannot open response", Err: err}
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &sync.ProtocolError{Stage: stage, Reason: "malformed response", Err: err}
		}
	}

	return nil
}

// statusError отображает ответ с ошибкой: 400 и 409 означают, что узел
// отверг данные протокола
func statusError(stage sync.State, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
		if errResp.Message != "" {
			message += ": " + errResp.Message
		}
	}

	switch status {
	case http.StatusBadRequest, http.StatusConflict:
		return &sync.ProtocolError{
			Stage:  stage,
			Reason: fmt.Sprintf("peer rejected request (%d): %s", status, message),
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (%d): %s", ErrUnauthorized, status, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return fmt.Errorf("server error (%d): %s", status, message)
	}
}
