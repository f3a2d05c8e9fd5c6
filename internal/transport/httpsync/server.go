// Package httpsync переносит протокол синхронизации поверх HTTP/JSON:
// Server открывает Responder узла, Client реализует sync.Peer.
package httpsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/crypto"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/sync"
	"github.com/iudanet/ledgersync/pkg/api"
)

// Эндпоинты протокола
const (
	PathHello  = "/api/v1/sync/hello"
	PathPush   = "/api/v1/sync/push"
	PathPull   = "/api/v1/sync/pull"
	PathAck    = "/api/v1/sync/ack"
	PathHealth = "/health"
)

const (
	// ContentTypeJSON тело в открытом виде
	ContentTypeJSON = "application/json"
	// ContentTypeSealed тело, зашифрованное ключом кластера
	ContentTypeSealed = "application/vnd.ledgersync.sealed"

	// maxBodySize ограничение тела запроса (пачка из MaxPageSize сущностей)
	maxBodySize = 64 << 20
)

// responseAAD дополнительные данные ответа отличаются от запроса, чтобы
// тело ответа нельзя было отправить обратно как запрос
func responseAAD(path string) []byte {
	return []byte("response:" + path)
}

// Server обслуживает ответную сторону синхронизации.
// Без ключей кластера запросы принимаются без аутентификации и шифрования.
type Server struct {
	peer    sync.Peer
	keys    *crypto.ClusterKeys
	sealer  *crypto.Sealer
	limiter *RateLimiter
	logger  *slog.Logger
	nodeID  string
}

// ServerOption настраивает Server
type ServerOption func(*Server)

// WithRateLimit ограничивает каждый узел rate запросами за window.
// rate <= 0 отключает ограничение.
func WithRateLimit(rate int, window time.Duration) ServerOption {
	return func(s *Server) {
		if rate > 0 && window > 0 {
			s.limiter = NewRateLimiter(rate, window, s.logger)
		}
	}
}

// NewServer создает HTTP сервер поверх peer (обычно sync.Responder).
// keys может быть nil.
func NewServer(peer sync.Peer, nodeID string, keys *crypto.ClusterKeys, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	s := &Server{
		peer:   peer,
		keys:   keys,
		logger: logger,
		nodeID: nodeID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if keys != nil {
		sealer, err := crypto.NewSealer(keys.SealKey)
		if err != nil {
			return nil, err
		}
		s.sealer = sealer
	} else {
		logger.Warn("Cluster passphrase is not set, sync endpoints are open")
	}
	return s, nil
}

// Handler returns the routed handler with logging, recovery and, when
// cluster keys are set, JWT authentication.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("POST "+PathHello, handle(s, sync.StateHandshake, s.peer.Handshake,
		func(h api.Hello) string { return h.NodeID }))
	protected.HandleFunc("POST "+PathPush, handle(s, sync.StateExchange, s.peer.Push,
		func(r api.PushRequest) string { return r.NodeID }))
	protected.HandleFunc("POST "+PathPull, handle(s, sync.StateExchange, s.peer.Pull,
		func(r api.PullRequest) string { return r.NodeID }))
	protected.HandleFunc("POST "+PathAck, handle(s, sync.StateAck, s.ack,
		func(r api.AckRequest) string { return r.NodeID }))

	var mws []func(http.Handler) http.Handler
	if s.keys != nil {
		mws = append(mws, AuthMiddleware(s.logger, s.keys.TokenKey))
	}
	if s.limiter != nil {
		mws = append(mws, RateLimitMiddleware(s.limiter, s.logger))
	}
	syncHandler := chain(protected, mws...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathHealth, s.health)
	mux.Handle("/api/v1/sync/", syncHandler)

	return chain(mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
	)
}

// Close releases background resources of the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) ack(ctx context.Context, req api.AckRequest) (struct{}, error) {
	return struct{}{}, s.peer.Ack(ctx, req)
}

// health обрабатывает GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok", NodeID: s.nodeID}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode health response", "error", err)
	}
}

// handle собирает обработчик одного шага протокола: читает (и
// расшифровывает) тело, сверяет node id с токеном, вызывает шаг и
// пишет ответ
func handle[Req, Resp any](s *Server, stage sync.State, step func(context.Context, Req) (Resp, error), nodeID func(Req) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := s.readBody(w, r)
		if err != nil {
			s.logger.Warn("Failed to read sync request", "path", r.URL.Path, "error", err)
			writeError(w, s.logger, http.StatusBadRequest, "bad_request", err.Error())
			return
		}

		var req Req
		if err := json.Unmarshal(body, &req); err != nil {
			s.logger.Warn("Failed to decode sync request", "path", r.URL.Path, "error", err)
			writeError(w, s.logger, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
			return
		}

		if s.keys != nil {
			peerID, _ := PeerID(ctx)
			if peerID != nodeID(req) {
				s.logger.Warn("Node id does not match token",
					"token_node", peerID,
					"request_node", nodeID(req))
				writeError(w, s.logger, http.StatusForbidden, "forbidden", "node id does not match token")
				return
			}
		}

		resp, err := step(ctx, req)
		if err != nil {
			s.writeStepError(w, stage, err)
			return
		}

		s.writeBody(w, r, resp)
	}
}

// readBody читает тело запроса; при заданных ключах тело должно быть
// зашифровано для этого эндпоинта
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if s.sealer == nil {
		return body, nil
	}
	if r.Header.Get("Content-Type") != ContentTypeSealed {
		return nil, fmt.Errorf("sealed body required")
	}
	return s.sealer.Open(body, []byte(r.URL.Path))
}

func (s *Server) writeBody(w http.ResponseWriter, r *http.Request, resp any) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode response", "path", r.URL.Path, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "internal", "failed to encode response")
		return
	}

	contentType := ContentTypeJSON
	if s.sealer != nil {
		data, err = s.sealer.Seal(data, responseAAD(r.URL.Path))
		if err != nil {
			s.logger.Error("Failed to seal response", "path", r.URL.Path, "error", err)
			writeError(w, s.logger, http.StatusInternalServerError, "internal", "failed to seal response")
			return
		}
		contentType = ContentTypeSealed
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response", "path", r.URL.Path, "error", err)
	}
}

// writeStepError отображает ошибку шага протокола в HTTP статус
func (s *Server) writeStepError(w http.ResponseWriter, stage sync.State, err error) {
	switch {
	case errors.Is(err, sync.ErrSyncProtocol):
		writeError(w, s.logger, http.StatusBadRequest, "sync_protocol", err.Error())
	case errors.Is(err, crdt.ErrValidation):
		writeError(w, s.logger, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, s.logger, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, s.logger, http.StatusServiceUnavailable, "unavailable", "request cancelled")
	default:
		// Детали ошибок хранилища не раскрываются узлу
		s.logger.Error("Sync step failed", "stage", stage.String(), "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// writeError пишет api.ErrorResponse
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{Error: code, Message: message}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}
