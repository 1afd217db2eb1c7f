package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/internal/registry"
	"github.com/omis-2025/strangerwave-sub000/internal/security"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

// Connector registers authenticated connections with the core.
type Connector interface {
	Dispatcher
	Connect(ctx context.Context, userID uint, handle registry.Handle) error
}

// Server upgrades authenticated HTTP requests to chat connections.
type Server struct {
	connector Connector
	secret    string
	upgrader  websocket.Upgrader
	// base outlives the upgrade request and scopes every connection.
	base context.Context
	log  *zap.SugaredLogger
}

func NewServer(base context.Context, connector Connector, jwtSecret string, allowedOrigins []string) *Server {
	s := &Server{
		connector: connector,
		secret:    jwtSecret,
		base:      base,
		log:       logger.Named("websocket"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return s
}

// originChecker accepts any origin when the list is empty or holds "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := security.ValidateJWT(security.TokenFromRequest(r), s.secret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Debugw("websocket upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}

	client := newClient(conn, claims.UserID, s.log)
	go client.writePump()

	if err := s.connector.Connect(s.base, claims.UserID, client); err != nil {
		s.log.Infow("connection rejected", "user_id", claims.UserID, "error", err)
		_ = client.Send(events.Error{Error: errors.ClientMessage(err)})
		_ = client.Close()
		return
	}

	go client.readPump(s.base, s.connector)
}
