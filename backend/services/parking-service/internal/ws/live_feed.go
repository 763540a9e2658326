// Package ws pushes the caller's running sessions over a WebSocket once per tick.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/service"
)

// ActiveSessionLister prices the caller's open sessions.
type ActiveSessionLister interface {
	ActiveSessions(ctx context.Context) ([]service.LiveSession, error)
}

// Frame is one push to the client.
type Frame struct {
	Sessions []service.LiveSession `json:"sessions"`
	SentAt   time.Time             `json:"sent_at"`
}

// LiveFeed upgrades requests and streams Frames.
type LiveFeed struct {
	lister       ActiveSessionLister
	interval     time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewLiveFeed builds the feed. A non-positive interval defaults to one second.
func NewLiveFeed(lister ActiveSessionLister, interval, writeTimeout time.Duration, logger *zap.Logger) *LiveFeed {
	if interval <= 0 {
		interval = time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &LiveFeed{
		lister:       lister,
		interval:     interval,
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP handles GET /ws/sessions/active. The caller must be authenticated.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principalID := gateway.IdentityFromContext(r.Context()).PrincipalID()
	if principalID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	// The stream outlives the request context's deadlines but stops when the client goes away.
	ctx, cancel := context.WithCancel(gateway.WithPrincipal(context.Background(), principalID))
	defer cancel()

	f.logger.Info("live feed connected", zap.String("principal_id", principalID))
	go f.readPump(conn, cancel)
	f.writePump(ctx, conn, principalID)
}

// readPump discards client messages and cancels the stream when the connection closes.
func (f *LiveFeed) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *LiveFeed) writePump(ctx context.Context, conn *websocket.Conn, principalID string) {
	defer conn.Close()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	if err := f.push(ctx, conn); err != nil {
		f.logger.Info("live feed closed", zap.String("principal_id", principalID), zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(f.writeTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(f.writeTimeout)); err != nil {
				return
			}
		case <-ticker.C:
			if err := f.push(ctx, conn); err != nil {
				f.logger.Info("live feed closed", zap.String("principal_id", principalID), zap.Error(err))
				return
			}
		}
	}
}

func (f *LiveFeed) push(ctx context.Context, conn *websocket.Conn) error {
	sessions, err := f.lister.ActiveSessions(ctx)
	if err != nil {
		f.logger.Warn("live feed refresh failed", zap.Error(err))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	return conn.WriteJSON(Frame{Sessions: sessions, SentAt: time.Now().UTC()})
}
