package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/generator"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/internal/service"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

type WSHandler struct {
	chat        service.ChatService
	leaderboard service.LeaderboardService
	ids         generator.Generator
	wsCfg       config.WebSocketConfig
	upgrader    websocket.Upgrader
}

func NewWSHandler(
	chat service.ChatService,
	leaderboard service.LeaderboardService,
	ids generator.Generator,
	wsCfg config.WebSocketConfig,
) *WSHandler {
	h := &WSHandler{
		chat:        chat,
		leaderboard: leaderboard,
		ids:         ids,
		wsCfg:       wsCfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
	}
	return h
}

// originChecker allows every origin when the list is empty or contains "*".
// Otherwise the Origin header's host must match an entry, and requests
// without an Origin header are accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	hosts := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		hosts[strings.ToLower(o)] = struct{}{}
	}
	if len(hosts) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := hosts[strings.ToLower(u.Host)]
		return ok
	}
}

// HandleChat upgrades /ws/chat/... and runs the connection until it closes.
func (h *WSHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	attrs := ExtractPathVars(r.URL.Path)

	client, ok := h.upgrade(w, r, attrs)
	if !ok {
		return
	}
	ctx := connContext(r, client)
	l := log.Ctx(ctx)

	if err := h.chat.HandleConnect(ctx, client); err != nil {
		l.Error().Err(err).Msg("chat connect failed")
		client.Close()
		client.Conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(func(c *hub.Client, payload []byte) {
		if _, err := h.chat.HandleMessage(ctx, c, payload); err != nil {
			if errors.Is(err, domain.ErrMalformedPayload) {
				return
			}
			l.Error().Err(err).Msg("chat message failed")
		}
	})

	if err := h.chat.HandleDisconnect(ctx, client); err != nil {
		l.Warn().Err(err).Msg("chat disconnect failed")
	}
}

// HandleLeaderboard upgrades /ws/leaderboard. Inbound frames are read only to
// keep the connection alive and are otherwise ignored.
func (h *WSHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	client, ok := h.upgrade(w, r, domain.Attributes{})
	if !ok {
		return
	}
	ctx := connContext(r, client)
	l := log.Ctx(ctx)

	if err := h.leaderboard.HandleConnect(ctx, client); err != nil {
		l.Error().Err(err).Msg("leaderboard connect failed")
		h.leaderboard.HandleDisconnect(ctx, client)
		client.Conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(func(*hub.Client, []byte) {})

	h.leaderboard.HandleDisconnect(ctx, client)
}

func (h *WSHandler) upgrade(w http.ResponseWriter, r *http.Request, attrs domain.Attributes) (*hub.Client, bool) {
	l := log.Ctx(r.Context())

	connID, err := h.ids.Generate()
	if err != nil {
		l.Error().Err(err).Msg("failed to generate connection id")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return nil, false
	}

	return hub.NewClient(connID, conn, attrs, h.wsCfg), true
}

// connContext detaches the connection from the request so that the
// server's request timeouts do not cancel long-lived sessions.
func connContext(r *http.Request, c *hub.Client) context.Context {
	logger := log.Ctx(r.Context()).With().Str(log.FieldConnID, c.ID).Logger()
	return log.WithLogger(context.Background(), logger)
}

// RegisterRoutes mounts the websocket endpoints. The router must have path
// cleaning disabled so that empty path segments reach ExtractPathVars.
func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/leaderboard", h.HandleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/ws/chat", h.HandleChat).Methods(http.MethodGet)
	r.PathPrefix("/ws/chat/").HandlerFunc(h.HandleChat).Methods(http.MethodGet)
}

// NewRouter returns a router for the websocket endpoints that hands every
// other request to fallback.
func NewRouter(h *WSHandler, fallback http.Handler, middleware ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter().SkipClean(true)
	r.Use(middleware...)
	h.RegisterRoutes(r)
	r.NotFoundHandler = fallback
	r.MethodNotAllowedHandler = fallback
	return r
}
