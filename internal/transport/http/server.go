package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/config"
	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/service/favorites"
	"github.com/vovakirdan/brandchat-server/internal/store"
	"github.com/vovakirdan/brandchat-server/internal/uploads"
)

// minReadLimit is the lowest transport cap on websocket frames.
const minReadLimit = 1 << 20

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Auth      *auth.Service
	Gate      *core.Gate
	Chat      *core.Service
	Favorites *favorites.Service
	Store     store.AttachmentStore
	Uploads   *uploads.Dir
}

// Handler routes the websocket endpoints on a ServeMux, since they hijack
// the connection, and everything else to the gin engine.
type Handler struct {
	mux      *stdhttp.ServeMux
	sessions sync.WaitGroup
}

// NewHandler builds the HTTP handler with the chat endpoints and REST API.
func NewHandler(deps Deps, cfg config.Config, logger *zerolog.Logger) *Handler {
	h := &Handler{mux: stdhttp.NewServeMux()}

	wsOpts := WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		ReadLimit:          max(cfg.MaxMessageBytes*8, minReadLimit),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	handshake := HandshakeMiddleware(deps.Auth, logger)
	h.mux.Handle("/ws/chat/", handshake(NewWSHandler(core.ConsumerUser, deps.Gate, deps.Chat, wsOpts, &h.sessions, logger)))
	h.mux.Handle("/ws/admin-chat/", handshake(NewWSHandler(core.ConsumerOperator, deps.Gate, deps.Chat, wsOpts, &h.sessions, logger)))
	h.mux.Handle("/", newRouter(deps, cfg, logger))

	return h
}

func (h *Handler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.mux.ServeHTTP(w, r)
}

// Wait blocks until every websocket handler has returned or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	authRequired := AuthMiddleware(deps.Auth, logger)

	api := NewAPIHandlers(deps.Auth, deps.Store, deps.Uploads, cfg.MaxUploadBytes, logger)
	router.POST("/api/auth/token", api.Token)
	router.POST("/api/message-attachments", authRequired, api.UploadAttachment)

	if deps.Favorites != nil {
		fav := NewFavoritesHandlers(deps.Favorites, logger)
		group := router.Group("/api/chat_favorites", authRequired)
		group.GET("", fav.List)
		group.POST("", fav.Create)
		group.DELETE("/:id", fav.Delete)
	}

	if deps.Uploads != nil {
		router.Static("/media", cfg.UploadDir)
	}

	return router
}

// Server is the HTTP server of the gateway. Its Shutdown also closes live
// websocket sessions, which http.Server.Shutdown does not track.
type Server struct {
	*stdhttp.Server
	handler *Handler
	cancel  context.CancelFunc
}

// NewServer builds an HTTP server around the handler.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *Server {
	base, cancel := context.WithCancel(context.Background())
	handler := NewHandler(deps, cfg, logger)
	return &Server{
		Server: &stdhttp.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		handler: handler,
		cancel:  cancel,
	}
}

// Shutdown stops accepting connections, cancels live websocket sessions and
// waits for their handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.cancel()
	if waitErr := s.handler.Wait(ctx); waitErr != nil && err == nil {
		err = waitErr
	}
	return err
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
