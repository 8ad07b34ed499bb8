package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/proto"
)

const clientBuffer = 64

// WSOptions tune websocket connections.
type WSOptions struct {
	// MaxMessageBytes is the largest frame answered normally; larger frames
	// get a 400 reply.
	MaxMessageBytes int64
	// ReadLimit is the transport cap. Frames above it close the connection.
	ReadLimit          int64
	RateLimitPerMinute int
}

// WSHandler upgrades admitted HTTP connections of one consumer kind and
// bridges them to core sessions.
type WSHandler struct {
	kind     core.ConsumerKind
	gate     *core.Gate
	svc      *core.Service
	opts     WSOptions
	sessions *sync.WaitGroup
	log      *zerolog.Logger
}

// NewWSHandler builds a websocket handler for the consumer kind. Every
// request is tracked in sessions until its handler returns.
func NewWSHandler(kind core.ConsumerKind, gate *core.Gate, svc *core.Service, opts WSOptions, sessions *sync.WaitGroup, logger *zerolog.Logger) *WSHandler {
	if sessions == nil {
		sessions = &sync.WaitGroup{}
	}
	return &WSHandler{kind: kind, gate: gate, svc: svc, opts: opts, sessions: sessions, log: logger}
}

// ServeHTTP runs the gate before the upgrade, so a refused connection gets a
// plain 403 and no websocket.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.sessions.Add(1)
	defer h.sessions.Done()

	ctx := r.Context()

	client := core.NewClient(uuid.NewString(), clientBuffer)
	session, err := h.gate.Admit(ctx, h.kind, requestUser(ctx), requestOffered(ctx), client)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) || errors.Is(err, core.ErrRejected) {
			h.log.Debug().Err(err).Str("consumer", h.kind.String()).Msg("handshake rejected")
			writeJSON(w, stdhttp.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		h.log.Error().Err(err).Msg("gate failure")
		writeJSON(w, stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer session.Close(context.WithoutCancel(ctx))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{h.kind.Subprotocol()},
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.opts.ReadLimit > 0 {
		conn.SetReadLimit(h.opts.ReadLimit)
	}

	log := h.log.With().Str("conn_id", client.ID()).Int64("user_id", session.User.ID).Str("consumer", h.kind.String()).Logger()
	log.Info().Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "internal error"
			if errors.Is(err, core.ErrInfrastructure) {
				log.Error().Err(err).Msg("closing connection after infrastructure failure")
			} else {
				log.Warn().Err(err).Msg("ws connection closed with error")
			}
		}
	}

	log.Info().Int("status", int(status)).Msg("disconnected")
	conn.Close(status, reason)
}

// readLoop handles actions one at a time, so replies keep the order of requests.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, log *zerolog.Logger) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if h.opts.MaxMessageBytes > 0 && int64(len(data)) > h.opts.MaxMessageBytes {
			// best effort: the envelope of an oversized frame may still parse
			var head struct {
				Action    string          `json:"action"`
				RequestID json.RawMessage `json:"request_id"`
			}
			_ = json.Unmarshal(data, &head)
			log.Debug().Int("bytes", len(data)).Msg("oversized frame")
			out := proto.ErrorReply(head.Action, head.RequestID, proto.StatusBadRequest, "payload too large")
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			log.Debug().Err(err).Msg("malformed frame")
			if err := wsjson.Write(ctx, conn, proto.ErrorReply("", nil, proto.StatusBadRequest, "malformed frame")); err != nil {
				return err
			}
			continue
		}

		if !limiter.allow() {
			out := proto.ErrorReply(inbound.Action, inbound.RequestID, proto.StatusBadRequest, "rate limit exceeded")
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return err
			}
			continue
		}

		out, err := dispatch(ctx, h.svc, session, inbound)
		if err != nil {
			return err
		}
		if out.Errors != nil {
			log.Debug().Str("action", inbound.Action).Int("status", out.ResponseStatus).Strs("errors", out.Errors).Msg("action rejected")
		}
		if err := wsjson.Write(ctx, conn, out); err != nil {
			return err
		}
	}
}

// writeLoop forwards bus deliveries to the socket.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	for {
		select {
		case payload := <-client.Events:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				log.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
